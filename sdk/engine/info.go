package engine

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/hybridgroup/yzma/pkg/llama"
)

// ModelInfo represents the model's card information.
type ModelInfo struct {
	Name        string
	Desc        string
	Size        uint64
	HasEncoder  bool
	HasDecoder  bool
	IsRecurrent bool
	IsHybrid    bool
	Metadata    map[string]string
}

// MetadataKeys returns the metadata keys in sorted order.
func (mi ModelInfo) MetadataKeys() []string {
	keys := make([]string, 0, len(mi.Metadata))
	for k := range mi.Metadata {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

func newModelInfo(cfg Config, model llama.Model) ModelInfo {
	count := llama.ModelMetaCount(model)
	metadata := make(map[string]string)

	for i := range count {
		key, ok := llama.ModelMetaKeyByIndex(model, i)
		if !ok {
			continue
		}

		// The template is large and returned by ChatTemplate.
		if key == "tokenizer.chat_template" {
			continue
		}

		value, ok := llama.ModelMetaValStrByIndex(model, i)
		if !ok {
			continue
		}

		metadata[key] = value
	}

	return ModelInfo{
		Name:        ModelName(cfg.ModelFile),
		Desc:        llama.ModelDesc(model),
		Size:        llama.ModelSize(model),
		HasEncoder:  llama.ModelHasEncoder(model),
		HasDecoder:  llama.ModelHasDecoder(model),
		IsRecurrent: llama.ModelIsRecurrent(model),
		IsHybrid:    llama.ModelIsHybrid(model),
		Metadata:    metadata,
	}
}

var shardSuffix = regexp.MustCompile(`-\d+-of-\d+$`)

// ModelName returns the name of a model from its file name, without the
// extension or the shard suffix.
func ModelName(modelFile string) string {
	name := filepath.Base(modelFile)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	return shardSuffix.ReplaceAllString(name, "")
}
