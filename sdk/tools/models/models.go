// Package models provides support for tooling around model management.
// Models live under <base>/<org>/<family>/<file>.gguf and are looked up
// through an index file kept at the root of the models folder.
package models

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/ardanlabs/llamachat/sdk/tools/defaults"
	"go.yaml.in/yaml/v2"
)

const indexFile = ".index.yaml"

// ErrNotFound is returned when a model is not in the index.
var ErrNotFound = errors.New("model not found")

// Path returns file path information about a model. A sharded model has one
// file per shard in shard order.
type Path struct {
	ModelFiles []string `yaml:"model_files"`
	Downloaded bool     `yaml:"downloaded"`
}

// Models manages the models folder.
type Models struct {
	modelsPath string
	biMutex    sync.Mutex
}

// New constructs the models system using the specified base path, creating
// the models folder when needed.
func New(basePath string) (*Models, error) {
	modelsPath := defaults.ModelsDir(basePath)

	if err := os.MkdirAll(modelsPath, 0755); err != nil {
		return nil, fmt.Errorf("new: unable to create models path: %w", err)
	}

	return &Models{modelsPath: modelsPath}, nil
}

// Path returns the location of the models folder.
func (m *Models) Path() string {
	return m.modelsPath
}

// BuildIndex scans the models folder and rewrites the index.
func (m *Models) BuildIndex() error {
	m.biMutex.Lock()
	defer m.biMutex.Unlock()

	if err := removeEmptyDirs(m.modelsPath); err != nil {
		return fmt.Errorf("build-index: remove-empty-dirs: %w", err)
	}

	orgEntries, err := os.ReadDir(m.modelsPath)
	if err != nil {
		return fmt.Errorf("build-index: reading models directory: %w", err)
	}

	index := make(map[string]Path)

	for _, orgEntry := range orgEntries {
		if !orgEntry.IsDir() {
			continue
		}

		org := orgEntry.Name()

		familyEntries, err := os.ReadDir(filepath.Join(m.modelsPath, org))
		if err != nil {
			continue
		}

		for _, familyEntry := range familyEntries {
			if !familyEntry.IsDir() {
				continue
			}

			family := familyEntry.Name()

			fileEntries, err := os.ReadDir(filepath.Join(m.modelsPath, org, family))
			if err != nil {
				continue
			}

			for _, fileEntry := range fileEntries {
				name := fileEntry.Name()

				if fileEntry.IsDir() || !strings.EqualFold(filepath.Ext(name), ".gguf") {
					continue
				}

				// Projector files belong to multimodal models.
				if strings.HasPrefix(name, "mmproj") {
					continue
				}

				modelID := extractModelID(name)

				mp := index[modelID]
				mp.ModelFiles = append(mp.ModelFiles, filepath.Join(m.modelsPath, org, family, name))
				mp.Downloaded = true
				index[modelID] = mp
			}
		}
	}

	for modelID, mp := range index {
		slices.Sort(mp.ModelFiles)
		index[modelID] = mp
	}

	indexData, err := yaml.Marshal(&index)
	if err != nil {
		return fmt.Errorf("build-index: marshal index: %w", err)
	}

	indexPath := filepath.Join(m.modelsPath, indexFile)
	if err := os.WriteFile(indexPath, indexData, 0644); err != nil {
		return fmt.Errorf("build-index: write index file: %w", err)
	}

	return nil
}

// RetrievePath locates the model files on disk by model id. The lookup is
// case-insensitive and ignores the file extension and shard suffix. A miss
// rebuilds the index once before reporting ErrNotFound.
func (m *Models) RetrievePath(modelID string) (Path, error) {
	modelID = extractModelID(modelID)

	if mp, exists := m.loadIndex()[modelID]; exists {
		return mp, nil
	}

	// The index can be stale when files were copied in by hand.
	if err := m.BuildIndex(); err != nil {
		return Path{}, fmt.Errorf("retrieve-path: %w", err)
	}

	mp, exists := m.loadIndex()[modelID]
	if !exists {
		return Path{}, fmt.Errorf("retrieve-path: %w: %q", ErrNotFound, modelID)
	}

	return mp, nil
}

func (m *Models) loadIndex() map[string]Path {
	indexPath := filepath.Join(m.modelsPath, indexFile)

	data, err := os.ReadFile(indexPath)
	if err != nil {
		return make(map[string]Path)
	}

	var index map[string]Path
	if err := yaml.Unmarshal(data, &index); err != nil {
		return make(map[string]Path)
	}

	return index
}

// =============================================================================

var shardSuffix = regexp.MustCompile(`-\d+-of-\d+$`)

func extractModelID(modelFileName string) string {
	name := path.Base(filepath.ToSlash(modelFileName))

	if strings.EqualFold(path.Ext(name), ".gguf") {
		name = strings.TrimSuffix(name, path.Ext(name))
	}

	name = shardSuffix.ReplaceAllString(name, "")

	return strings.ToLower(name)
}

func removeEmptyDirs(modelBasePath string) error {
	var dirs []string

	err := filepath.WalkDir(modelBasePath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() && path != modelBasePath {
			dirs = append(dirs, path)
		}

		return nil
	})

	if err != nil {
		return fmt.Errorf("walking directory tree: %w", err)
	}

	for i := len(dirs) - 1; i >= 0; i-- {
		entries, err := os.ReadDir(dirs[i])
		if err != nil {
			continue
		}

		if len(entries) == 0 {
			os.Remove(dirs[i])
		}
	}

	return nil
}
