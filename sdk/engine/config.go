package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/hybridgroup/yzma/pkg/llama"
)

const (
	defGPULayers     = 99
	defContextWindow = 8 * 1024
	defNUBatch       = 512
	defThreads       = 4
	defMinP          = 0.05
	defTemperature   = 0.8
)

// Logger provides a function for logging messages from different APIs.
type Logger func(ctx context.Context, msg string, args ...any)

// FmtLogger is a Logger that writes to stdout in key=value form. It is used
// by the tooling commands that have no structured logger.
func FmtLogger(ctx context.Context, msg string, args ...any) {
	fmt.Print(msg)

	for i := 0; i+1 < len(args); i += 2 {
		fmt.Printf(" %v=%v", args[i], args[i+1])
	}

	fmt.Println()
}

// =============================================================================

// Config represents the model and context settings. The defaults are used
// when these values are set to 0.
//
// ModelFile is the path to the gguf model file. This is mandatory to provide.
//
// Device is the backend device to load the model on. When empty the library
// picks the device.
//
// GPULayers is the number of layers to offload to the GPU. When set to 0 the
// default of 99 offloads everything the device can hold. A negative value
// keeps the model on the CPU.
//
// ContextWindow is the number of tokens the context can hold across the whole
// conversation. When set to 0 the default of 8192 is used.
//
// NBatch is the largest number of tokens decoded in a single call. A prompt is
// decoded in one call, so when set to 0 it matches the context window.
//
// NUBatch is the physical batch size used while ingesting a prompt. When set
// to 0 the default of 512 is used. It never exceeds NBatch.
//
// Threads is the number of threads used for generation. When set to 0 the
// default of 4 is used.
//
// ThreadsBatch is the number of threads used for prompt processing. When set
// to 0 it matches Threads.
type Config struct {
	Log           Logger
	ModelFile     string
	Device        string
	GPULayers     int
	ContextWindow int
	NBatch        int
	NUBatch       int
	Threads       int
	ThreadsBatch  int
	Sampler       SamplerConfig
}

// SamplerConfig represents the sampler chain settings. The defaults are used
// when these values are set to 0.
//
// MinP drops tokens whose probability is below MinP times the probability of
// the most likely token. The default is 0.05.
//
// Temperature scales the token distribution. The default is 0.8.
//
// TopK keeps only the K most likely tokens. It is only added to the chain when
// set.
//
// TopP keeps the smallest set of tokens whose probabilities add up to TopP. It
// is only added to the chain when set.
//
// Seed seeds the distribution sampler. When set to 0 the library default seed
// is used.
type SamplerConfig struct {
	MinP        float32
	Temperature float32
	TopK        int32
	TopP        float32
	Seed        uint32
}

func validateConfig(cfg Config) error {
	if cfg.ModelFile == "" {
		return fmt.Errorf("validate-config: model file is required")
	}

	if _, err := os.Stat(cfg.ModelFile); err != nil {
		return fmt.Errorf("validate-config: model file %q: %w", cfg.ModelFile, err)
	}

	return nil
}

func adjustConfig(cfg Config) Config {
	switch {
	case cfg.GPULayers == 0:
		cfg.GPULayers = defGPULayers

	case cfg.GPULayers < 0:
		cfg.GPULayers = 0
	}

	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = defContextWindow
	}

	if cfg.NBatch <= 0 {
		cfg.NBatch = cfg.ContextWindow
	}

	if cfg.NUBatch <= 0 {
		cfg.NUBatch = defNUBatch
	}

	// The entire NUBatch of tokens must fit into a logical batch.
	if cfg.NUBatch > cfg.NBatch {
		cfg.NUBatch = cfg.NBatch
	}

	if cfg.Threads <= 0 {
		cfg.Threads = defThreads
	}

	if cfg.ThreadsBatch <= 0 {
		cfg.ThreadsBatch = cfg.Threads
	}

	cfg.Sampler = adjustSampler(cfg.Sampler)

	return cfg
}

func adjustSampler(sc SamplerConfig) SamplerConfig {
	if sc.MinP <= 0 {
		sc.MinP = defMinP
	}

	if sc.Temperature <= 0 {
		sc.Temperature = defTemperature
	}

	if sc.TopK < 0 {
		sc.TopK = 0
	}

	if sc.TopP < 0 || sc.TopP >= 1 {
		sc.TopP = 0
	}

	if sc.Seed == 0 {
		sc.Seed = llama.DefaultSeed
	}

	return sc
}

func modelParams(cfg Config) (llama.ModelParams, error) {
	mparams := llama.ModelDefaultParams()
	mparams.NGpuLayers = int32(cfg.GPULayers)

	if cfg.Device != "" {
		dev := llama.GGMLBackendDeviceByName(cfg.Device)
		if dev == 0 {
			return llama.ModelParams{}, fmt.Errorf("model-params: unknown device: %s", cfg.Device)
		}
		mparams.SetDevices([]llama.GGMLBackendDevice{dev})
	}

	return mparams, nil
}

func ctxParams(cfg Config) llama.ContextParams {
	ctxParams := llama.ContextDefaultParams()

	ctxParams.NCtx = uint32(cfg.ContextWindow)
	ctxParams.NBatch = uint32(cfg.NBatch)
	ctxParams.NUbatch = uint32(cfg.NUBatch)
	ctxParams.NThreads = int32(cfg.Threads)
	ctxParams.NThreadsBatch = int32(cfg.ThreadsBatch)

	return ctxParams
}

// newSampler builds the chain in the order top-k, top-p, min-p, temperature
// and finally the distribution that picks the token.
func newSampler(sc SamplerConfig) llama.Sampler {
	sampler := llama.SamplerChainInit(llama.SamplerChainDefaultParams())

	if sc.TopK > 0 {
		llama.SamplerChainAdd(sampler, llama.SamplerInitTopK(sc.TopK))
	}

	if sc.TopP > 0 {
		llama.SamplerChainAdd(sampler, llama.SamplerInitTopP(sc.TopP, 1))
	}

	llama.SamplerChainAdd(sampler, llama.SamplerInitMinP(sc.MinP, 1))
	llama.SamplerChainAdd(sampler, llama.SamplerInitTempExt(sc.Temperature, 0, 1.0))
	llama.SamplerChainAdd(sampler, llama.SamplerInitDist(sc.Seed))

	return sampler
}
