package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hybridgroup/yzma/pkg/llama"
)

func Test_AdjustConfig(t *testing.T) {
	table := []struct {
		name string
		cfg  Config
		exp  Config
	}{
		{
			name: "defaults",
			cfg:  Config{ModelFile: "model.gguf"},
			exp: Config{
				ModelFile:     "model.gguf",
				GPULayers:     99,
				ContextWindow: 8192,
				NBatch:        8192,
				NUBatch:       512,
				Threads:       4,
				ThreadsBatch:  4,
				Sampler: SamplerConfig{
					MinP:        0.05,
					Temperature: 0.8,
					Seed:        llama.DefaultSeed,
				},
			},
		},
		{
			name: "cpu-only-small-batch",
			cfg: Config{
				GPULayers:     -1,
				ContextWindow: 2048,
				NBatch:        256,
				Threads:       8,
				Sampler: SamplerConfig{
					MinP:        0.1,
					Temperature: 0.2,
					TopK:        40,
					TopP:        0.9,
					Seed:        42,
				},
			},
			exp: Config{
				GPULayers:     0,
				ContextWindow: 2048,
				NBatch:        256,
				NUBatch:       256,
				Threads:       8,
				ThreadsBatch:  8,
				Sampler: SamplerConfig{
					MinP:        0.1,
					Temperature: 0.2,
					TopK:        40,
					TopP:        0.9,
					Seed:        42,
				},
			},
		},
		{
			name: "invalid-sampler",
			cfg: Config{
				Sampler: SamplerConfig{
					TopK: -5,
					TopP: 1.5,
				},
			},
			exp: Config{
				GPULayers:     99,
				ContextWindow: 8192,
				NBatch:        8192,
				NUBatch:       512,
				Threads:       4,
				ThreadsBatch:  4,
				Sampler: SamplerConfig{
					MinP:        0.05,
					Temperature: 0.8,
					Seed:        llama.DefaultSeed,
				},
			},
		},
	}

	for _, tt := range table {
		t.Run(tt.name, func(t *testing.T) {
			got := adjustConfig(tt.cfg)

			if diff := cmp.Diff(tt.exp, got); diff != "" {
				t.Errorf("wrong config (-exp +got):\n%s", diff)
			}
		})
	}
}

func Test_ValidateConfig(t *testing.T) {
	if err := validateConfig(Config{}); err == nil {
		t.Error("expected an error without a model file")
	}

	if err := validateConfig(Config{ModelFile: filepath.Join(t.TempDir(), "missing.gguf")}); err == nil {
		t.Error("expected an error for a missing model file")
	}

	modelFile := filepath.Join(t.TempDir(), "model.gguf")
	if err := os.WriteFile(modelFile, []byte("GGUF"), 0644); err != nil {
		t.Fatalf("write model file: %v", err)
	}

	if err := validateConfig(Config{ModelFile: modelFile}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func Test_NewRequiresInit(t *testing.T) {
	if _, err := New(Config{ModelFile: "model.gguf"}); err == nil {
		t.Error("expected an error when the library is not initialized")
	}
}

func Test_ModelName(t *testing.T) {
	table := map[string]string{
		"/models/Qwen3-8B-Q8_0.gguf":                      "Qwen3-8B-Q8_0",
		"gpt-oss-120b-F16-00001-of-00002.gguf":            "gpt-oss-120b-F16",
		"/models/unsloth/gemma/gemma-3-4b-it-Q4_K_M.gguf": "gemma-3-4b-it-Q4_K_M",
	}

	for in, exp := range table {
		if got := ModelName(in); got != exp {
			t.Errorf("%s: got %q, exp %q", in, got, exp)
		}
	}
}

func Test_ParseLogLevel(t *testing.T) {
	table := []struct {
		in  string
		exp LogLevel
		err bool
	}{
		{in: "", exp: LogSilent},
		{in: "silent", exp: LogSilent},
		{in: "Normal", exp: LogNormal},
		{in: "verbose", err: true},
	}

	for _, tt := range table {
		lvl, err := ParseLogLevel(tt.in)
		if tt.err != (err != nil) {
			t.Fatalf("%q: unexpected error result: %v", tt.in, err)
		}

		if lvl != tt.exp {
			t.Errorf("%q: got %d, exp %d", tt.in, lvl, tt.exp)
		}
	}
}
