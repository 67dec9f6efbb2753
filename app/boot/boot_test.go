package boot_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/llamachat/app/boot"
	"github.com/ardanlabs/llamachat/foundation/logger"
	"github.com/ardanlabs/llamachat/sdk/chat"
	"github.com/ardanlabs/llamachat/sdk/tools/defaults"
	"github.com/google/go-cmp/cmp"
)

func Test_ParseConfig(t *testing.T) {
	t.Setenv("LLAMACHAT_SAMPLING_TEMPERATURE", "0.5")

	orgArgs := os.Args
	defer func() { os.Args = orgArgs }()

	os.Args = []string{"chat", "--model-context-window=4096", "--stats", "model.gguf"}

	var cfg struct {
		conf.Version
		Args conf.Args
		boot.Config
	}

	help, err := boot.ParseConfig(&cfg)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}

	if help {
		t.Fatal("help was not requested")
	}

	if cfg.Model.ContextWindow != 4096 || cfg.Model.Threads != 4 {
		t.Errorf("got window %d threads %d", cfg.Model.ContextWindow, cfg.Model.Threads)
	}

	if cfg.Sampling.Temperature != 0.5 || cfg.Sampling.MinP != 0.05 {
		t.Errorf("got temperature %v min-p %v", cfg.Sampling.Temperature, cfg.Sampling.MinP)
	}

	if !cfg.Stats || cfg.Log.Level != "WARN" {
		t.Errorf("got stats %v log level %q", cfg.Stats, cfg.Log.Level)
	}

	if cfg.Args.Num(0) != "model.gguf" {
		t.Errorf("got args %v", cfg.Args)
	}
}

func Test_ResolveModel(t *testing.T) {
	basePath := t.TempDir()

	modelFile := filepath.Join(defaults.ModelsDir(basePath), "unsloth", "Qwen3-8B-GGUF", "Qwen3-8B-Q8_0.gguf")
	if err := os.MkdirAll(filepath.Dir(modelFile), 0755); err != nil {
		t.Fatalf("create dir: %v", err)
	}

	if err := os.WriteFile(modelFile, []byte("GGUF"), 0644); err != nil {
		t.Fatalf("write model: %v", err)
	}

	table := []struct {
		name string
		args conf.Args
		cfg  boot.ModelConfig
		exp  string
		err  error
	}{
		{
			name: "arg-wins",
			args: conf.Args{"/models/arg.gguf"},
			cfg:  boot.ModelConfig{File: "/models/file.gguf", Name: "qwen3-8b-q8_0"},
			exp:  "/models/arg.gguf",
		},
		{
			name: "file",
			cfg:  boot.ModelConfig{File: "/models/file.gguf", Name: "qwen3-8b-q8_0"},
			exp:  "/models/file.gguf",
		},
		{
			name: "name",
			cfg:  boot.ModelConfig{Name: "Qwen3-8B-Q8_0"},
			exp:  modelFile,
		},
		{
			name: "none",
			err:  boot.ErrNoModel,
		},
	}

	for _, tt := range table {
		t.Run(tt.name, func(t *testing.T) {
			cfg := boot.Config{Model: tt.cfg}
			cfg.Libs.BasePath = basePath

			got, err := boot.ResolveModel(tt.args, cfg)
			if !errors.Is(err, tt.err) {
				t.Fatalf("got error %v, exp %v", err, tt.err)
			}

			if got != tt.exp {
				t.Errorf("got %q, exp %q", got, tt.exp)
			}
		})
	}

	t.Run("unknown-name", func(t *testing.T) {
		cfg := boot.Config{Model: boot.ModelConfig{Name: "missing"}}
		cfg.Libs.BasePath = basePath

		if _, err := boot.ResolveModel(nil, cfg); err == nil {
			t.Error("expected an error for an unknown model")
		}
	})
}

func Test_NewSession(t *testing.T) {
	log := logger.New(io.Discard, logger.LevelInfo, "TEST", nil)

	jinjaFile := filepath.Join(t.TempDir(), "template.jinja")
	script := `{% for m in messages %}[{{ m.role }}]{{ m.content }}{% endfor %}{% if add_generation_prompt %}[assistant]{% endif %}`

	if err := os.WriteFile(jinjaFile, []byte(script), 0644); err != nil {
		t.Fatalf("write template: %v", err)
	}

	t.Run("jinja", func(t *testing.T) {
		eng := &echoEngine{}

		cfg := boot.Config{}
		cfg.Model.JinjaFile = jinjaFile
		cfg.Model.SystemPrompt = "be brief"

		s, err := boot.NewSession(log, eng, cfg)
		if err != nil {
			t.Fatalf("new session: %v", err)
		}

		if _, err := s.Turn(context.Background(), "hi", io.Discard); err != nil {
			t.Fatalf("turn: %v", err)
		}

		if exp := "[system]be brief[user]hi[assistant]"; eng.prompt != exp {
			t.Errorf("got prompt %q, exp %q", eng.prompt, exp)
		}
	})

	t.Run("native", func(t *testing.T) {
		eng := &echoEngine{}

		s, err := boot.NewSession(log, eng, boot.Config{})
		if err != nil {
			t.Fatalf("new session: %v", err)
		}

		if _, err := s.Turn(context.Background(), "hi", io.Discard); err != nil {
			t.Fatalf("turn: %v", err)
		}

		if diff := cmp.Diff("native:hi", eng.prompt); diff != "" {
			t.Errorf("wrong prompt (-exp +got):\n%s", diff)
		}
	})

	t.Run("missing-jinja", func(t *testing.T) {
		cfg := boot.Config{}
		cfg.Model.JinjaFile = filepath.Join(t.TempDir(), "missing.jinja")

		if _, err := boot.NewSession(log, &echoEngine{}, cfg); err == nil {
			t.Error("expected an error for a missing template file")
		}
	})
}

// =============================================================================

// echoEngine records the prompt it is asked to tokenize and ends every
// response immediately.
type echoEngine struct {
	prompt string
}

func (e *echoEngine) ApplyTemplate(template string, messages []chat.Message, addAssistant bool, buf []byte) int {
	s := template + ":" + messages[len(messages)-1].Content
	return copy(buf, s)
}

func (e *echoEngine) ChatTemplate() string { return "native" }

func (e *echoEngine) Tokenize(text string, addSpecial bool, parseSpecial bool) []chat.Token {
	e.prompt = text
	return make([]chat.Token, len(text))
}

func (e *echoEngine) ContextSize() int                              { return 4096 }
func (e *echoEngine) ContextUsed() int                              { return 0 }
func (e *echoEngine) Decode(tokens []chat.Token) error              { return nil }
func (e *echoEngine) ClearMemory()                                  {}
func (e *echoEngine) Sample() chat.Token                            { return 0 }
func (e *echoEngine) IsEOG(token chat.Token) bool                   { return true }
func (e *echoEngine) TokenToPiece(token chat.Token, buf []byte) int { return 0 }
