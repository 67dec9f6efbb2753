// Package boot provides the startup sequence shared by the chat, prompt and
// complete programs.
package boot

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/llamachat/foundation/logger"
	"github.com/ardanlabs/llamachat/sdk/chat"
	"github.com/ardanlabs/llamachat/sdk/engine"
	"github.com/ardanlabs/llamachat/sdk/tools/defaults"
	"github.com/ardanlabs/llamachat/sdk/tools/libs"
	"github.com/ardanlabs/llamachat/sdk/tools/models"
)

// Prefix is the environment variable prefix for every setting.
const Prefix = "LLAMACHAT"

// ErrNoModel is returned when no model was specified.
var ErrNoModel = errors.New("no model specified: pass <model-path.gguf>, --model-file or --model-name")

// ModelConfig represents the model and context settings.
type ModelConfig struct {
	File          string `conf:"help:path to a gguf model file"`
	Name          string `conf:"help:model id of a pulled model"`
	Device        string `conf:"help:backend device to load the model on"`
	GPULayers     int    `conf:"default:99,help:layers offloaded to the GPU; negative keeps the model on the CPU"`
	ContextWindow int    `conf:"default:8192"`
	NBatch        int    `conf:"help:defaults to the context window"`
	NUBatch       int    `conf:"default:512"`
	Threads       int    `conf:"default:4"`
	ThreadsBatch  int    `conf:"help:defaults to threads"`
	JinjaFile     string `conf:"help:jinja template that overrides the model template"`
	SystemPrompt  string
}

// SamplingConfig represents the sampler chain and response settings.
type SamplingConfig struct {
	MinP        float32 `conf:"default:0.05"`
	Temperature float32 `conf:"default:0.8"`
	TopK        int32
	TopP        float32
	Seed        uint32 `conf:"help:0 uses the library default seed"`
	MaxTokens   int    `conf:"help:0 is unlimited"`
}

// LibsConfig represents the llama.cpp library settings.
type LibsConfig struct {
	Path      string `conf:"help:folder holding the llama.cpp libraries"`
	BasePath  string `conf:"help:base folder for libraries and models"`
	Install   bool   `conf:"default:false,help:install or upgrade the libraries on start"`
	Processor string `conf:"help:cpu|cuda|metal|vulkan"`
	Version   string `conf:"help:llama.cpp release to install (latest when empty)"`
	LlamaLog  string `conf:"default:silent,help:silent or normal"`
}

// Config represents the settings shared by every driver.
type Config struct {
	Model    ModelConfig
	Sampling SamplingConfig
	Libs     LibsConfig
	Log      struct {
		Level string `conf:"default:WARN"`
	}
	Stats bool `conf:"default:false,help:print token usage after each response"`
}

// ParseConfig parses flags and env vars into cfg, which must be a pointer to
// a struct. It reports true when help or the version was requested and
// printed.
func ParseConfig(cfg any) (bool, error) {
	help, err := conf.Parse(Prefix, cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return true, nil
		}

		return false, fmt.Errorf("parsing config: %w", err)
	}

	return false, nil
}

// NewLogger constructs the text logger every driver writes to stderr, which
// keeps stdout for the conversation.
func NewLogger(service string, level string) (*logger.Logger, error) {
	lvl, err := logger.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	return logger.NewWithFormat(os.Stderr, logger.FormatText, lvl, service, nil), nil
}

// =============================================================================

// ResolveModel returns the model file to load. The positional argument wins,
// then the model file setting, then the model name looked up in the models
// index.
func ResolveModel(args conf.Args, cfg Config) (string, error) {
	if modelFile := args.Num(0); modelFile != "" {
		return modelFile, nil
	}

	if cfg.Model.File != "" {
		return cfg.Model.File, nil
	}

	if cfg.Model.Name == "" {
		return "", ErrNoModel
	}

	mdls, err := models.New(cfg.Libs.BasePath)
	if err != nil {
		return "", fmt.Errorf("resolve-model: %w", err)
	}

	mp, err := mdls.RetrievePath(cfg.Model.Name)
	if err != nil {
		return "", fmt.Errorf("resolve-model: model %q not found, use 'llamachat pull' first: %w", cfg.Model.Name, err)
	}

	if len(mp.ModelFiles) == 0 {
		return "", fmt.Errorf("resolve-model: model %q has no files", cfg.Model.Name)
	}

	// The library loads the remaining shards from the first one.
	return mp.ModelFiles[0], nil
}

// Start installs the libraries when asked, initializes the backend and loads
// the model.
func Start(ctx context.Context, log *logger.Logger, cfg Config, modelFile string) (*engine.Engine, error) {
	if cfg.Libs.Install {
		if err := installLibs(ctx, log, cfg.Libs); err != nil {
			return nil, err
		}
	}

	// -------------------------------------------------------------------------

	logLevel, err := engine.ParseLogLevel(cfg.Libs.LlamaLog)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	libPath := cfg.Libs.Path
	if libPath == "" && cfg.Libs.BasePath != "" {
		libPath = defaults.LibsDir(cfg.Libs.BasePath)
	}

	log.Info(ctx, "startup", "status", "initializing llama.cpp")

	if err := engine.Init(engine.WithLibPath(libPath), engine.WithLogLevel(logLevel)); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	log.Info(ctx, "startup", "status", "llama.cpp initialized", "lib-path", engine.LibraryLocation())

	// -------------------------------------------------------------------------

	eng, err := engine.New(engine.Config{
		Log:           log.Info,
		ModelFile:     modelFile,
		Device:        cfg.Model.Device,
		GPULayers:     cfg.Model.GPULayers,
		ContextWindow: cfg.Model.ContextWindow,
		NBatch:        cfg.Model.NBatch,
		NUBatch:       cfg.Model.NUBatch,
		Threads:       cfg.Model.Threads,
		ThreadsBatch:  cfg.Model.ThreadsBatch,
		Sampler: engine.SamplerConfig{
			MinP:        cfg.Sampling.MinP,
			Temperature: cfg.Sampling.Temperature,
			TopK:        cfg.Sampling.TopK,
			TopP:        cfg.Sampling.TopP,
			Seed:        cfg.Sampling.Seed,
		},
	})

	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	mi := eng.ModelInfo()
	log.Info(ctx, "startup", "status", "model ready", "name", mi.Name, "desc", mi.Desc, "size", mi.Size, "context-window", eng.ContextSize())

	return eng, nil
}

// NewSession builds a session over the engine. The jinja file, when set,
// replaces the model's chat template.
func NewSession(log *logger.Logger, eng chat.Inference, cfg Config) (*chat.Session, error) {
	fmtr, err := newFormatter(eng, cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("new-session: %w", err)
	}

	s := chat.NewSession(eng, fmtr, chat.SessionConfig{
		Log:          log.Debug,
		Notices:      os.Stderr,
		SystemPrompt: cfg.Model.SystemPrompt,
		MaxTokens:    cfg.Sampling.MaxTokens,
	})

	return s, nil
}

// =============================================================================

func newFormatter(eng chat.Inference, mc ModelConfig) (chat.Formatter, error) {
	if mc.JinjaFile != "" {
		return chat.NewJinjaFormatterFromFile(mc.JinjaFile)
	}

	// The buffer starts at the size of the context window.
	return chat.NewNativeFormatter(eng, eng.ChatTemplate(), eng.ContextSize()), nil
}

func installLibs(ctx context.Context, log *logger.Logger, lc LibsConfig) error {
	arch, err := defaults.Arch("")
	if err != nil {
		return fmt.Errorf("install-libs: %w", err)
	}

	opSys, err := defaults.OS("")
	if err != nil {
		return fmt.Errorf("install-libs: %w", err)
	}

	processor, err := defaults.Processor(lc.Processor)
	if err != nil {
		return fmt.Errorf("install-libs: %w", err)
	}

	lib := libs.NewWithSettings(lc.BasePath, lc.Version, arch, opSys, processor, true)

	tag, err := lib.Download(ctx, log.Info)
	if err != nil {
		return fmt.Errorf("install-libs: %w", err)
	}

	log.Info(ctx, "startup", "status", "llama.cpp ready", "version", tag.Version, "path", lib.LibsPath())

	return nil
}
