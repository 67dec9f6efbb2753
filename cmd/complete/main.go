// This program continues raw text with a local model, without applying a
// chat template.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/llamachat/app/boot"
	"github.com/ardanlabs/llamachat/sdk/chat"
)

var build = "develop"

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg := struct {
		conf.Version
		Args   conf.Args
		Prompt string `conf:"short:p,help:text to continue; read from stdin when empty"`
		boot.Config
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "Complete raw text with a local gguf model: complete -p <text> <model-path.gguf>",
		},
	}

	help, err := boot.ParseConfig(&cfg)
	if err != nil || help {
		return err
	}

	log, err := boot.NewLogger("COMPLETE", cfg.Log.Level)
	if err != nil {
		return err
	}

	text := cfg.Prompt
	if text == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read-text: %w", err)
		}

		text = string(data)
	}

	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("read-text: no text provided: use --prompt or stdin")
	}

	// -------------------------------------------------------------------------

	modelFile, err := boot.ResolveModel(cfg.Args, cfg.Config)
	if err != nil {
		return err
	}

	eng, err := boot.Start(ctx, log, cfg.Config, modelFile)
	if err != nil {
		return err
	}

	defer eng.Unload()

	s, err := boot.NewSession(log, eng, cfg.Config)
	if err != nil {
		return err
	}

	// -------------------------------------------------------------------------

	con := chat.NewConsole(os.Stdin, os.Stdout, os.Stderr, cfg.Stats)

	return con.Complete(ctx, s, text)
}
