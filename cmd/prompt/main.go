// This program sends a single prompt to a local model through its chat
// template and prints the response.
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
		Prompt string `conf:"short:p,help:prompt text; read from stdin when empty"`
		boot.Config
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "Prompt a local gguf model once: prompt -p <text> <model-path.gguf>",
		},
	}

	help, err := boot.ParseConfig(&cfg)
	if err != nil || help {
		return err
	}

	log, err := boot.NewLogger("PROMPT", cfg.Log.Level)
	if err != nil {
		return err
	}

	prompt, err := readText(cfg.Prompt, os.Stdin)
	if err != nil {
		return err
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

	return con.Prompt(ctx, s, prompt)
}

func readText(text string, r io.Reader) (string, error) {
	if text != "" {
		return text, nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read-prompt: %w", err)
	}

	text = strings.TrimRight(string(data), "\r\n")
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("read-prompt: no prompt provided: use --prompt or stdin")
	}

	return text, nil
}
