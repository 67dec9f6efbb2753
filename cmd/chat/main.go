// This program holds an interactive conversation with a local model.
package main

import (
	"context"
	"fmt"
	"os"

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
		Args conf.Args
		boot.Config
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "Chat with a local gguf model: chat <model-path.gguf>",
		},
	}

	help, err := boot.ParseConfig(&cfg)
	if err != nil || help {
		return err
	}

	log, err := boot.NewLogger("CHAT", cfg.Log.Level)
	if err != nil {
		return err
	}

	log.BuildInfo(ctx)

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

	log.Info(ctx, "chat", "status", "session started", "session-id", s.ID())

	// -------------------------------------------------------------------------

	con := chat.NewConsole(os.Stdin, os.Stdout, os.Stderr, cfg.Stats)

	return con.Chat(ctx, s)
}
