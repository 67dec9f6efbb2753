// Package libs provides the libs command code.
package libs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ardanlabs/llamachat/sdk/engine"
	"github.com/ardanlabs/llamachat/sdk/tools/defaults"
	"github.com/ardanlabs/llamachat/sdk/tools/libs"
)

// ErrInvalidArguments is returned when the flags do not describe a valid
// installation.
var ErrInvalidArguments = errors.New("invalid arguments")

// Run executes the libs command.
func Run(processor string, version string, upgrade bool) error {
	arch, err := defaults.Arch("")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArguments, err)
	}

	opSys, err := defaults.OS("")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArguments, err)
	}

	proc, err := defaults.Processor(processor)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArguments, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	lib := libs.NewWithSettings("", version, arch, opSys, proc, upgrade)

	tag, err := lib.Download(ctx, engine.FmtLogger)
	if err != nil {
		return fmt.Errorf("libs: unable to install llama.cpp: %w", err)
	}

	if err := engine.Init(engine.WithLibPath(lib.LibsPath())); err != nil {
		return fmt.Errorf("libs: installation invalid: %w", err)
	}

	fmt.Println()
	fmt.Printf("Path:      %s\n", lib.LibsPath())
	fmt.Printf("Version:   %s\n", tag.Version)
	fmt.Printf("Processor: %s\n", lib.Processor())

	return nil
}
