// Package pull provides the pull command code.
package pull

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/ardanlabs/llamachat/sdk/engine"
	"github.com/ardanlabs/llamachat/sdk/tools/models"
)

// Run executes the pull command.
func Run(args []string) error {
	mdls, err := models.New("")
	if err != nil {
		return fmt.Errorf("pull: %w", err)
	}

	fmt.Println("ModelPath:", mdls.Path())
	for _, arg := range args {
		fmt.Println("ModelURL :", arg)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	mp, err := mdls.Download(ctx, engine.FmtLogger, args...)
	if err != nil {
		return err
	}

	if !mp.Downloaded {
		fmt.Println("Already downloaded")
		return nil
	}

	fmt.Println("Download Completed")
	return nil
}
