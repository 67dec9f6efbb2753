// Package remove provides the remove command code.
package remove

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/ardanlabs/llamachat/sdk/tools/models"
)

// Run executes the remove command after asking for confirmation on in.
func Run(args []string, in io.Reader) error {
	mdls, err := models.New("")
	if err != nil {
		return fmt.Errorf("remove: %w", err)
	}

	modelID := args[0]

	if _, err := mdls.RetrievePath(modelID); err != nil {
		return fmt.Errorf("remove: %w", err)
	}

	fmt.Printf("\nAre you sure you want to remove %q? (y/n): ", modelID)

	response, _ := bufio.NewReader(in).ReadString('\n')
	response = strings.TrimSpace(response)

	if response != "y" && response != "Y" {
		fmt.Println("Remove cancelled")
		return nil
	}

	if err := mdls.Remove(modelID); err != nil {
		return err
	}

	fmt.Println("Remove complete")

	return nil
}
