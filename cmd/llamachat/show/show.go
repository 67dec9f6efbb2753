// Package show provides the show command code.
package show

import (
	"fmt"

	"github.com/ardanlabs/llamachat/sdk/engine"
	"github.com/ardanlabs/llamachat/sdk/tools/libs"
	"github.com/ardanlabs/llamachat/sdk/tools/models"
)

// Run executes the show command.
func Run(args []string) error {
	mdls, err := models.New("")
	if err != nil {
		return fmt.Errorf("show: %w", err)
	}

	mp, err := mdls.RetrievePath(args[0])
	if err != nil {
		return fmt.Errorf("show: %w", err)
	}

	mf, err := mdls.RetrieveFile(args[0])
	if err != nil {
		return fmt.Errorf("show: %w", err)
	}

	if err := engine.Init(engine.WithLibPath(libs.Path(""))); err != nil {
		return fmt.Errorf("show: unable to init llama.cpp: %w", err)
	}

	// Only the metadata is needed, so keep the model off the GPU.
	eng, err := engine.New(engine.Config{
		ModelFile:     mp.ModelFiles[0],
		GPULayers:     -1,
		ContextWindow: 512,
	})
	if err != nil {
		return fmt.Errorf("show: unable to load model: %w", err)
	}

	defer eng.Unload()

	mi := eng.ModelInfo()

	fmt.Println()
	fmt.Printf("ID:          %s\n", mf.ID)
	fmt.Printf("OwnedBy:     %s\n", mf.OwnedBy)
	fmt.Printf("Family:      %s\n", mf.ModelFamily)
	fmt.Printf("Name:        %s\n", mi.Name)
	fmt.Printf("Desc:        %s\n", mi.Desc)
	fmt.Printf("Size:        %.2f MiB\n", float64(mi.Size)/(1024*1024))
	fmt.Printf("OnDisk:      %.2f MiB in %d files\n", float64(mf.Size)/(1024*1024), mf.Shards)
	fmt.Printf("HasEncoder:  %t\n", mi.HasEncoder)
	fmt.Printf("HasDecoder:  %t\n", mi.HasDecoder)
	fmt.Printf("IsRecurrent: %t\n", mi.IsRecurrent)
	fmt.Printf("IsHybrid:    %t\n", mi.IsHybrid)
	fmt.Println("Metadata:")
	for _, k := range mi.MetadataKeys() {
		fmt.Printf("  %s: %s\n", k, mi.Metadata[k])
	}

	return nil
}
