package models

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// File provides information about a model.
type File struct {
	ID          string
	OwnedBy     string
	ModelFamily string
	Shards      int
	Size        int64
	Modified    time.Time
}

// RetrieveFiles returns all the models in the models folder sorted by id.
func (m *Models) RetrieveFiles() ([]File, error) {
	if err := m.BuildIndex(); err != nil {
		return nil, fmt.Errorf("retrieve-files: %w", err)
	}

	var list []File

	for modelID, mp := range m.loadIndex() {
		mf, err := m.toFile(modelID, mp)
		if err != nil {
			return nil, fmt.Errorf("retrieve-files: %w", err)
		}

		list = append(list, mf)
	}

	slices.SortFunc(list, func(a, b File) int {
		return strings.Compare(a.ID, b.ID)
	})

	return list, nil
}

// RetrieveFile returns the file information for the specified model.
func (m *Models) RetrieveFile(modelID string) (File, error) {
	mp, err := m.RetrievePath(modelID)
	if err != nil {
		return File{}, fmt.Errorf("retrieve-file: %w", err)
	}

	mf, err := m.toFile(extractModelID(modelID), mp)
	if err != nil {
		return File{}, fmt.Errorf("retrieve-file: %w", err)
	}

	return mf, nil
}

func (m *Models) toFile(modelID string, mp Path) (File, error) {
	if len(mp.ModelFiles) == 0 {
		return File{}, fmt.Errorf("no model files found for %q", modelID)
	}

	var totalSize int64
	var modified time.Time

	for _, f := range mp.ModelFiles {
		info, err := os.Stat(f)
		if err != nil {
			return File{}, fmt.Errorf("stat: %w", err)
		}

		totalSize += info.Size()
		if info.ModTime().After(modified) {
			modified = info.ModTime()
		}
	}

	var owner, family string

	rel, err := filepath.Rel(m.modelsPath, mp.ModelFiles[0])
	if err == nil {
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) == 3 {
			owner, family = parts[0], parts[1]
		}
	}

	mf := File{
		ID:          modelID,
		OwnedBy:     owner,
		ModelFamily: family,
		Shards:      len(mp.ModelFiles),
		Size:        totalSize,
		Modified:    modified,
	}

	return mf, nil
}
