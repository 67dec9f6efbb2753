package models

import (
	"fmt"
	"os"
)

// Remove deletes every file of the specified model from the models folder.
func (m *Models) Remove(modelID string) (err error) {
	mp, err := m.RetrievePath(modelID)
	if err != nil {
		return fmt.Errorf("remove-model: %w", err)
	}

	defer func() {
		if errDfr := m.BuildIndex(); errDfr != nil && err == nil {
			err = errDfr
		}
	}()

	for _, f := range mp.ModelFiles {
		if err := os.Remove(f); err != nil {
			return fmt.Errorf("remove-model: unable to remove model file %q: %w", f, err)
		}
	}

	return nil
}
