package main

import (
	"fmt"
	"os"
)

// =============================================================================
// Cleanup
// =============================================================================

// Cleanup removes the extracted archive directories and the scratch tree.
// Callers only run it when the current run did the extraction itself.
func Cleanup(cfg *Config, archiveDirs []string, bar *Bar) error {
	for _, dir := range archiveDirs {
		bar.Step()
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("remove %s: %w", dir, err)
		}
	}
	bar.Step()
	if err := os.RemoveAll(cfg.Paths.ScratchDir); err != nil {
		return fmt.Errorf("remove scratch directory: %w", err)
	}
	bar.Finish()
	return nil
}
