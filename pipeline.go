package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gofrs/flock"
)

// ErrAlreadyRunning is returned when another run holds the source lock.
var ErrAlreadyRunning = errors.New("another run is already processing this source directory")

// =============================================================================
// Pipeline
// =============================================================================

// Run executes every stage in order against cfg: extract, flatten, pair,
// merge, route leftovers to FAILED, and clean up.
//
// When the scratch tree already exists at startup the run is treated as a
// resume: archives are not extracted again and nothing is deleted at the
// end, apart from empty scratch directories.
func Run(ctx context.Context, cfg *Config, logger *slog.Logger, ui *Reporter) (Summary, error) {
	summary := Summary{OutputDir: cfg.Paths.OutputDir}

	info, err := os.Stat(cfg.SourceDir)
	if err != nil {
		return summary, fmt.Errorf("source directory: %w", err)
	}
	if !info.IsDir() {
		return summary, fmt.Errorf("source %s is not a directory", cfg.SourceDir)
	}

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return summary, fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return summary, ErrAlreadyRunning
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("release lock failed", slog.Any("error", err))
		}
		_ = os.Remove(cfg.LockPath())
	}()

	ui.Printf("Fixing Google Takeout metadata: %s", cfg.SourceDir)
	resumed := exists(cfg.Paths.ScratchDir)

	// Archive Locator & Extractor
	archives, err := FindArchives(cfg.SourceDir, cfg.Archives.Prefix, cfg.Archives.Extensions)
	if err != nil {
		return summary, err
	}
	summary.Archives = len(archives)

	ui.Section("Unpacking")
	switch {
	case resumed:
		ui.Printf("Scratch folder already exists at %s. Skipping unpacking.", cfg.Paths.ScratchDir)
	case len(archives) == 0:
		ui.Printf("No archives found. Skipping unpacking.")
	default:
		ui.Printf("Found %d archives, unpacking...", len(archives))
		bar := ui.Bar("unpacking", len(archives))
		for _, a := range archives {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			bar.Step()
			extracted, err := ExtractArchive(a)
			if err != nil {
				return summary, err
			}
			if extracted {
				summary.Extracted++
				logger.Debug("archive extracted", slog.String("archive", a.Path), slog.String("format", a.Format.String()))
			}
		}
		bar.Finish()
	}

	var archiveDirs []string
	for _, a := range archives {
		if exists(a.Dir()) {
			archiveDirs = append(archiveDirs, a.Dir())
		}
	}

	// Directory Flattener
	locations, files, err := scanExtracted(archiveDirs, cfg.Archives.MarkerDir)
	if err != nil {
		return summary, err
	}
	ui.Section("Creating intermediate locations")
	if _, err := MirrorLocations(ctx, cfg, locations, ui.Bar("directories", len(locations))); err != nil {
		return summary, err
	}
	ui.Section("Moving files to intermediate location")
	moved, err := MoveIntoScratch(ctx, cfg, files, ui.Bar("files", len(files)))
	if err != nil {
		return summary, err
	}
	logger.Debug("files moved into scratch tree", slog.Int("moved", moved), slog.Int("seen", len(files)))

	// Pairing Engine
	ui.Section("Creating file pairs")
	inv, err := scanScratch(cfg)
	if err != nil {
		return summary, err
	}
	summary.AllFiles = len(inv.Files)
	summary.MetadataFiles = len(inv.Metadata)

	pairing, err := PairFiles(ctx, cfg, inv, ui.Bar("directories", len(inv.Dirs)))
	if err != nil {
		return summary, err
	}
	summary.Pairs = len(pairing.Pairs)
	summary.LocalPairs = pairing.LocalPairs
	summary.Unmatched = len(pairing.Unmatched)

	// Merger
	ui.Section("Merging files with metadata")
	merged, err := MergePairs(ctx, cfg, logger, pairing.Pairs, ui.Bar("pairs", len(pairing.Pairs)))
	summary.Merge = merged
	if err != nil {
		return summary, err
	}

	if cfg.Merge.Manifest && len(merged.Entries) > 0 {
		added, err := updateManifest(cfg.ManifestPath(), merged.Entries)
		if err != nil {
			logger.Error("update manifest failed", slog.Any("error", err))
		} else {
			logger.Debug("manifest updated", slog.Int("added", added))
		}
	}

	// Fallback Handler
	remaining := append(pairing.Unmatched, merged.Leftovers(cfg.Merge.Undated == UndatedFail)...)
	if len(remaining) > 0 {
		ui.Section("Moving remaining files to " + cfg.FailedDir())
		n, err := MoveToFailed(ctx, cfg, logger, remaining, ui.Bar("files", len(remaining)))
		summary.MovedToFailed = n
		if err != nil {
			return summary, err
		}
	}

	// Cleanup
	if !resumed {
		ui.Section("Cleaning directories")
		if err := Cleanup(cfg, archiveDirs, ui.Bar("directories", len(archiveDirs)+1)); err != nil {
			return summary, err
		}
	} else {
		pruned, err := pruneEmptyDirs(cfg.Paths.ScratchDir)
		if err != nil {
			logger.Warn("prune scratch tree failed", slog.Any("error", err))
		} else if pruned > 0 {
			logger.Debug("pruned empty scratch directories", slog.Int("removed", pruned))
		}
	}

	if !cfg.StartedAt.IsZero() {
		summary.Elapsed = time.Since(cfg.StartedAt)
	}
	logger.Info("run finished",
		slog.Int("merged", merged.Merged),
		slog.Int("failed", summary.MovedToFailed),
		slog.Duration("elapsed", summary.Elapsed))
	return summary, nil
}
