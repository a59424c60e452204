package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// =============================================================================
// Directory Flattener
// =============================================================================

// scanExtracted lists what the flattener works on inside the extracted
// archive directories: every directory from the category level down
// (<archive>/<marker>/<category>/...) and every regular file beneath a
// category directory. Files sitting directly in the marker directory are not
// part of the photo export and are ignored.
func scanExtracted(archiveDirs []string, marker string) (locations, files []string, err error) {
	for _, dir := range archiveDirs {
		markerPath := filepath.Join(dir, marker)
		categories, err := os.ReadDir(markerPath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, nil, fmt.Errorf("read %s: %w", markerPath, err)
		}

		for _, category := range categories {
			if !category.IsDir() {
				continue
			}
			root := filepath.Join(markerPath, category.Name())
			err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				switch {
				case d.IsDir():
					locations = append(locations, path)
				case d.Type().IsRegular():
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return nil, nil, fmt.Errorf("walk %s: %w", root, err)
			}
		}
	}
	return locations, files, nil
}

// mirrorRel returns the part of path that follows the marker directory,
// looked up relative to the source directory. ok is false for paths that do
// not contain the marker.
func mirrorRel(cfg *Config, path string) (rel string, ok bool) {
	inSource, err := filepath.Rel(cfg.SourceDir, path)
	if err != nil || inSource == ".." || strings.HasPrefix(inSource, ".."+string(filepath.Separator)) {
		inSource = path
	}

	segments := strings.Split(filepath.ToSlash(inSource), "/")
	for i, seg := range segments {
		if seg == cfg.Archives.MarkerDir {
			rest := segments[i+1:]
			if len(rest) == 0 {
				return "", false
			}
			return filepath.Join(rest...), true
		}
	}
	return "", false
}

// MirrorLocations recreates each location under the scratch root, one path
// segment at a time, skipping directories that already exist. It returns
// the number of directories created.
func MirrorLocations(ctx context.Context, cfg *Config, locations []string, bar *Bar) (int, error) {
	if err := os.MkdirAll(cfg.Paths.ScratchDir, 0o755); err != nil {
		return 0, fmt.Errorf("create scratch directory: %w", err)
	}

	created := 0
	for _, loc := range locations {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		bar.Step()

		rel, ok := mirrorRel(cfg, loc)
		if !ok {
			continue
		}
		current := cfg.Paths.ScratchDir
		for _, seg := range strings.Split(rel, string(filepath.Separator)) {
			current = filepath.Join(current, seg)
			if exists(current) {
				continue
			}
			if err := os.Mkdir(current, 0o755); err != nil {
				return created, fmt.Errorf("create %s: %w", current, err)
			}
			created++
		}
	}
	bar.Finish()
	return created, nil
}

// MoveIntoScratch moves every file to its mirrored location under the
// scratch root. Files whose destination already exists are left where they
// are, which lets an interrupted run pick up where it stopped.
func MoveIntoScratch(ctx context.Context, cfg *Config, files []string, bar *Bar) (int, error) {
	moved := 0
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return moved, err
		}
		bar.Step()

		rel, ok := mirrorRel(cfg, file)
		if !ok {
			continue
		}
		dst := filepath.Join(cfg.Paths.ScratchDir, rel)
		if exists(dst) {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return moved, err
		}
		if err := moveFile(file, dst); err != nil {
			return moved, err
		}
		moved++
	}
	bar.Finish()
	return moved, nil
}
