package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// =============================================================================
// Merger
// =============================================================================

// MergeResult tallies what the merger did with the accepted pairs.
type MergeResult struct {
	Merged         int
	AlreadyPresent int   // destination existed with the same content
	Collisions     int   // destination existed with different content
	Photos         int   // merged files with a photo extension
	Videos         int   // merged files with a video extension
	Bytes          int64 // total size of merged files

	// Undated holds files whose sidecar yielded no usable capture time.
	Undated []string
	// Collided holds files whose output name is taken by a different file.
	Collided []string
	// Failed holds files whose sidecar could not be read or whose
	// placement failed.
	Failed []string

	Entries []ManifestEntry
}

// Leftovers are the files the merger could not place, all still in the
// scratch tree. Undated files are included only when withUndated is set.
func (r MergeResult) Leftovers(withUndated bool) []string {
	out := make([]string, 0, len(r.Undated)+len(r.Collided)+len(r.Failed))
	if withUndated {
		out = append(out, r.Undated...)
	}
	out = append(out, r.Collided...)
	return append(out, r.Failed...)
}

// MergePairs places each paired file in the output directory with its
// access and modification times set to the sidecar's capture time, then
// removes the sidecar. Pairs whose destination already exists are left
// untouched. Per-pair problems are logged and recorded in the result; only
// a context cancellation or an unusable output directory is returned as an
// error.
func MergePairs(ctx context.Context, cfg *Config, logger *slog.Logger, pairs []Pair, bar *Bar) (MergeResult, error) {
	var res MergeResult
	if err := os.MkdirAll(cfg.Paths.OutputDir, 0o755); err != nil {
		return res, fmt.Errorf("create output directory: %w", err)
	}

	for _, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		bar.Step()

		name := filepath.Base(pair.File)
		dst := filepath.Join(cfg.Paths.OutputDir, name)
		if exists(dst) {
			if sameContent(pair.File, dst) {
				res.AlreadyPresent++
			} else {
				res.Collisions++
				res.Collided = appendExisting(res.Collided, pair.File)
				logger.Warn("output name already taken by a different file",
					slog.String("file", pair.File),
					slog.String("destination", dst))
			}
			continue
		}

		sidecar, err := ReadSidecar(pair.Metadata)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				logger.Warn("sidecar missing", slog.String("metadata", pair.Metadata))
			} else {
				logger.Error("read sidecar failed", slog.String("metadata", pair.Metadata), slog.Any("error", err))
			}
			res.Failed = appendExisting(res.Failed, pair.File)
			continue
		}

		captured, source, err := resolveCaptureTime(cfg.Merge, sidecar, pair.File)
		if err != nil {
			logger.Warn("no capture time in sidecar",
				slog.String("file", pair.File),
				slog.String("metadata", pair.Metadata))
			res.Undated = appendExisting(res.Undated, pair.File)
			continue
		}

		info, err := os.Stat(pair.File)
		if err != nil {
			logger.Warn("paired file missing", slog.String("file", pair.File), slog.Any("error", err))
			continue
		}

		if err := placeFile(pair.File, dst, captured); err != nil {
			logger.Error("place file failed", slog.String("file", pair.File), slog.Any("error", err))
			res.Failed = appendExisting(res.Failed, pair.File)
			continue
		}
		if err := os.Remove(pair.Metadata); err != nil {
			logger.Warn("remove sidecar failed", slog.String("metadata", pair.Metadata), slog.Any("error", err))
		}

		res.Merged++
		res.Bytes += info.Size()
		switch ext := filepath.Ext(name); {
		case isPhotoFile(ext):
			res.Photos++
		case isVideoFile(ext):
			res.Videos++
		}
		res.Entries = append(res.Entries, ManifestEntry{
			Filename:    name,
			SourcePath:  pair.File,
			Metadata:    pair.Metadata,
			CaptureTime: captured,
			Source:      source,
			Location:    sidecar.Location,
			Size:        info.Size(),
			Hash:        fileHash(dst),
		})
		logger.Debug("merged",
			slog.String("file", name),
			slog.String("capture_time", captured.Format(time.RFC3339)),
			slog.String("source", string(source)))
	}
	bar.Finish()
	return res, nil
}

func appendExisting(list []string, path string) []string {
	if exists(path) {
		return append(list, path)
	}
	return list
}

// =============================================================================
// Fallback Handler
// =============================================================================

// MoveToFailed moves each file into the FAILED directory under its bare
// name. A different file already holding that name gets a numeric suffix
// instead of being overwritten; an identical one means the file was already
// moved by an earlier run and the scratch copy is dropped.
func MoveToFailed(ctx context.Context, cfg *Config, logger *slog.Logger, files []string, bar *Bar) (int, error) {
	failedDir := cfg.FailedDir()
	if err := os.MkdirAll(failedDir, 0o755); err != nil {
		return 0, fmt.Errorf("create %s: %w", failedDir, err)
	}

	moved := 0
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return moved, err
		}
		bar.Step()

		if !exists(file) {
			continue
		}
		dst := filepath.Join(failedDir, filepath.Base(file))
		if exists(dst) {
			if sameContent(file, dst) {
				if err := os.Remove(file); err != nil {
					logger.Warn("remove duplicate failed", slog.String("file", file), slog.Any("error", err))
				}
				continue
			}
			dst = uniquePath(dst)
		}
		if err := moveFile(file, dst); err != nil {
			logger.Error("move to FAILED failed", slog.String("file", file), slog.Any("error", err))
			continue
		}
		moved++
	}
	bar.Finish()
	return moved, nil
}
