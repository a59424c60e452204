package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

// =============================================================================
// Manifest Management
// =============================================================================

// ManifestEntry describes one merged file.
type ManifestEntry struct {
	Filename    string        // Name in the output directory
	SourcePath  string        // Scratch path it was merged from
	Metadata    string        // Sidecar it was paired with
	CaptureTime time.Time     // Time applied to the file
	Source      CaptureSource // Where CaptureTime came from
	Location    string        // Sidecar location, possibly empty
	Size        int64         // File size in bytes
	Hash        string        // MD5 hash of first 64KB
}

var manifestHeaders = []string{
	"filename",
	"source_path",
	"metadata_path",
	"capture_time",
	"capture_source",
	"location",
	"file_size_bytes",
	"file_hash",
}

func (e ManifestEntry) row() []string {
	return []string{
		e.Filename,
		e.SourcePath,
		e.Metadata,
		e.CaptureTime.UTC().Format(time.RFC3339),
		string(e.Source),
		e.Location,
		strconv.FormatInt(e.Size, 10),
		e.Hash,
	}
}

// updateManifest merges entries into the CSV at path, keyed by filename.
// Rows from earlier runs are preserved; the file is rewritten sorted by
// filename. Returns the number of rows added.
func updateManifest(path string, entries []ManifestEntry) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}

	existing := make(map[string][]string)
	if f, err := os.Open(path); err == nil {
		records, err := csv.NewReader(f).ReadAll()
		f.Close()
		if err != nil {
			return 0, fmt.Errorf("read manifest: %w", err)
		}
		if len(records) > 0 {
			for _, row := range records[1:] {
				if len(row) > 0 {
					existing[row[0]] = row
				}
			}
		}
	}

	added := 0
	for _, e := range entries {
		if _, ok := existing[e.Filename]; ok {
			continue
		}
		existing[e.Filename] = e.row()
		added++
	}

	names := make([]string, 0, len(existing))
	for name := range existing {
		names = append(names, name)
	}
	sort.Strings(names)

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, err
	}
	w := csv.NewWriter(f)
	_ = w.Write(manifestHeaders)
	for _, name := range names {
		_ = w.Write(existing[name])
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("write manifest: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}
	if err := os.Rename(tmp, path); err != nil {
		return 0, err
	}
	return added, nil
}
