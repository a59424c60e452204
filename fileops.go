package main

import (
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// File Operations
// =============================================================================

// copyFile copies src to dst, keeping the source permissions and
// modification time. Used when os.Rename fails (cross-device moves).
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

// moveFile moves src to dst. It tries a rename first and falls back to
// copy+delete when the two paths are on different filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("move %s: %w", src, err)
	}
	return os.Remove(src)
}

// placeFile moves src to dst with both access and modification time set to
// t. On a shared filesystem this is a single rename. Otherwise the data is
// copied to a hidden temporary file next to dst, stamped, and renamed into
// place, so dst never exists in a half-written or unstamped state.
func placeFile(src, dst string, t time.Time) error {
	if err := os.Chtimes(src, t, t); err != nil {
		return fmt.Errorf("set times on %s: %w", src, err)
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	tmp := filepath.Join(filepath.Dir(dst), ".tmp-"+uuid.NewString())
	if err := copyFile(src, tmp); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := os.Chtimes(tmp, t, t); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("set times on %s: %w", dst, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename into %s: %w", dst, err)
	}
	return os.Remove(src)
}

// exists reports whether path can be stat'ed.
func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// uniquePath returns path, or path with a numeric suffix before the
// extension when something is already there.
func uniquePath(path string) string {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return path
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for counter := 1; ; counter++ {
		candidate := fmt.Sprintf("%s_%d%s", base, counter, ext)
		if _, err := os.Stat(candidate); errors.Is(err, fs.ErrNotExist) {
			return candidate
		}
	}
}

// =============================================================================
// File Hashing
// =============================================================================

// fileHash computes an MD5 hash of the first 64KB of a file.
// Returns an empty string if the file cannot be read.
func fileHash(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.CopyN(h, f, 65536); err != nil && !errors.Is(err, io.EOF) {
		return ""
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// sameContent is a cheap duplicate check: equal size and equal leading hash.
func sameContent(a, b string) bool {
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	if ai.Size() != bi.Size() {
		return false
	}
	ha := fileHash(a)
	return ha != "" && ha == fileHash(b)
}

// =============================================================================
// Cleanup Helpers
// =============================================================================

// pruneEmptyDirs removes empty directories below root, deepest first, and
// returns how many were removed. root itself is kept.
func pruneEmptyDirs(root string) (int, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip errors, continue walking
		}
		if d.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })

	removed := 0
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := os.Remove(dir); err == nil {
			removed++
		}
	}
	return removed, nil
}
