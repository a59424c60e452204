package main

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

// =============================================================================
// Archive Locator & Extractor
// =============================================================================

// ArchiveFormat identifies a supported container format.
type ArchiveFormat int

const (
	FormatZip ArchiveFormat = iota + 1
	FormatTgz
)

func (f ArchiveFormat) String() string {
	switch f {
	case FormatZip:
		return "zip"
	case FormatTgz:
		return "tgz"
	default:
		return "unknown"
	}
}

var (
	// ErrUnsupportedFormat is returned for an extension with no decoder.
	ErrUnsupportedFormat = errors.New("unsupported archive format")
	// ErrUnsafeEntryPath is returned when an archive entry would land
	// outside its extraction directory.
	ErrUnsafeEntryPath = errors.New("archive entry escapes extraction directory")
)

// Archive is one exported container file found under the source directory.
type Archive struct {
	Path   string
	Format ArchiveFormat
	ext    string
}

// Dir is the sibling directory the archive extracts into: its path with the
// extension stripped.
func (a Archive) Dir() string {
	return strings.TrimSuffix(a.Path, a.ext)
}

// formatForExt maps a lower-case extension to its format.
func formatForExt(ext string) (ArchiveFormat, error) {
	switch strings.ToLower(ext) {
	case ".zip":
		return FormatZip, nil
	case ".tgz", ".tar.gz":
		return FormatTgz, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// FindArchives walks root recursively and returns every file whose name
// starts with prefix and ends with one of exts, sorted by path.
func FindArchives(root, prefix string, exts []string) ([]Archive, error) {
	// Longest extension first so ".tar.gz" wins over a shorter suffix.
	ordered := append([]string(nil), exts...)
	sort.Slice(ordered, func(i, j int) bool { return len(ordered[i]) > len(ordered[j]) })

	var archives []Archive
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil // Skip unreadable entries, continue walking
		}
		if d.IsDir() {
			return nil
		}

		name := d.Name()
		if !strings.HasPrefix(name, prefix) {
			return nil
		}
		lower := strings.ToLower(name)
		for _, ext := range ordered {
			if !strings.HasSuffix(lower, ext) {
				continue
			}
			format, err := formatForExt(ext)
			if err != nil {
				return err
			}
			archives = append(archives, Archive{
				Path:   path,
				Format: format,
				ext:    name[len(name)-len(ext):],
			})
			break
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	sort.Slice(archives, func(i, j int) bool { return archives[i].Path < archives[j].Path })
	return archives, nil
}

// ExtractArchive unpacks a into a.Dir(). Archives whose directory already
// exists are treated as extracted and skipped; the returned bool reports
// whether anything was unpacked.
//
// Entries are written to a temporary sibling directory that is renamed into
// place once the whole archive succeeded, so an interrupted extraction is
// never mistaken for a finished one.
func ExtractArchive(a Archive) (bool, error) {
	dest := a.Dir()
	if _, err := os.Stat(dest); err == nil {
		return false, nil
	}

	partial := dest + ".partial"
	if err := os.RemoveAll(partial); err != nil {
		return false, fmt.Errorf("clear partial extraction %s: %w", partial, err)
	}
	if err := os.MkdirAll(partial, 0o755); err != nil {
		return false, err
	}

	var err error
	switch a.Format {
	case FormatZip:
		err = extractZip(a.Path, partial)
	case FormatTgz:
		err = extractTgz(a.Path, partial)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedFormat, a.Path)
	}
	if err != nil {
		_ = os.RemoveAll(partial)
		return false, fmt.Errorf("extract %s: %w", a.Path, err)
	}

	if err := os.Rename(partial, dest); err != nil {
		return false, fmt.Errorf("finalize %s: %w", dest, err)
	}
	return true, nil
}

func extractZip(src, dest string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		target, err := entryPath(dest, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open entry %s: %w", f.Name, err)
		}
		err = writeEntry(target, rc, f.Mode())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func extractTgz(src, dest string) error {
	file, err := os.Open(src)
	if err != nil {
		return err
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		target, err := entryPath(dest, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeEntry(target, tr, hdr.FileInfo().Mode()); err != nil {
				return err
			}
		default:
			// Links and device nodes never appear in an export.
		}
	}
}

// entryPath joins an archive entry name onto dest, rejecting names that
// would resolve outside it.
func entryPath(dest, name string) (string, error) {
	rel := filepath.FromSlash(strings.TrimSuffix(name, "/"))
	if rel == "" || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %q", ErrUnsafeEntryPath, name)
	}
	return filepath.Join(dest, rel), nil
}

func writeEntry(target string, r io.Reader, mode fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	perm := mode.Perm()
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm|0o200)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("write %s: %w", target, err)
	}
	return out.Close()
}
