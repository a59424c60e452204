package main

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
)

type archiveEntry struct {
	name string
	body string
}

var testStart = time.Date(2024, 3, 1, 10, 15, 0, 0, time.UTC)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func sidecarJSON(photoTaken, creation string) string {
	return fmt.Sprintf(`{
  "title": "photo",
  "creationTime": {"timestamp": %q, "formatted": ""},
  "photoTakenTime": {"timestamp": %q, "formatted": ""}
}`, creation, photoTaken)
}

func makeZip(t *testing.T, path string, entries []archiveEntry) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		require.NoError(t, err)
		_, err = io.WriteString(w, e.body)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func makeTgz(t *testing.T, path string, entries []archiveEntry) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	for _, e := range entries {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     e.name,
			Mode:     0o644,
			Size:     int64(len(e.body)),
			Typeflag: tar.TypeReg,
			ModTime:  testStart,
		}))
		_, err := io.WriteString(tw, e.body)
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
}

// newTestConfig returns a resolved config whose scratch and output
// directories live in their own temp dirs, away from source.
func newTestConfig(t *testing.T, source string) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Paths.ScratchDir = filepath.Join(t.TempDir(), "scratch")
	cfg.Paths.OutputDir = filepath.Join(t.TempDir(), "out")
	require.NoError(t, cfg.Resolve(source, testStart))
	require.NoError(t, cfg.Validate())
	return &cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runPipeline(t *testing.T, cfg *Config) Summary {
	t.Helper()
	summary, err := Run(context.Background(), cfg, discardLogger(), NewReporter(io.Discard, false))
	require.NoError(t, err)
	return summary
}

// listNames returns the entry names of dir, or nil when it does not exist.
func listNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
