package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataName(t *testing.T) {
	long := strings.Repeat("a", 50) + ".jpg"

	tests := []struct {
		name string
		rel  string
		want string
	}{
		{"short bare name", "IMG_0001.jpg", "IMG_0001.jpg.json"},
		{"short relative path", "/IMG_0001.jpg", "/IMG_0001.jpg.json"},
		{"truncated bare name", long, strings.Repeat("a", 46) + ".json"},
		{"truncated relative path keeps one extra", "/" + long, "/" + strings.Repeat("a", 46) + ".json"},
		{"disambiguation suffix", "IMG_0001(1).jpg", "IMG_0001(1).jpg1.json"},
		{"comma removed from suffix", "photo(1,2).jpg", "photo(1,2).jpg12.json"},
		{"suffix past the truncation point", strings.Repeat("b", 50) + "(3).jpg", strings.Repeat("b", 46) + "3.json"},
		{"closing before opening", "a)b(c.jpg", "a)b(c.jpg.json"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MetadataName(tc.rel, 46, ".json"))
		})
	}
}

func TestMetadataNameDependsOnlyOnPrefix(t *testing.T) {
	prefix := strings.Repeat("x", 46)
	want := MetadataName(prefix+"_first.jpg", 46, ".json")
	for _, suffix := range []string{"_second.jpg", ".mp4", "zzzzzzzzzzzzzzzz.heic"} {
		assert.Equal(t, want, MetadataName(prefix+suffix, 46, ".json"))
	}
	assert.Equal(t, prefix+".json", want)
}

func TestMetadataNameCountsCharacters(t *testing.T) {
	name := strings.Repeat("é", 50) + ".jpg"
	got := MetadataName(name, 46, ".json")
	assert.Equal(t, strings.Repeat("é", 46)+".json", got)
}

func TestMetadataNameSanitizedSuffixHasNoComma(t *testing.T) {
	got := MetadataName("trip(2,3).png", 46, ".json")
	suffix := strings.TrimPrefix(got, "trip(2,3).png")
	assert.Equal(t, "23.json", suffix)
	assert.NotContains(t, suffix, ",")
}

func scratchInventory(t *testing.T, cfg *Config) Inventory {
	t.Helper()
	inv, err := scanScratch(cfg)
	require.NoError(t, err)
	return inv
}

func TestPairFilesPrefersSameDirectory(t *testing.T) {
	cfg := newTestConfig(t, t.TempDir())
	scratch := cfg.Paths.ScratchDir
	writeFile(t, filepath.Join(scratch, "Photos", "A", "IMG_0001.jpg"), "a")
	writeFile(t, filepath.Join(scratch, "Photos", "A", "IMG_0001.jpg.json"), sidecarJSON("1", "1"))
	writeFile(t, filepath.Join(scratch, "Photos", "B", "IMG_0001.jpg.json"), sidecarJSON("2", "2"))

	res, err := PairFiles(context.Background(), cfg, scratchInventory(t, cfg), nil)
	require.NoError(t, err)

	require.Len(t, res.Pairs, 1)
	assert.Equal(t, 1, res.LocalPairs)
	assert.Equal(t, filepath.Join(scratch, "Photos", "A", "IMG_0001.jpg.json"), res.Pairs[0].Metadata)
	assert.Empty(t, res.Unmatched)
}

func TestPairLocalNeverDefersMatchableFiles(t *testing.T) {
	cfg := newTestConfig(t, t.TempDir())
	dir := filepath.Join(cfg.Paths.ScratchDir, "Photos")
	writeFile(t, filepath.Join(dir, "IMG_0001.jpg"), "a")
	writeFile(t, filepath.Join(dir, "IMG_0001.jpg.json"), sidecarJSON("1", "1"))
	writeFile(t, filepath.Join(dir, "IMG_0002.jpg"), "b")

	claimed := map[string]bool{}
	pairs, deferred, err := PairLocal(context.Background(), cfg, []string{dir}, claimed, nil)
	require.NoError(t, err)

	require.Len(t, pairs, 1)
	assert.Equal(t, filepath.Join(dir, "IMG_0001.jpg"), pairs[0].File)
	assert.Equal(t, []string{filepath.Join(dir, "IMG_0002.jpg")}, deferred)
	assert.True(t, claimed[filepath.Join(dir, "IMG_0001.jpg.json")])
}

func TestPairFilesFindsRelocatedSidecar(t *testing.T) {
	cfg := newTestConfig(t, t.TempDir())
	scratch := cfg.Paths.ScratchDir
	writeFile(t, filepath.Join(scratch, "Photos", "Album", "IMG_0002.jpg"), "a")
	writeFile(t, filepath.Join(scratch, "Photos", "Photos from 2021", "IMG_0002.jpg.json"), sidecarJSON("1", "1"))

	res, err := PairFiles(context.Background(), cfg, scratchInventory(t, cfg), nil)
	require.NoError(t, err)

	require.Len(t, res.Pairs, 1)
	assert.Equal(t, 0, res.LocalPairs)
	assert.Equal(t, filepath.Join(scratch, "Photos", "Photos from 2021", "IMG_0002.jpg.json"), res.Pairs[0].Metadata)
}

func TestPairFilesRejectsAmbiguousGlobalMatch(t *testing.T) {
	cfg := newTestConfig(t, t.TempDir())
	scratch := cfg.Paths.ScratchDir
	writeFile(t, filepath.Join(scratch, "Photos", "A", "IMG_0003.jpg"), "a")
	writeFile(t, filepath.Join(scratch, "Photos", "B", "IMG_0003.jpg.json"), sidecarJSON("1", "1"))
	writeFile(t, filepath.Join(scratch, "Photos", "C", "IMG_0003.jpg.json"), sidecarJSON("2", "2"))

	res, err := PairFiles(context.Background(), cfg, scratchInventory(t, cfg), nil)
	require.NoError(t, err)

	assert.Empty(t, res.Pairs)
	assert.Equal(t, []string{filepath.Join(scratch, "Photos", "A", "IMG_0003.jpg")}, res.Unmatched)
}

func TestPairFilesClaimsEachSidecarOnce(t *testing.T) {
	cfg := newTestConfig(t, t.TempDir())
	dir := filepath.Join(cfg.Paths.ScratchDir, "Photos")
	prefix := strings.Repeat("p", 46)
	writeFile(t, filepath.Join(dir, prefix+"_one.jpg"), "1")
	writeFile(t, filepath.Join(dir, prefix+"_two.jpg"), "2")
	writeFile(t, filepath.Join(dir, prefix+".json"), sidecarJSON("1", "1"))

	res, err := PairFiles(context.Background(), cfg, scratchInventory(t, cfg), nil)
	require.NoError(t, err)

	require.Len(t, res.Pairs, 1)
	assert.Equal(t, filepath.Join(dir, prefix+"_one.jpg"), res.Pairs[0].File)
	assert.Equal(t, []string{filepath.Join(dir, prefix+"_two.jpg")}, res.Unmatched)
}

func TestPairFilesMatchesDecomposedNames(t *testing.T) {
	cfg := newTestConfig(t, t.TempDir())
	dir := filepath.Join(cfg.Paths.ScratchDir, "Photos")
	composed := "caf\u00e9.jpg"
	decomposed := "cafe\u0301.jpg.json"
	writeFile(t, filepath.Join(dir, composed), "a")
	writeFile(t, filepath.Join(dir, decomposed), "{}")

	res, err := PairFiles(context.Background(), cfg, scratchInventory(t, cfg), nil)
	require.NoError(t, err)

	require.Len(t, res.Pairs, 1)
	assert.Equal(t, filepath.Join(dir, decomposed), res.Pairs[0].Metadata)
}
