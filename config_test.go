package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "takeout-", cfg.Archives.Prefix)
	assert.Equal(t, []string{".zip", ".tgz"}, cfg.Archives.Extensions)
	assert.Equal(t, "Takeout", cfg.Archives.MarkerDir)
	assert.Equal(t, 46, cfg.Pairing.NameWidth)
	assert.Equal(t, ".json", cfg.Pairing.MetadataExt)
	assert.Equal(t, UndatedFail, cfg.Merge.Undated)
	assert.False(t, cfg.Merge.Manifest)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, `
[paths]
scratch_dir = "/tmp/takeout-scratch"

[archives]
extensions = [".ZIP", ".tar.gz"]

[merge]
undated = "skip"
manifest = true

[logging]
level = "debug"
format = "json"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/takeout-scratch", cfg.Paths.ScratchDir)
	assert.Equal(t, UndatedSkip, cfg.Merge.Undated)
	assert.True(t, cfg.Merge.Manifest)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "takeout-", cfg.Archives.Prefix, "unset keys keep defaults")
	assert.Equal(t, 46, cfg.Pairing.NameWidth)

	require.NoError(t, cfg.Resolve(t.TempDir(), testStart))
	assert.Equal(t, []string{".zip", ".tar.gz"}, cfg.Archives.Extensions)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigMissing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)

	t.Setenv("HOME", t.TempDir())
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
}

func TestLoadConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[merge\nundated = ")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestResolveDerivesOutputDir(t *testing.T) {
	source := t.TempDir()
	cfg := DefaultConfig()
	require.NoError(t, cfg.Resolve(source, testStart))

	assert.Equal(t, source, cfg.SourceDir)
	assert.Equal(t, filepath.Join(source, "Output-20240301T101500"), cfg.Paths.OutputDir)
	assert.Equal(t, filepath.Join(source, "Output-20240301T101500", "FAILED"), cfg.FailedDir())
	assert.True(t, filepath.IsAbs(cfg.Paths.ScratchDir))
	assert.Equal(t, filepath.Join(source, ".takeout-fixer.lock"), cfg.LockPath())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty prefix", func(c *Config) { c.Archives.Prefix = "" }},
		{"nested marker", func(c *Config) { c.Archives.MarkerDir = "a/b" }},
		{"no extensions", func(c *Config) { c.Archives.Extensions = nil }},
		{"unknown extension", func(c *Config) { c.Archives.Extensions = []string{".rar"} }},
		{"zero width", func(c *Config) { c.Pairing.NameWidth = 0 }},
		{"metadata ext without dot", func(c *Config) { c.Pairing.MetadataExt = "json" }},
		{"unknown undated policy", func(c *Config) { c.Merge.Undated = "keep" }},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"scratch equals source", func(c *Config) { c.Paths.ScratchDir = c.SourceDir }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := newTestConfig(t, t.TempDir())
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
