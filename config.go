package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// =============================================================================
// Configuration
// =============================================================================

const (
	defaultPrefix      = "takeout-"
	defaultMarkerDir   = "Takeout"
	defaultScratchDir  = "Takeout"
	defaultNameWidth   = 46
	defaultMetadataExt = ".json"
	defaultLogLevel    = "info"
	defaultLogFormat   = "console"

	failedDirName    = "FAILED"
	manifestFileName = "manifest.csv"
	lockFileName     = ".takeout-fixer.lock"
	outputDirLayout  = "20060102T150405"
)

// Values accepted by Merge.Undated.
const (
	UndatedFail = "fail" // route files without a usable capture time to FAILED
	UndatedSkip = "skip" // leave them in the scratch tree
)

// Paths holds the output and scratch locations.
type Paths struct {
	OutputDir  string `toml:"output_dir"`
	ScratchDir string `toml:"scratch_dir"`
}

// Archives describes how exported archives are recognized.
type Archives struct {
	Prefix     string   `toml:"prefix"`
	Extensions []string `toml:"extensions"`
	MarkerDir  string   `toml:"marker_dir"`
}

// Pairing holds the parameters of the sidecar naming rule.
type Pairing struct {
	NameWidth   int    `toml:"name_width"`
	MetadataExt string `toml:"metadata_ext"`
}

// Merge controls how paired files are placed in the output directory.
type Merge struct {
	Undated          string `toml:"undated"`
	EXIFFallback     bool   `toml:"exif_fallback"`
	FilenameFallback bool   `toml:"filename_fallback"`
	Manifest         bool   `toml:"manifest"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is the run-scoped configuration passed to every pipeline stage.
//
// SourceDir and StartedAt are not read from the file; Resolve fills them in
// together with the derived output directory.
type Config struct {
	Paths    Paths    `toml:"paths"`
	Archives Archives `toml:"archives"`
	Pairing  Pairing  `toml:"pairing"`
	Merge    Merge    `toml:"merge"`
	Logging  Logging  `toml:"logging"`

	SourceDir string    `toml:"-"`
	StartedAt time.Time `toml:"-"`
}

// DefaultConfig returns a Config populated with the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Paths: Paths{
			ScratchDir: defaultScratchDir,
		},
		Archives: Archives{
			Prefix:     defaultPrefix,
			Extensions: []string{".zip", ".tgz"},
			MarkerDir:  defaultMarkerDir,
		},
		Pairing: Pairing{
			NameWidth:   defaultNameWidth,
			MetadataExt: defaultMetadataExt,
		},
		Merge: Merge{
			Undated: UndatedFail,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}

// LoadConfig reads a TOML file on top of the defaults. An empty path falls
// back to ~/.config/takeout-fixer/config.toml when that file exists. An
// explicit path that does not exist is an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		home, err := os.UserHomeDir()
		if err != nil {
			return &cfg, nil
		}
		path = filepath.Join(home, ".config", "takeout-fixer", "config.toml")
	}

	path, err := expandPath(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return &cfg, nil
		}
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// Resolve fixes the source directory and start time of the run, and derives
// absolute output and scratch paths from them.
func (c *Config) Resolve(sourceDir string, startedAt time.Time) error {
	if strings.TrimSpace(sourceDir) == "" {
		dir, err := defaultSourceDir()
		if err != nil {
			return err
		}
		sourceDir = dir
	}

	source, err := expandPath(sourceDir)
	if err != nil {
		return err
	}
	c.SourceDir = source
	c.StartedAt = startedAt

	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = filepath.Join(source, "Output-"+startedAt.Format(outputDirLayout))
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return err
	}
	if strings.TrimSpace(c.Paths.ScratchDir) == "" {
		c.Paths.ScratchDir = defaultScratchDir
	}
	if c.Paths.ScratchDir, err = expandPath(c.Paths.ScratchDir); err != nil {
		return err
	}

	for i, ext := range c.Archives.Extensions {
		c.Archives.Extensions[i] = strings.ToLower(strings.TrimSpace(ext))
	}
	return nil
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.Archives.Prefix == "" {
		return errors.New("archives.prefix must be set")
	}
	if c.Archives.MarkerDir == "" || strings.ContainsAny(c.Archives.MarkerDir, `/\`) {
		return errors.New("archives.marker_dir must be a single directory name")
	}
	if len(c.Archives.Extensions) == 0 {
		return errors.New("archives.extensions must not be empty")
	}
	for _, ext := range c.Archives.Extensions {
		if _, err := formatForExt(ext); err != nil {
			return fmt.Errorf("archives.extensions: %w", err)
		}
	}
	if c.Pairing.NameWidth <= 0 {
		return errors.New("pairing.name_width must be positive")
	}
	if !strings.HasPrefix(c.Pairing.MetadataExt, ".") {
		return fmt.Errorf("pairing.metadata_ext must start with a dot, got %q", c.Pairing.MetadataExt)
	}
	switch c.Merge.Undated {
	case UndatedFail, UndatedSkip:
	default:
		return fmt.Errorf("merge.undated: unsupported value %q", c.Merge.Undated)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	if c.SourceDir != "" && c.Paths.ScratchDir == c.SourceDir {
		return errors.New("scratch directory must differ from the source directory")
	}
	return nil
}

// FailedDir is where files without usable metadata end up.
func (c *Config) FailedDir() string {
	return filepath.Join(c.Paths.OutputDir, failedDirName)
}

// ManifestPath is the CSV written alongside the merged files.
func (c *Config) ManifestPath() string {
	return filepath.Join(c.Paths.OutputDir, manifestFileName)
}

// LockPath guards the source directory against concurrent runs.
func (c *Config) LockPath() string {
	return filepath.Join(c.SourceDir, lockFileName)
}

func defaultSourceDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, "Downloads"), nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}
