package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

// options holds command-line overrides for the configuration file.
type options struct {
	configPath       string
	outputDir        string
	scratchDir       string
	logLevel         string
	logFormat        string
	undated          string
	noProgress       bool
	manifest         bool
	exifFallback     bool
	filenameFallback bool
}

func newRootCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "takeout-fixer [SOURCE_DIR]",
		Short: "Restore capture dates on a Google Photos Takeout export",
		Long: `Unpacks takeout-*.zip and takeout-*.tgz archives found under SOURCE_DIR
(default ~/Downloads), pairs each media file with its JSON sidecar, and places
the files in a timestamped output directory with their modification times set
to the recorded capture time. Files without usable metadata go to FAILED/.`,
		Args:          cobra.MaximumNArgs(1),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			source := ""
			if len(args) == 1 {
				source = args[0]
			}

			cfg, err := LoadConfig(opts.configPath)
			if err != nil {
				return err
			}
			opts.apply(cmd, cfg)
			if err := cfg.Resolve(source, time.Now()); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := newLogger(os.Stderr, cfg.Logging)
			if err != nil {
				return err
			}
			ui := NewReporter(cmd.OutOrStdout(), !opts.noProgress)

			summary, err := Run(cmd.Context(), cfg, logger, ui)
			if err != nil {
				return err
			}
			ui.Summary(summary)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "TOML configuration file")
	flags.StringVarP(&opts.outputDir, "output", "o", "", "Output directory (default: SOURCE_DIR/Output-<start time>)")
	flags.StringVar(&opts.scratchDir, "scratch", "", "Scratch directory (default: ./Takeout)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", "", "Log format: console, json")
	flags.StringVar(&opts.undated, "undated", "", "Files whose sidecar has no capture time: fail (move to FAILED) or skip")
	flags.BoolVar(&opts.noProgress, "no-progress", false, "Disable progress bars")
	flags.BoolVar(&opts.manifest, "manifest", false, "Write manifest.csv to the output directory")
	flags.BoolVar(&opts.exifFallback, "exif-fallback", false, "Use EXIF DateTimeOriginal when the sidecar has no capture time")
	flags.BoolVar(&opts.filenameFallback, "filename-fallback", false, "Use a date found in the file name when nothing else is available")

	return cmd
}

// apply copies explicitly set flags over the loaded configuration.
func (o *options) apply(cmd *cobra.Command, cfg *Config) {
	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.Paths.OutputDir = o.outputDir
	}
	if flags.Changed("scratch") {
		cfg.Paths.ScratchDir = o.scratchDir
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = o.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = o.logFormat
	}
	if flags.Changed("undated") {
		cfg.Merge.Undated = o.undated
	}
	if flags.Changed("manifest") {
		cfg.Merge.Manifest = o.manifest
	}
	if flags.Changed("exif-fallback") {
		cfg.Merge.EXIFFallback = o.exifFallback
	}
	if flags.Changed("filename-fallback") {
		cfg.Merge.FilenameFallback = o.filenameFallback
	}
}
