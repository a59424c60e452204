// Takeout Fixer - restore capture dates on a Google Photos Takeout export
//
// Google Takeout splits a photo library across several takeout-*.zip or
// takeout-*.tgz archives and stores each item's capture time in a JSON
// sidecar instead of on the file itself. This tool unpacks the archives,
// pairs every media file with its sidecar, and places the files in a single
// flat output directory with their modification times set to the recorded
// capture time.
//
// Features:
//   - zip and tgz archive extraction, skipped for archives already unpacked
//   - sidecar pairing that follows the exporter's name truncation rules
//   - resumable runs: every step skips work whose result already exists
//   - unmatched files collected in FAILED/ for manual review
//   - optional EXIF and file name date fallbacks
//   - optional manifest CSV of merged files
//
// Usage:
//
//	takeout-fixer                      # process ~/Downloads
//	takeout-fixer /path/to/exports     # process another directory
//	takeout-fixer -c config.toml       # load settings from a TOML file
//	takeout-fixer -o /path/to/output   # choose the output directory
//
// Expected layout:
//
//	Downloads/
//	├── takeout-20240101T000000Z-001.zip
//	├── takeout-20240101T000000Z-002.tgz
//	└── Output-20240102T101500/     <- created by the run
//	    ├── IMG_0001.jpg
//	    └── FAILED/                 <- files without metadata
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

var version = "development"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Interrupted. Run again to resume.")
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		stop()
		os.Exit(1)
	}
}
