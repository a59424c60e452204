package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// =============================================================================
// Progress Reporting
// =============================================================================

// Bar is a per-stage progress bar. A nil *Bar is valid and does nothing.
//
// On a terminal it draws a progressbar; otherwise it prints "(i/n)" lines,
// at most plainLines of them per stage.
type Bar struct {
	pb *progressbar.ProgressBar

	out         io.Writer
	description string
	total       int
	done        int
	every       int
}

// plainLines caps the number of "(i/n)" lines a stage prints when the
// output is not a terminal.
const plainLines = 20

// Step advances the bar by one unit of work.
func (b *Bar) Step() {
	if b == nil {
		return
	}
	if b.pb != nil {
		_ = b.pb.Add(1)
		return
	}
	b.done++
	if b.done%b.every == 0 || b.done == b.total {
		fmt.Fprintf(b.out, "\t%s (%d/%d)\n", b.description, b.done, b.total)
	}
}

// Finish completes the bar.
func (b *Bar) Finish() {
	if b == nil || b.pb == nil {
		return
	}
	_ = b.pb.Finish()
}

// Reporter writes section headers, progress bars and the final summary.
type Reporter struct {
	out      io.Writer
	progress bool
	terminal bool
	header   *color.Color
}

// NewReporter builds a Reporter for out. With showBars set, progress is drawn
// as bars on a terminal and as plain "(i/n)" lines elsewhere.
func NewReporter(out io.Writer, showBars bool) *Reporter {
	return &Reporter{
		out:      out,
		progress: showBars,
		terminal: isTerminal(out),
		header:   color.New(color.FgBlue, color.Bold),
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Section prints a stage header.
func (r *Reporter) Section(title string) {
	fmt.Fprintln(r.out, r.header.Sprintf("== %s ==", strings.TrimSpace(title)))
}

// Printf prints a plain progress line.
func (r *Reporter) Printf(format string, args ...any) {
	fmt.Fprintf(r.out, format+"\n", args...)
}

// Bar starts a progress bar over total units. It returns nil when progress
// is disabled or there is nothing to do.
func (r *Reporter) Bar(description string, total int) *Bar {
	if !r.progress || total <= 0 {
		return nil
	}
	if !r.terminal {
		return &Bar{
			out:         r.out,
			description: description,
			total:       total,
			every:       max(1, total/plainLines),
		}
	}
	pb := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(r.out),
		progressbar.OptionSetDescription("\t"+description),
		progressbar.OptionSetWidth(50),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "|",
			SaucerPadding: "-",
			BarStart:      "",
			BarEnd:        "",
		}),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(r.out) }),
	)
	return &Bar{pb: pb}
}

// =============================================================================
// Summary
// =============================================================================

// Summary holds the final tallies of a run.
type Summary struct {
	OutputDir     string
	Archives      int
	Extracted     int
	AllFiles      int
	MetadataFiles int
	Pairs         int
	LocalPairs    int
	Merge         MergeResult
	Unmatched     int
	MovedToFailed int
	Elapsed       time.Duration
}

// rows lays out the summary as label/value pairs.
func (s Summary) rows() [][2]string {
	return [][2]string{
		{"Archives found", humanize.Comma(int64(s.Archives))},
		{"Archives extracted", humanize.Comma(int64(s.Extracted))},
		{"All files (media + metadata)", humanize.Comma(int64(s.AllFiles))},
		{"Metadata files", humanize.Comma(int64(s.MetadataFiles))},
		{"Files with metadata", humanize.Comma(int64(s.Pairs))},
		{"  paired in place", humanize.Comma(int64(s.LocalPairs))},
		{"  paired archive-wide", humanize.Comma(int64(s.Pairs - s.LocalPairs))},
		{"Merged", humanize.Comma(int64(s.Merge.Merged))},
		{"  photos", humanize.Comma(int64(s.Merge.Photos))},
		{"  videos", humanize.Comma(int64(s.Merge.Videos))},
		{"  size", humanize.Bytes(uint64(s.Merge.Bytes))},
		{"Already in output", humanize.Comma(int64(s.Merge.AlreadyPresent))},
		{"Name collisions", humanize.Comma(int64(s.Merge.Collisions))},
		{"Without capture time", humanize.Comma(int64(len(s.Merge.Undated)))},
		{"Files without metadata", humanize.Comma(int64(s.Unmatched))},
		{"Moved to FAILED", humanize.Comma(int64(s.MovedToFailed))},
		{"Elapsed", s.Elapsed.Round(time.Second).String()},
	}
}

// Summary renders the final tally and the output location.
func (r *Reporter) Summary(s Summary) {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"", "Count"})
	for _, row := range s.rows() {
		tw.AppendRow(table.Row{row[0], row[1]})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignRight},
	})

	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, tw.Render())
	fmt.Fprintln(r.out, "Finished! Files saved in the following location")
	fmt.Fprintln(r.out, s.OutputDir)
}
