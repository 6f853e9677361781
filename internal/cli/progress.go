package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
)

// CLIProgressReporter renders sync progress with a progress bar on stderr.
type CLIProgressReporter struct {
	quiet   bool
	out     io.Writer
	bar     *progressbar.ProgressBar
	total   int
	applied int
}

// NewCLIProgressReporter creates a new CLI progress reporter.
func NewCLIProgressReporter(quiet bool) *CLIProgressReporter {
	return &CLIProgressReporter{
		quiet: quiet,
		out:   os.Stderr,
	}
}

func (c *CLIProgressReporter) OnDiffComputed(changes int) {
	c.total = changes
	c.applied = 0
	if c.quiet || changes == 0 {
		return
	}

	c.bar = progressbar.NewOptions(changes,
		progressbar.OptionSetWriter(c.out),
		progressbar.OptionSetDescription("Syncing notes"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("notes/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(c.out)
		}),
	)
}

func (c *CLIProgressReporter) OnChangeApplied(path string) {
	c.applied++
	if c.bar != nil {
		c.bar.Add(1)
	}
}

func (c *CLIProgressReporter) OnCommitted(generation uint64) {
	if c.bar != nil {
		c.bar.Finish()
		c.bar = nil
	}
}

// Applied returns how many changes the last sync processed.
func (c *CLIProgressReporter) Applied() int {
	return c.applied
}
