// Package cli implements the nb command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mvp-joe/nb/internal/config"
	"github.com/mvp-joe/nb/internal/heap"
	"github.com/mvp-joe/nb/internal/logging"
)

var (
	heapDir string
	verbose bool
	quiet   bool
	// jsonLogs switches the session logger to JSON on stderr.
	jsonLogs bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "nb",
	Short: "nb - searchable notes kept in git",
	Long: `nb keeps a directory of plain-text notes under git and a full-text
index of them in step with the latest commit.

The heap directory is chosen by --heap, then $NB_HEAP, then ~/notes.
Per-heap settings live in <heap>/.nb/config.yml and may be overridden
with NB_* environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&heapDir, "heap", "", "heap directory (default $NB_HEAP or ~/notes)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress output")
}

// session holds what a command needs to work on one heap.
type session struct {
	root   string
	cfg    *config.Config
	logger *zap.Logger
}

// newSession resolves the heap directory, loads its configuration and
// builds the logger. explicit overrides --heap when non-empty.
func newSession(explicit string) (*session, error) {
	dir := heapDir
	if explicit != "" {
		dir = explicit
	}
	root, err := config.ResolveHeapPath(dir)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadFromHeap(root)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	logger, err := buildLogger(level)
	if err != nil {
		return nil, err
	}
	return &session{root: root, cfg: cfg, logger: logger}, nil
}

// buildLogger returns the console logger, or JSON logs when stdout is a
// protocol stream.
func buildLogger(level string) (*zap.Logger, error) {
	if jsonLogs {
		return logging.New(level)
	}
	return logging.NewConsole(level)
}

func (s *session) options() heap.Options {
	return heap.Options{
		Logger:   s.logger,
		Progress: NewCLIProgressReporter(quiet),
	}
}

// openHeap opens the heap selected by the global flags.
func openHeap(cmd *cobra.Command) (*heap.Heap, *session, error) {
	s, err := newSession("")
	if err != nil {
		return nil, nil, err
	}
	h, err := heap.Open(cmd.Context(), s.root, s.cfg, s.options())
	if err != nil {
		s.logger.Sync()
		return nil, nil, describeSyncError(err)
	}
	return h, s, nil
}

// closeHeap releases h and flushes the logger.
func closeHeap(h *heap.Heap, s *session) {
	if err := h.Close(); err != nil {
		s.logger.Warn("failed to close heap", zap.Error(err))
	}
	s.logger.Sync()
}
