package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mvp-joe/nb/internal/heap"
	"github.com/mvp-joe/nb/internal/syncer"
	"github.com/mvp-joe/nb/internal/watcher"
)

var syncWatch bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Bring the index up to date with the latest commit",
	Long: `Apply every note change between the last synced commit and HEAD to
the index, then record HEAD as synced.

With --watch, sync again whenever a commit, checkout or reset moves HEAD,
until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().BoolVarP(&syncWatch, "watch", "w", false, "keep syncing as new commits arrive")
}

func runSync(cmd *cobra.Command, args []string) error {
	h, s, err := openHeap(cmd)
	if err != nil {
		return err
	}
	defer closeHeap(h, s)

	out := cmd.OutOrStdout()
	res, err := h.Sync(cmd.Context())
	if err != nil {
		return describeSyncError(err)
	}
	printSyncResult(out, res)

	if !syncWatch {
		return nil
	}
	return watchAndSync(cmd.Context(), h, s.logger, out)
}

// watchAndSync runs a sync each time the repository's refs settle after a
// change, until ctx is cancelled or the process is interrupted.
func watchAndSync(ctx context.Context, h *heap.Heap, logger *zap.Logger, out io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := watcher.NewGitWatcher(filepath.Join(h.Root(), ".git"), watcher.Options{
		Debounce: h.WatchDebounce(),
		Logger:   logger.Named("watch"),
	})
	if err != nil {
		return err
	}
	defer w.Stop()

	err = w.Start(ctx, func(branch string) {
		logger.Debug("refs changed", zap.String("branch", branch))
		res, err := h.Sync(ctx)
		switch {
		case errors.Is(err, heap.ErrHeapLocked):
			logger.Info("heap busy, skipping this change")
		case err != nil:
			logger.Error("sync failed", zap.Error(describeSyncError(err)))
		case !res.NoOp:
			printSyncResult(out, res)
		}
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Watching for commits (Ctrl-C to stop)...")
	<-ctx.Done()
	return nil
}

func printSyncResult(w io.Writer, res *syncer.Result) {
	if res.NoOp {
		if res.To.IsZero() {
			fmt.Fprintln(w, "Nothing to sync: no commits yet.")
		} else {
			fmt.Fprintf(w, "Already up to date at %s.\n", res.To.Short())
		}
		return
	}
	fmt.Fprintf(w, "✓ Synced %s..%s: %d updated, %d removed, %d skipped (generation %d, %s)\n",
		res.From.Short(), res.To.Short(),
		res.Upserts, res.Deletes, res.Skipped, res.Generation,
		res.Duration.Round(time.Millisecond))
}

// describeSyncError adds a recovery hint to errors the user can act on.
func describeSyncError(err error) error {
	switch {
	case errors.Is(err, heap.ErrHeapLocked):
		return fmt.Errorf("%w: another nb process is using the heap, try again", err)
	case syncer.IsFatal(err):
		return fmt.Errorf("%w (run `nb reset` to reindex from scratch)", err)
	case syncer.IsRetryable(err):
		return fmt.Errorf("%w (re-running sync is safe)", err)
	}
	return err
}
