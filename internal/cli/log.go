package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/nb/internal/git"
	"github.com/mvp-joe/nb/internal/journal"
)

var (
	logLimit int
	logJSON  bool
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show recent sync runs",
	Long: `Show the sync journal: when each sync ran, which commits it covered,
how many notes it updated or removed, and any error.`,
	Args: cobra.NoArgs,
	RunE: runLog,
}

func init() {
	rootCmd.AddCommand(logCmd)
	logCmd.Flags().IntVarP(&logLimit, "limit", "n", 20, "number of runs to show")
	logCmd.Flags().BoolVar(&logJSON, "json", false, "Output as JSON")
}

func runLog(cmd *cobra.Command, args []string) error {
	h, s, err := openHeap(cmd)
	if err != nil {
		return err
	}
	defer closeHeap(h, s)

	runs, err := h.History(logLimit)
	if err != nil {
		return err
	}
	if logJSON {
		return writeJSON(cmd.OutOrStdout(), runs)
	}
	printHistory(cmd.OutOrStdout(), runs)
	return nil
}

func printHistory(w io.Writer, runs []journal.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No syncs recorded.")
		return
	}
	for _, r := range runs {
		span := git.RevisionID(r.From).Short() + ".." + git.RevisionID(r.To).Short()
		took := r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond)
		when := r.StartedAt.Local().Format(time.DateTime)
		if r.Failed() {
			fmt.Fprintf(w, "%s  %-18s  FAILED  %s\n", when, span, r.Error)
			continue
		}
		fmt.Fprintf(w, "%s  %-18s  +%d -%d ~%d  gen %d  %s\n",
			when, span, r.Upserts, r.Deletes, r.Skipped, r.Generation, took)
	}
}
