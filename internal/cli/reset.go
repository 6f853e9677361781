package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetSync bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the index and checkpoint so every note is reindexed",
	Long: `Forget the last synced commit and empty the index. The next sync
reindexes every note in HEAD.

Use this after history was rewritten (rebase, force-push) and sync
reports an unresolvable revision.`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
	resetCmd.Flags().BoolVar(&resetSync, "sync", false, "reindex immediately")
}

func runReset(cmd *cobra.Command, args []string) error {
	h, s, err := openHeap(cmd)
	if err != nil {
		return err
	}
	defer closeHeap(h, s)

	if err := h.Reset(cmd.Context()); err != nil {
		return describeSyncError(err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Index and checkpoint cleared.")

	if !resetSync {
		return nil
	}
	res, err := h.Sync(cmd.Context())
	if err != nil {
		return describeSyncError(err)
	}
	printSyncResult(cmd.OutOrStdout(), res)
	return nil
}
