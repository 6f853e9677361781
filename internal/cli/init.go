package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/nb/internal/heap"
)

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Create a new heap",
	Long: `Create a new heap: a git repository for notes plus the private .nb
directory holding its index, checkpoint and sync journal.

The directory must not exist or must be empty. Without a path the heap
is created at --heap, $NB_HEAP or ~/notes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	var path string
	if len(args) == 1 {
		path = args[0]
	}
	s, err := newSession(path)
	if err != nil {
		return err
	}
	defer s.logger.Sync()

	h, err := heap.Init(cmd.Context(), s.root, s.cfg, s.options())
	if err != nil {
		return err
	}
	defer h.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized empty heap in %s\n", h.Root())
	return nil
}
