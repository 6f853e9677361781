package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add [path]",
	Short: "Write a new note",
	Long: `Create a note, open it in the editor, then commit and index it.

Without a path the note is named <uuid>.md at the heap root. A note left
empty is discarded. The editor is the editor config key, then $EDITOR,
then vi.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAdd,
}

var editCmd = &cobra.Command{
	Use:   "edit <path>",
	Short: "Edit a note",
	Long: `Open a note in the editor, then commit and index whatever changed.
A path that does not exist yet creates the note.`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

func init() {
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(editCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	h, s, err := openHeap(cmd)
	if err != nil {
		return err
	}
	defer closeHeap(h, s)

	var rel string
	if len(args) == 1 {
		rel = args[0]
	}
	path, err := h.Add(cmd.Context(), rel)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func runEdit(cmd *cobra.Command, args []string) error {
	h, s, err := openHeap(cmd)
	if err != nil {
		return err
	}
	defer closeHeap(h, s)

	path, err := h.Edit(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
