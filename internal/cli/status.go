package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/nb/internal/heap"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the heap's sync state",
	Long: `Show the heap's sync state without syncing:

- Current branch and HEAD commit
- Last synced commit and index generation
- Indexed note count and changes waiting for the next sync`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	h, s, err := openHeap(cmd)
	if err != nil {
		return err
	}
	defer closeHeap(h, s)

	st, err := h.Status(cmd.Context())
	if err != nil {
		return err
	}
	if statusJSON {
		return writeJSON(cmd.OutOrStdout(), statusOutput(st))
	}
	printStatus(cmd.OutOrStdout(), st)
	return nil
}

type statusJSONOutput struct {
	Root       string     `json:"root"`
	Branch     string     `json:"branch"`
	Head       string     `json:"head"`
	Checkpoint string     `json:"checkpoint"`
	SyncedAt   *time.Time `json:"synced_at,omitempty"`
	Generation uint64     `json:"generation"`
	Documents  uint64     `json:"documents"`
	Pending    int        `json:"pending"`
	UpToDate   bool       `json:"up_to_date"`
}

func statusOutput(st *heap.Status) statusJSONOutput {
	out := statusJSONOutput{
		Root:       st.Root,
		Branch:     st.Branch,
		Head:       st.Head.String(),
		Checkpoint: st.Checkpoint.Revision.String(),
		Generation: st.Generation,
		Documents:  st.Documents,
		Pending:    st.Pending,
		UpToDate:   st.UpToDate(),
	}
	if !st.Checkpoint.UpdatedAt.IsZero() {
		t := st.Checkpoint.UpdatedAt
		out.SyncedAt = &t
	}
	return out
}

func printStatus(w io.Writer, st *heap.Status) {
	fmt.Fprintf(w, "Heap:       %s\n", st.Root)
	fmt.Fprintf(w, "Branch:     %s\n", st.Branch)
	fmt.Fprintf(w, "HEAD:       %s\n", st.Head.Short())

	synced := st.Checkpoint.Revision.Short()
	if !st.Checkpoint.UpdatedAt.IsZero() {
		synced += " at " + st.Checkpoint.UpdatedAt.Local().Format(time.DateTime)
	}
	fmt.Fprintf(w, "Synced:     %s\n", synced)
	fmt.Fprintf(w, "Generation: %d\n", st.Generation)
	fmt.Fprintf(w, "Notes:      %d\n", st.Documents)

	switch {
	case st.UpToDate():
		fmt.Fprintln(w, "Index is up to date.")
	case st.Pending == 1:
		fmt.Fprintln(w, "1 change waiting for sync.")
	default:
		fmt.Fprintf(w, "%d changes waiting for sync.\n", st.Pending)
	}
}
