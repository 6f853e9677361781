package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/nb/internal/index"
)

var (
	searchLimit int
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>...",
	Short: "Search notes",
	Long: `Bring the index up to date with the latest commit, then search it.

Query syntax:
  rust async           notes containing either word (ranked)
  +rust +async         notes containing both
  "error handling"     exact phrase
  title:meeting        field scoping (title, body, section)
  deploy*  recieve~1   prefix and fuzzy matching`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum results (default index.max_results)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Output as JSON")
}

func runSearch(cmd *cobra.Command, args []string) error {
	h, s, err := openHeap(cmd)
	if err != nil {
		return err
	}
	defer closeHeap(h, s)

	docs, err := h.Find(cmd.Context(), strings.Join(args, " "), searchLimit)
	if err != nil {
		return err
	}
	if searchJSON {
		return writeJSON(cmd.OutOrStdout(), docs)
	}
	printResults(cmd.OutOrStdout(), docs)
	return nil
}

// printResults writes one block per document: path and title, then
// highlighted fragments indented beneath.
func printResults(w io.Writer, docs []index.Document) {
	if len(docs) == 0 {
		fmt.Fprintln(w, "No matches.")
		return
	}
	for i, d := range docs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if d.Title != "" {
			fmt.Fprintf(w, "%s  %s\n", d.Path, d.Title)
		} else {
			fmt.Fprintln(w, d.Path)
		}
		for _, h := range d.Highlights {
			fmt.Fprintf(w, "    %s\n", strings.Join(strings.Fields(h), " "))
		}
	}
}

func writeJSON(w io.Writer, v any) error {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Fprintln(w, string(jsonBytes))
	return nil
}
