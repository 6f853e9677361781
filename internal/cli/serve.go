package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/nb/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start an MCP server for note search",
	Long: `Start a Model Context Protocol server on stdio exposing the nb_search
tool, so assistants can search the heap. Every search syncs first.

Example client configuration:
  {"command": "nb", "args": ["serve", "--heap", "~/notes"]}`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// No terminal to draw progress on.
	quiet = true
	jsonLogs = true

	h, s, err := openHeap(cmd)
	if err != nil {
		return err
	}
	defer closeHeap(h, s)

	server, err := mcp.NewServer(h, s.logger.Named("mcp"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.Serve(ctx, os.Stdin, os.Stdout)
}
