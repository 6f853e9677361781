// Package mcp exposes heap search to MCP clients over stdio.
package mcp

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/mvp-joe/nb/internal/index"
	"github.com/mvp-joe/nb/internal/logging"
)

const (
	serverName    = "nb-mcp"
	serverVersion = "1.0.0"
)

// Searcher runs a query against an up-to-date index.
// *heap.Heap satisfies it: Find syncs before querying.
type Searcher interface {
	Find(ctx context.Context, query string, limit int) ([]index.Document, error)
}

// Server manages the MCP server lifecycle.
type Server struct {
	mcp    *server.MCPServer
	logger *zap.Logger
}

// NewServer creates an MCP server with the nb_search tool registered.
func NewServer(searcher Searcher, logger *zap.Logger) (*Server, error) {
	if searcher == nil {
		return nil, fmt.Errorf("searcher is required")
	}
	logger = logging.OrNop(logger)

	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
	)
	AddSearchTool(mcpServer, searcher, logger)

	return &Server{mcp: mcpServer, logger: logger}, nil
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// Serve reads requests from in and writes responses to out until ctx is
// cancelled or in is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(log.New(&zapWriter{logger: s.logger}, "", 0))

	s.logger.Info("starting MCP server on stdio")
	if err := stdio.Listen(ctx, in, out); err != nil && ctx.Err() == nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}

// zapWriter routes the stdio server's log.Logger output into zap.
type zapWriter struct {
	logger *zap.Logger
}

func (w *zapWriter) Write(p []byte) (int, error) {
	w.logger.Warn(string(trimNewline(p)))
	return len(p), nil
}

func trimNewline(p []byte) []byte {
	for len(p) > 0 && (p[len(p)-1] == '\n' || p[len(p)-1] == '\r') {
		p = p[:len(p)-1]
	}
	return p
}
