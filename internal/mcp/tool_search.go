package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/mvp-joe/nb/internal/heap"
	"github.com/mvp-joe/nb/internal/index"
)

// SearchToolName is the name clients call.
const SearchToolName = "nb_search"

// maxLimit caps the limit a client may request.
const maxLimit = 100

// AddSearchTool registers the nb_search tool with an MCP server.
func AddSearchTool(s *server.MCPServer, searcher Searcher, logger *zap.Logger) {
	tool := mcp.NewTool(
		SearchToolName,
		mcp.WithDescription(`Full-text search over the notes heap.

The index is brought up to date with the latest commit before searching.

Supports:
- Field scoping: title:meeting, body:"release plan", section:todo
- Boolean operators: +required, -excluded
- Phrase search: "error handling"
- Wildcards: deploy* (prefix matching)
- Fuzzy: recieve~1 (edit distance)`),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Query string with field scoping and boolean operators")),
		mcp.WithNumber("limit",
			mcp.Min(1),
			mcp.Max(maxLimit),
			mcp.Description("Maximum number of results to return (default: configured index.max_results)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createSearchHandler(searcher, logger))
}

// createSearchHandler creates the handler function for the nb_search tool.
func createSearchHandler(searcher Searcher, logger *zap.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		startTime := time.Now()

		query, err := request.RequireString("query")
		if err != nil || query == "" {
			return mcp.NewToolResultError("query parameter is required"), nil
		}
		limit := request.GetInt("limit", 0)
		if limit < 0 {
			return mcp.NewToolResultError("limit must be positive"), nil
		}
		if limit > maxLimit {
			limit = maxLimit
		}

		docs, err := searcher.Find(ctx, query, limit)
		switch {
		case errors.Is(err, index.ErrQuerySyntax):
			return mcp.NewToolResultError(err.Error()), nil
		case errors.Is(err, heap.ErrHeapLocked):
			return mcp.NewToolResultError("heap is busy, retry shortly"), nil
		case err != nil:
			logger.Error("search failed", zap.String("query", query), zap.Error(err))
			return nil, fmt.Errorf("search failed: %w", err)
		}

		response := &SearchResponse{
			Query:   query,
			Results: toResults(docs),
			Total:   len(docs),
			Metadata: ResponseMetadata{
				TookMs: int(time.Since(startTime).Milliseconds()),
			},
		}

		jsonData, err := json.Marshal(response)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response: %w", err)
		}

		// Return as text result (mcp-go convention)
		return mcp.NewToolResultText(string(jsonData)), nil
	}
}

func toResults(docs []index.Document) []SearchResult {
	results := make([]SearchResult, 0, len(docs))
	for _, d := range docs {
		results = append(results, SearchResult{
			Path:       d.Path,
			Title:      d.Title,
			Sections:   d.Sections,
			Score:      d.Score,
			Highlights: d.Highlights,
		})
	}
	return results
}

// SearchResponse represents the JSON response schema for the nb_search tool.
type SearchResponse struct {
	Query    string           `json:"query"`
	Results  []SearchResult   `json:"results"`
	Total    int              `json:"total"`
	Metadata ResponseMetadata `json:"metadata"`
}

// SearchResult is one matching note. Bodies are omitted; clients read the
// file at Path for full text.
type SearchResult struct {
	Path       string   `json:"path"`
	Title      string   `json:"title,omitempty"`
	Sections   []string `json:"sections,omitempty"`
	Score      float64  `json:"score"`
	Highlights []string `json:"highlights,omitempty"`
}

// ResponseMetadata contains timing information.
type ResponseMetadata struct {
	TookMs int `json:"took_ms"`
}
