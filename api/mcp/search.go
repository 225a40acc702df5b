package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/memvid/api/search"
)

var (
	searchToolName    = "search"
	searchDescription = "Semantic search over the records stored in the memory. Returns the most relevant text chunks for the query, best match first, with their scores and metadata."
)

// SearchInput represents the input arguments for the search tool.
type SearchInput struct {
	Query     string `json:"query" jsonschema:"the search query text"`
	TopK      int    `json:"top_k,omitempty" jsonschema:"number of results to return (default: 5)"`
	TimeoutMS int    `json:"timeout_ms,omitempty" jsonschema:"optional search deadline in milliseconds"`
}

// handleSearch processes a search request.
func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, search.Output, error) {
	logger := s.config.Logger

	logger.Debug("MCP search request",
		"query", input.Query,
		"top_k", input.TopK,
	)

	output, err := s.searcher.Search(ctx, search.Input{
		Query:     input.Query,
		TopK:      input.TopK,
		TimeoutMS: int64(input.TimeoutMS),
	})
	if err != nil {
		logger.Error("MCP search failed", "error", err)
		return errorResult(fmt.Sprintf("Search failed: %v", err)), search.Output{}, nil
	}

	return jsonResult(*output)
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// jsonResult serializes the structured output as JSON for the text field:
// tools returning structured content also return it in a TextContent block
// for clients that only read text.
func jsonResult[T any](output T) (*mcp.CallToolResult, T, error) {
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		var zero T
		return errorResult(fmt.Sprintf("Failed to serialize results: %v", err)), zero, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}
