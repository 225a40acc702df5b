package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/memvid/api/search"
)

var (
	getRecordToolName    = "get_record"
	getRecordDescription = "Fetch the exact text and metadata of one record by its numeric id, as returned in search results."
)

// GetRecordInput represents the input arguments for the get_record tool.
type GetRecordInput struct {
	RecordID int `json:"record_id" jsonschema:"the id of the record to fetch"`
}

// handleGetRecord processes a record lookup via MCP.
func (s *Server) handleGetRecord(ctx context.Context, _ *mcp.CallToolRequest, input GetRecordInput) (*mcp.CallToolResult, search.Result, error) {
	if input.RecordID < 0 {
		return errorResult("record_id must be non-negative"), search.Result{}, nil
	}

	rec, err := s.searcher.Record(ctx, input.RecordID)
	if err != nil {
		return errorResult(fmt.Sprintf("Record lookup failed: %v", err)), search.Result{}, nil
	}

	return jsonResult(*rec)
}
