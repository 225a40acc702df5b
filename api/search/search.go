// Package search provides shared search types and logic over a loaded
// memory. It is used by both the REST API endpoints and the MCP server tools.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/papercomputeco/memvid/pkg/logger"
	"github.com/papercomputeco/memvid/pkg/record"
	"github.com/papercomputeco/memvid/pkg/retriever"
)

// DefaultTopK is used when a request does not ask for a result count.
const DefaultTopK = retriever.DefaultTopK

// Memory is the query surface of a loaded retriever.
type Memory interface {
	Search(ctx context.Context, query string, topK int, opts ...retriever.SearchOption) (*retriever.SearchResult, error)
	Record(ctx context.Context, id int) (retriever.Result, error)
	Stats() (retriever.Stats, error)
}

// Input represents the input arguments for a search request.
type Input struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`

	// TimeoutMS bounds the search in milliseconds. Zero uses the retriever's
	// configured timeout.
	TimeoutMS int64 `json:"timeout_ms,omitempty"`
}

// Result represents a single search result.
type Result struct {
	RecordID    int             `json:"record_id"`
	Score       float32         `json:"score"`
	FrameNumber int             `json:"frame_number"`
	Text        string          `json:"text"`
	Metadata    record.Metadata `json:"metadata,omitempty"`
}

// Output represents the output of a search operation.
type Output struct {
	Query   string   `json:"query"`
	Results []Result `json:"results"`
	Count   int      `json:"count"`

	// Partial is set when the search deadline passed before every frame was
	// decoded; Results then holds the ranked subset that completed.
	Partial bool `json:"partial,omitempty"`

	Dropped   int   `json:"dropped,omitempty"`
	ElapsedMS int64 `json:"elapsed_ms"`
}

// Searcher runs searches against a Memory.
type Searcher struct {
	memory Memory
	logger *slog.Logger
}

// NewSearcher creates a Searcher. A nil logger discards output.
func NewSearcher(m Memory, log *slog.Logger) *Searcher {
	if log == nil {
		log = logger.Nop()
	}
	return &Searcher{memory: m, logger: log}
}

// Search ranks records for in.Query. A search cut short by its deadline is
// not an error: the completed subset is returned with Partial set.
func (s *Searcher) Search(ctx context.Context, in Input) (*Output, error) {
	if in.Query == "" {
		return nil, errors.New("query is required")
	}
	topK := in.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	var opts []retriever.SearchOption
	if in.TimeoutMS > 0 {
		opts = append(opts, retriever.WithTimeout(time.Duration(in.TimeoutMS)*time.Millisecond))
	}

	res, err := s.memory.Search(ctx, in.Query, topK, opts...)
	if err != nil {
		if !errors.Is(err, retriever.ErrSearchTimeout) || res == nil {
			return nil, fmt.Errorf("search failed: %w", err)
		}
		s.logger.Warn("search returned a partial result",
			"query", in.Query,
			"results", len(res.Results),
		)
	}

	out := &Output{
		Query:     in.Query,
		Results:   make([]Result, len(res.Results)),
		Count:     len(res.Results),
		Partial:   res.Partial,
		Dropped:   res.Dropped,
		ElapsedMS: res.Elapsed.Milliseconds(),
	}
	for i, r := range res.Results {
		out.Results[i] = Result{
			RecordID:    r.RecordID,
			Score:       r.Score,
			FrameNumber: r.FrameNumber,
			Text:        r.Text,
			Metadata:    r.Metadata,
		}
	}
	return out, nil
}

// Record returns a single record by id.
func (s *Searcher) Record(ctx context.Context, id int) (*Result, error) {
	r, err := s.memory.Record(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Result{
		RecordID:    r.RecordID,
		FrameNumber: r.FrameNumber,
		Text:        r.Text,
		Metadata:    r.Metadata,
	}, nil
}

// Stats returns the memory's statistics.
func (s *Searcher) Stats() (retriever.Stats, error) {
	return s.memory.Stats()
}
