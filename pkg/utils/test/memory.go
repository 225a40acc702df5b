package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/papercomputeco/memvid/pkg/retriever"
)

// MockMemory is an in-memory stand-in for a loaded retriever.
type MockMemory struct {
	mu sync.Mutex

	// Results is returned, truncated to topK, by every Search.
	Results []retriever.Result

	// Partial marks Search results as cut short by the deadline.
	Partial bool

	// SearchErr, RecordErr and StatsErr are returned when set.
	SearchErr error
	RecordErr error
	StatsErr  error

	StatsValue retriever.Stats

	lastTopK int
	lastOpts int
}

func NewMockMemory(results ...retriever.Result) *MockMemory {
	return &MockMemory{Results: results}
}

func (m *MockMemory) Search(_ context.Context, _ string, topK int, opts ...retriever.SearchOption) (*retriever.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastTopK = topK
	m.lastOpts = len(opts)

	if m.SearchErr != nil {
		return nil, m.SearchErr
	}

	n := min(topK, len(m.Results))
	res := &retriever.SearchResult{
		Results: append([]retriever.Result{}, m.Results[:n]...),
		Partial: m.Partial,
	}
	if m.Partial {
		return res, fmt.Errorf("%w: deadline exceeded", retriever.ErrSearchTimeout)
	}
	return res, nil
}

func (m *MockMemory) Record(_ context.Context, id int) (retriever.Result, error) {
	if m.RecordErr != nil {
		return retriever.Result{}, m.RecordErr
	}
	for _, r := range m.Results {
		if r.RecordID == id {
			return r, nil
		}
	}
	return retriever.Result{}, fmt.Errorf("%w: %d", retriever.ErrNotFound, id)
}

func (m *MockMemory) Stats() (retriever.Stats, error) {
	if m.StatsErr != nil {
		return retriever.Stats{}, m.StatsErr
	}
	return m.StatsValue, nil
}

// LastTopK returns the topK of the most recent Search.
func (m *MockMemory) LastTopK() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastTopK
}

// LastOptionCount reports how many search options the last Search received.
func (m *MockMemory) LastOptionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastOpts
}
