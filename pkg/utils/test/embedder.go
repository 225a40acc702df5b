package testutils

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// MockEmbedder is a test embedder that returns predictable embeddings
type MockEmbedder struct {
	mu         sync.RWMutex
	Embeddings map[string][]float32

	// FailOn causes Embed to return an error when the input text matches
	FailOn string

	// Delay makes every Embed call wait before returning, honoring ctx.
	Delay time.Duration

	calls atomic.Int64
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string][]float32),
	}
}

// Set registers the embedding returned for text.
func (m *MockEmbedder) Set(text string, v ...float32) *MockEmbedder {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Embeddings[text] = v
	return m
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls.Add(1)

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.FailOn != "" && text == m.FailOn {
		return nil, fmt.Errorf("mock embedding failure for: %s", text)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if emb, ok := m.Embeddings[text]; ok {
		return emb, nil
	}

	// Return a default embedding for any text
	return []float32{0.1, 0.2, 0.3}, nil
}

// Calls returns the number of Embed calls made.
func (m *MockEmbedder) Calls() int64 {
	return m.calls.Load()
}

func (m *MockEmbedder) Model() string {
	return "mock"
}

func (m *MockEmbedder) Close() error {
	return nil
}
