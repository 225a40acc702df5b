// Package embeddings defines the text embedding interface used at build and
// query time, with providers in subpackages.
package embeddings

import (
	"context"
	"errors"
)

// ErrEmbedding is returned when embedding generation fails.
var ErrEmbedding = errors.New("embedding failed")

// Embedder provides text embedding capabilities.
type Embedder interface {
	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}

// Named is implemented by embedders that can report the model they use.
type Named interface {
	Model() string
}

// ModelName returns e's model name, or "" when e does not report one.
func ModelName(e Embedder) string {
	if n, ok := e.(Named); ok {
		return n.Model()
	}
	return ""
}
