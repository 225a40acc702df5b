// Package hash implements a deterministic, dependency-free embedder based on
// feature hashing. Word and character-trigram features are hashed into a
// fixed number of buckets with signed counts, then L2-normalized. It needs no
// model or network and is the default for local use and tests.
package hash

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/papercomputeco/memvid/pkg/embeddings"
)

const (
	// DefaultDimensions matches all-MiniLM-L6-v2.
	DefaultDimensions = 384

	// ModelName is reported by Model.
	ModelName = "feature-hash-v1"
)

// Embedder maps text to a hashed bag of features.
type Embedder struct {
	dim int
}

// NewEmbedder returns an Embedder producing vectors of dim dimensions.
func NewEmbedder(dim int) (*Embedder, error) {
	if dim == 0 {
		dim = DefaultDimensions
	}
	if dim < 0 {
		return nil, fmt.Errorf("invalid embedding dimensions %d", dim)
	}
	return &Embedder{dim: dim}, nil
}

// Embed converts text into a vector embedding.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, e.dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		e.add(vec, "w:"+w, 1)

		runes := []rune(w)
		for i := 0; i+3 <= len(runes); i++ {
			e.add(vec, "t:"+string(runes[i:i+3]), 0.5)
		}
	}

	var norm float64
	for _, x := range vec {
		norm += float64(x) * float64(x)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

func (e *Embedder) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()

	bucket := sum % uint64(e.dim)
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[bucket] += weight
}

// Dimensions returns the vector length.
func (e *Embedder) Dimensions() int {
	return e.dim
}

// Model returns ModelName.
func (e *Embedder) Model() string {
	return ModelName
}

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	return nil
}

var _ embeddings.Embedder = (*Embedder)(nil)
