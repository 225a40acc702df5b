package index

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
)

// Metric is the similarity measure used to rank records.
type Metric string

const (
	// MetricCosine ranks by cosine similarity. Vectors are normalized on
	// insert so scoring reduces to a dot product.
	MetricCosine Metric = "cosine"

	// MetricL2 ranks by Euclidean distance. Scores are negated distances so
	// that higher is always better.
	MetricL2 Metric = "l2"
)

// ParseMetric maps a configuration name to a Metric.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(s) {
	case "", "cosine":
		return MetricCosine, nil
	case "l2", "euclidean":
		return MetricL2, nil
	default:
		return "", fmt.Errorf("%w: metric %q", ErrUnknownType, s)
	}
}

// Hit is a single search result.
type Hit struct {
	RecordID int     `json:"record_id"`
	Score    float32 `json:"score"`
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func l2(a, b []float32) float32 {
	var s float32
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return float32(math.Sqrt(float64(s)))
}

// normalize returns a unit-length copy of v. The zero vector is returned as-is.
func normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	var n float64
	for _, x := range v {
		n += float64(x) * float64(x)
	}
	if n == 0 {
		copy(out, v)
		return out
	}
	inv := float32(1 / math.Sqrt(n))
	for i, x := range v {
		out[i] = x * inv
	}
	return out
}

func score(m Metric, q, v []float32) float32 {
	if m == MetricL2 {
		return -l2(q, v)
	}
	return dot(q, v)
}

// compareHits orders by score descending, then record id ascending.
func compareHits(a, b Hit) int {
	if a.Score != b.Score {
		if a.Score > b.Score {
			return -1
		}
		return 1
	}
	return cmp.Compare(a.RecordID, b.RecordID)
}

// topHits sorts hits and truncates to k.
func topHits(hits []Hit, k int) []Hit {
	slices.SortFunc(hits, compareHits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func finite(v []float32) bool {
	for _, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return false
		}
	}
	return true
}
