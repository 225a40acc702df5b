package index

import (
	"context"
	"io"
)

// flat keeps all vectors in one contiguous slice and scans them exhaustively.
type flat struct {
	dim    int
	metric Metric
	keys   []int
	data   []float32
}

func newFlat(dim int, metric Metric) *flat {
	return &flat{dim: dim, metric: metric}
}

func (f *flat) add(id int, v []float32) error {
	f.keys = append(f.keys, id)
	f.data = append(f.data, v...)
	return nil
}

func (f *flat) train() error { return nil }

func (f *flat) vector(i int) []float32 {
	return f.data[i*f.dim : (i+1)*f.dim]
}

func (f *flat) search(ctx context.Context, q []float32, k int) ([]Hit, error) {
	hits := make([]Hit, len(f.keys))
	for i, id := range f.keys {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		hits[i] = Hit{RecordID: id, Score: score(f.metric, q, f.vector(i))}
	}
	return topHits(hits, k), nil
}

func (f *flat) len() int { return len(f.keys) }

func (f *flat) ids() ([]int, error) {
	out := make([]int, len(f.keys))
	copy(out, f.keys)
	return out, nil
}

func (f *flat) persist(w io.Writer, _ string) error {
	return writeVectors(w, vecHeader{
		kind:   kindFlat,
		metric: f.metric,
		dim:    f.dim,
	}, f.keys, f.data, nil)
}

func (f *flat) close() error { return nil }
