package retriever

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/papercomputeco/memvid/pkg/index"
	"github.com/papercomputeco/memvid/pkg/record"
	"github.com/papercomputeco/memvid/pkg/worker"
)

// Result is one ranked record.
type Result struct {
	RecordID    int             `json:"record_id"`
	Text        string          `json:"text"`
	Score       float32         `json:"score"`
	FrameNumber int             `json:"frame_number"`
	Metadata    record.Metadata `json:"metadata,omitempty"`
}

// SearchResult is the outcome of a Search.
type SearchResult struct {
	Results []Result `json:"results"`

	// Partial is set when the deadline passed before every frame was decoded.
	// Results then holds the ranked subset that did complete.
	Partial bool `json:"partial"`

	// Dropped counts records left out because their frame failed to decode.
	Dropped int `json:"dropped"`

	Elapsed time.Duration `json:"elapsed"`
}

// Search embeds query, ranks records, and decodes the frames holding the
// top topK. Results keep index rank order regardless of decode completion
// order. Records whose frame fails to decode are dropped and counted.
//
// If the deadline passes, Search returns the completed ranked subset with
// Partial set, together with an error wrapping ErrSearchTimeout.
func (r *Retriever) Search(ctx context.Context, query string, topK int, opts ...SearchOption) (*SearchResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: %d", index.ErrInvalidTopK, topK)
	}

	done, err := r.begin()
	if err != nil {
		return nil, err
	}
	defer done()

	o := searchOptions{timeout: r.cfg.Timeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	start := time.Now()
	r.searches.Add(1)
	res := &SearchResult{Results: []Result{}}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return r.interrupted(ctx, res, start, fmt.Errorf("embedding query: %w", err))
	}

	hits, err := r.index.Search(ctx, vec, topK)
	if err != nil {
		return r.interrupted(ctx, res, start, err)
	}

	// one decode task per distinct frame, in rank order of first appearance
	frameOf := make([]int, len(hits))
	futures := make(map[int]*worker.Future[[]record.Payload], len(hits))
	for i, h := range hits {
		f, _ := r.index.FrameOf(h.RecordID)
		frameOf[i] = f
		if _, ok := futures[f]; ok {
			continue
		}
		futures[f] = worker.Submit(ctx, r.pool, func(ctx context.Context) ([]record.Payload, error) {
			return r.cache.Get(ctx, f)
		})
	}

	failed := make(map[int]bool)
	expired := false
	for i, h := range hits {
		fut := futures[frameOf[i]]
		if !expired {
			select {
			case <-fut.Done():
			case <-ctx.Done():
				expired = true
			}
		}
		if expired {
			// past the deadline only already-finished frames are used
			select {
			case <-fut.Done():
			default:
				res.Partial = true
				continue
			}
		}

		payloads, err := fut.Wait(context.Background())
		if err != nil {
			if !isDecodeFailure(err) {
				res.Partial = true
				continue
			}
			if !failed[frameOf[i]] {
				failed[frameOf[i]] = true
				r.decodeFailures.Add(1)
				r.logger.Warn("dropping record with undecodable frame",
					"record_id", h.RecordID, "frame", frameOf[i], "error", err)
			}
			res.Dropped++
			continue
		}

		p, ok := record.Find(payloads, h.RecordID)
		if !ok {
			res.Dropped++
			continue
		}
		res.Results = append(res.Results, Result{
			RecordID:    h.RecordID,
			Text:        p.Text,
			Score:       h.Score,
			FrameNumber: frameOf[i],
			Metadata:    p.Metadata,
		})
	}
	res.Elapsed = time.Since(start)

	if res.Partial {
		return res, r.timeoutError(ctx)
	}

	r.logger.Debug("search complete",
		"top_k", topK,
		"hits", len(hits),
		"frames", len(futures),
		"results", len(res.Results),
		"dropped", res.Dropped,
		"elapsed", res.Elapsed,
	)
	return res, nil
}

// interrupted turns an error during embedding or ranking into a partial
// result when it was caused by the deadline.
func (r *Retriever) interrupted(ctx context.Context, res *SearchResult, start time.Time, err error) (*SearchResult, error) {
	if ctx.Err() == nil {
		return nil, err
	}
	res.Partial = true
	res.Elapsed = time.Since(start)
	return res, r.timeoutError(ctx)
}

func (r *Retriever) timeoutError(ctx context.Context) error {
	err := ctx.Err()
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		r.timeouts.Add(1)
		return fmt.Errorf("%w: %v", ErrSearchTimeout, context.DeadlineExceeded)
	}
	return err
}
