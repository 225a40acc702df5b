// Package retriever answers queries against a built memory: it embeds the
// query, ranks records through the index, and decodes only the frames that
// hold the top results, in parallel and through a shared frame cache.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/papercomputeco/memvid/pkg/codec"
	"github.com/papercomputeco/memvid/pkg/container"
	"github.com/papercomputeco/memvid/pkg/embeddings"
	"github.com/papercomputeco/memvid/pkg/framecache"
	"github.com/papercomputeco/memvid/pkg/index"
	"github.com/papercomputeco/memvid/pkg/logger"
	"github.com/papercomputeco/memvid/pkg/record"
	"github.com/papercomputeco/memvid/pkg/worker"
)

// Frames is random access to the frames of a container.
type Frames interface {
	TotalFrames() int
	BuildID() string
	Get(n int) (image.Image, error)
	Close() error
}

// Retriever is safe for concurrent use once loaded. All state other than the
// frame cache is immutable between Load and Close.
type Retriever struct {
	cfg      Config
	embedder embeddings.Embedder
	codec    codec.Codec
	logger   *slog.Logger

	// mu serializes lifecycle transitions against running operations.
	mu    sync.RWMutex
	state atomic.Int32

	index  *index.Manager
	frames Frames
	cache  *framecache.Cache
	pool   *worker.Pool

	containerPath string
	indexBase     string

	searches       atomic.Int64
	timeouts       atomic.Int64
	decodeFailures atomic.Int64
}

// New returns an unopened Retriever.
func New(e embeddings.Embedder, c codec.Codec, cfg Config) *Retriever {
	cfg.setDefaults()
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	return &Retriever{
		cfg:      cfg,
		embedder: e,
		codec:    c,
		logger:   cfg.Logger,
	}
}

// Open is New followed by Load.
func Open(ctx context.Context, containerPath, indexBase string, e embeddings.Embedder, c codec.Codec, cfg Config) (*Retriever, error) {
	r := New(e, c, cfg)
	if err := r.Load(ctx, containerPath, indexBase); err != nil {
		return nil, err
	}
	return r, nil
}

// State returns the current lifecycle state.
func (r *Retriever) State() State {
	return State(r.state.Load())
}

// Load opens the frame container and index artifacts, validates them
// against each other, and moves the Retriever to READY. On failure nothing
// is retained and the Retriever stays UNOPENED.
func (r *Retriever) Load(ctx context.Context, containerPath, indexBase string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	frames, err := container.Open(containerPath)
	if err != nil {
		return err
	}

	idx, err := index.Load(indexBase, frames, index.LoadOptions{NProbe: r.cfg.NProbe, Logger: r.logger})
	if err != nil {
		_ = frames.Close()
		return err
	}

	if built := idx.Stats().Codec; built != "" && built != r.codec.Name() {
		_ = idx.Close()
		_ = frames.Close()
		return fmt.Errorf("%w: built with %q, decoding with %q", ErrCodecMismatch, built, r.codec.Name())
	}

	if err := r.attach(frames, idx, containerPath, indexBase); err != nil {
		_ = idx.Close()
		_ = frames.Close()
		return err
	}

	r.logger.Info("memory loaded",
		"container", containerPath,
		"index", indexBase,
		"records", idx.Len(),
		"frames", frames.TotalFrames(),
	)
	return nil
}

// LoadFrom moves the Retriever to READY over an already-open frame source and
// index. The frame count of idx must match frames. On success the Retriever
// owns both and closes them on Close.
func (r *Retriever) LoadFrom(frames Frames, idx *index.Manager) error {
	if frames.TotalFrames() != idx.TotalFrames() {
		return fmt.Errorf("%w: index refers to %d frames, container has %d",
			index.ErrVideoMismatch, idx.TotalFrames(), frames.TotalFrames())
	}
	if err := idx.Freeze(); err != nil {
		return err
	}
	return r.attach(frames, idx, "", "")
}

func (r *Retriever) attach(frames Frames, idx *index.Manager, containerPath, indexBase string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.State() {
	case StateReady:
		return ErrAlreadyLoaded
	case StateClosed:
		return ErrNotReady
	}

	pool, err := worker.NewPool(&worker.Config{
		NumWorkers: uint(r.cfg.MaxWorkers),
		QueueSize:  uint(r.cfg.QueueSize),
		Logger:     r.logger,
	})
	if err != nil {
		return err
	}

	r.frames = frames
	r.index = idx
	r.containerPath = containerPath
	r.indexBase = indexBase
	r.pool = pool
	r.cache = framecache.New(r.decodeFrame, framecache.Config{
		Size:        r.cfg.CacheSize,
		NegativeTTL: r.cfg.NegativeTTL,
		Logger:      r.logger,
	})
	r.state.Store(int32(StateReady))
	return nil
}

// decodeFrame is the cache loader: fetch the image, decode the code, parse
// the payload, and check it holds the records the index places there.
func (r *Retriever) decodeFrame(_ context.Context, n int) ([]record.Payload, error) {
	img, err := r.frames.Get(n)
	if err != nil {
		return nil, fmt.Errorf("%w: frame %d: %v", codec.ErrDecode, n, err)
	}

	data, err := r.codec.Decode(img)
	if err != nil {
		return nil, fmt.Errorf("frame %d: %w", n, err)
	}

	payloads, err := record.UnmarshalFrame(data)
	if err != nil {
		return nil, fmt.Errorf("%w: frame %d: %v", codec.ErrDecode, n, err)
	}
	for _, id := range r.index.RecordsIn(n) {
		if _, ok := record.Find(payloads, id); !ok {
			return nil, fmt.Errorf("%w: frame %d does not contain record %d", codec.ErrDecode, n, id)
		}
	}
	return payloads, nil
}

// begin takes a read hold on the lifecycle. The returned func releases it.
func (r *Retriever) begin() (func(), error) {
	r.mu.RLock()
	if r.State() != StateReady {
		r.mu.RUnlock()
		return nil, ErrNotReady
	}
	return r.mu.RUnlock, nil
}

// Record returns a single record by id, decoding its frame if necessary.
func (r *Retriever) Record(ctx context.Context, id int) (Result, error) {
	done, err := r.begin()
	if err != nil {
		return Result{}, err
	}
	defer done()

	frame, ok := r.index.FrameOf(id)
	if !ok {
		return Result{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	payloads, err := r.cache.Get(ctx, frame)
	if err != nil {
		if isDecodeFailure(err) {
			r.decodeFailures.Add(1)
		}
		return Result{}, err
	}

	p, ok := record.Find(payloads, id)
	if !ok {
		r.decodeFailures.Add(1)
		return Result{}, fmt.Errorf("%w: frame %d does not contain record %d", codec.ErrDecode, frame, id)
	}
	return Result{
		RecordID:    id,
		Text:        p.Text,
		FrameNumber: frame,
		Metadata:    p.Metadata,
	}, nil
}

// GetRecordByID returns the exact text of record id.
func (r *Retriever) GetRecordByID(ctx context.Context, id int) (string, error) {
	res, err := r.Record(ctx, id)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// Prefetch decodes frames into the cache ahead of use, up to the configured
// per-call limit. It returns how many frames are cached afterwards.
func (r *Retriever) Prefetch(ctx context.Context, frames []int) (int, error) {
	done, err := r.begin()
	if err != nil {
		return 0, err
	}
	defer done()

	if len(frames) > r.cfg.PrefetchFrames {
		frames = frames[:r.cfg.PrefetchFrames]
	}

	futures := make([]*worker.Future[[]record.Payload], 0, len(frames))
	for _, f := range dedupe(frames) {
		if f < 0 || f >= r.frames.TotalFrames() {
			continue
		}
		futures = append(futures, worker.Submit(ctx, r.pool, func(ctx context.Context) ([]record.Payload, error) {
			return r.cache.Get(ctx, f)
		}))
	}

	cached := 0
	for _, fut := range futures {
		if _, err := fut.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return cached, ctxErr
			}
			if isDecodeFailure(err) {
				r.decodeFailures.Add(1)
			}
			continue
		}
		cached++
	}
	return cached, nil
}

// ClearCache drops every decoded frame and remembered failure.
func (r *Retriever) ClearCache() error {
	done, err := r.begin()
	if err != nil {
		return err
	}
	defer done()
	r.cache.Clear()
	return nil
}

// Close releases the worker pool, cache, index, and container handle. It is
// idempotent; every later operation fails with ErrNotReady.
func (r *Retriever) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.State()
	r.state.Store(int32(StateClosed))
	if prev != StateReady {
		return nil
	}

	r.cache.Close()
	r.pool.Close()
	err := errors.Join(r.index.Close(), r.frames.Close())

	r.logger.Debug("retriever closed", "searches", r.searches.Load(), "decode_failures", r.decodeFailures.Load())
	return err
}

func isDecodeFailure(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// dedupe returns the distinct values of xs in first-seen order.
func dedupe(xs []int) []int {
	seen := make(map[int]struct{}, len(xs))
	out := make([]int, 0, len(xs))
	for _, x := range xs {
		if _, ok := seen[x]; ok {
			continue
		}
		seen[x] = struct{}{}
		out = append(out, x)
	}
	return out
}
