// Package builder turns a collection of text records into a frame container
// and its paired index.
package builder

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/papercomputeco/memvid/pkg/chunk"
	"github.com/papercomputeco/memvid/pkg/codec"
	"github.com/papercomputeco/memvid/pkg/container"
	"github.com/papercomputeco/memvid/pkg/embeddings"
	"github.com/papercomputeco/memvid/pkg/index"
	"github.com/papercomputeco/memvid/pkg/logger"
	"github.com/papercomputeco/memvid/pkg/record"
	"github.com/papercomputeco/memvid/pkg/worker"
)

// Document is one input to AddDocuments.
type Document struct {
	Text     string
	Metadata record.Metadata
}

// Result summarizes a completed build.
type Result struct {
	TotalRecords       int           `json:"total_records"`
	TotalFrames        int           `json:"total_frames"`
	AvgRecordsPerFrame float64       `json:"avg_records_per_frame"`
	ContainerPath      string        `json:"container_path"`
	ContainerBytes     int64         `json:"container_bytes"`
	IndexPath          string        `json:"index_path"`
	VectorPath         string        `json:"vector_path"`
	BuildID            string        `json:"build_id"`
	Codec              string        `json:"codec"`
	Duration           time.Duration `json:"duration"`
	Index              index.Stats   `json:"index"`
}

// Builder collects records and builds them. Adding records is safe for
// concurrent use; Build takes a snapshot of the records present when it
// starts.
type Builder struct {
	cfg      Config
	store    *chunk.Store
	embedder embeddings.Embedder
	codec    codec.Codec
	logger   *slog.Logger
}

// New returns an empty Builder.
func New(e embeddings.Embedder, c codec.Codec, cfg Config) *Builder {
	cfg.setDefaults()
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.Index.Model == "" {
		cfg.Index.Model = embeddings.ModelName(e)
	}
	cfg.Index.Logger = cfg.Logger

	return &Builder{
		cfg:      cfg,
		store:    chunk.NewStore(cfg.Logger),
		embedder: e,
		codec:    c,
		logger:   cfg.Logger,
	}
}

// AddRecord appends a single record.
func (b *Builder) AddRecord(text string, md record.Metadata) (int, error) {
	return b.store.AddRecord(text, md)
}

// AddRecords appends each text as its own record.
func (b *Builder) AddRecords(texts []string) ([]int, error) {
	return b.store.AddRecords(texts)
}

// AddText chunks text and appends every chunk.
func (b *Builder) AddText(text string, size, overlap int, md record.Metadata) ([]int, error) {
	return b.store.AddText(text, size, overlap, md)
}

// AddFile chunks the contents of a text file. Each chunk carries the file
// name as "source" metadata. Zero size uses the configured chunk size and
// overlap.
func (b *Builder) AddFile(path string, size, overlap int) ([]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", chunk.ErrIngest, path, err)
	}
	if size == 0 {
		size, overlap = b.cfg.ChunkSize, b.cfg.Overlap
	}
	md := record.Metadata{{Key: "source", Value: filepath.Base(path)}}
	return b.store.AddText(string(data), size, overlap, md)
}

// AddDocuments chunks each document in order. Zero size uses the configured
// chunk size and overlap.
func (b *Builder) AddDocuments(docs []Document, size, overlap int) ([]int, error) {
	if size == 0 {
		size, overlap = b.cfg.ChunkSize, b.cfg.Overlap
	}
	var ids []int
	for i, d := range docs {
		got, err := b.store.AddText(d.Text, size, overlap, d.Metadata)
		if err != nil {
			return ids, fmt.Errorf("document %d: %w", i, err)
		}
		ids = append(ids, got...)
	}
	return ids, nil
}

// Records returns the records added so far.
func (b *Builder) Records() []record.Record {
	return b.store.Records()
}

// Stats summarizes the records added so far.
func (b *Builder) Stats() chunk.Stats {
	return b.store.Stats()
}

// Reset discards every record. Ids restart at 0.
func (b *Builder) Reset() {
	b.store.Reset()
}

// frameJob is the set of records rendered into one frame.
type frameJob struct {
	number   int
	records  []record.Record
	payloads []record.Payload
	data     []byte
}

type rendered struct {
	job     frameJob
	img     image.Image
	vectors [][]float32
}

// plan groups records into frames and serializes each payload, failing
// before any file is touched if a payload exceeds the codec's capacity.
func (b *Builder) plan(records []record.Record) ([]frameJob, error) {
	per := b.cfg.RecordsPerFrame
	jobs := make([]frameJob, 0, (len(records)+per-1)/per)
	capacity := b.codec.Capacity()

	for start := 0; start < len(records); start += per {
		end := min(start+per, len(records))
		job := frameJob{number: len(jobs), records: records[start:end]}
		for _, r := range job.records {
			job.payloads = append(job.payloads, r.Payload())
		}

		data, err := record.MarshalFrame(job.payloads)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", job.number, err)
		}
		if len(data) > capacity {
			return nil, fmt.Errorf("%w: frame %d (records %d-%d) payload is %d bytes, %s codec holds %d; lower chunk_size or records_per_frame",
				codec.ErrCapacity, job.number, job.records[0].ID, job.records[len(job.records)-1].ID,
				len(data), b.codec.Name(), capacity)
		}
		job.data = data
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// render embeds the records of a frame and draws its code image.
func (b *Builder) render(ctx context.Context, job frameJob) (rendered, error) {
	out := rendered{job: job, vectors: make([][]float32, len(job.records))}
	for i, r := range job.records {
		v, err := b.embedder.Embed(ctx, r.Text)
		if err != nil {
			return out, fmt.Errorf("embedding record %d: %w", r.ID, err)
		}
		out.vectors[i] = v
	}

	img, err := b.codec.Encode(job.data)
	if err != nil {
		return out, fmt.Errorf("encoding frame %d: %w", job.number, err)
	}
	out.img = img
	return out, nil
}

// Build renders every record into containerPath and writes the index
// artifacts at indexBase. Embedding and rendering run on a bounded pool;
// frames are appended strictly in record order. The index is staged before
// the container is committed and published after it, so a failure before
// the commit leaves the previous container and index untouched.
func (b *Builder) Build(ctx context.Context, containerPath, indexBase string) (*Result, error) {
	start := time.Now()

	records := b.store.Records()
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no records to build", ErrBuild)
	}

	jobs, err := b.plan(records)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuild, err)
	}

	idx, err := index.New(b.cfg.Index)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuild, err)
	}
	defer idx.Close()

	w, err := container.Create(containerPath, container.WriterOptions{
		Compression: b.cfg.Compression,
		Logger:      b.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuild, err)
	}

	if err := b.pipeline(ctx, jobs, w, idx); err != nil {
		_ = w.Abort()
		return nil, fmt.Errorf("%w: %w", ErrBuild, err)
	}

	if err := w.Finish(); err != nil {
		_ = w.Abort()
		return nil, fmt.Errorf("%w: %w", ErrBuild, err)
	}

	info := index.ContainerInfo{
		BuildID:     w.BuildID().String(),
		TotalFrames: w.Frames(),
		Codec:       b.codec.Name(),
	}
	staged, err := idx.Stage(indexBase, info)
	if err != nil {
		_ = w.Abort()
		return nil, fmt.Errorf("%w: %w", ErrBuild, err)
	}

	if err := w.Commit(); err != nil {
		staged.Discard()
		_ = w.Abort()
		return nil, fmt.Errorf("%w: %w", ErrBuild, err)
	}

	if err := staged.Publish(); err != nil {
		_ = os.Remove(containerPath)
		return nil, fmt.Errorf("%w: %w", ErrBuild, err)
	}

	res := &Result{
		TotalRecords:       len(records),
		TotalFrames:        len(jobs),
		AvgRecordsPerFrame: float64(len(records)) / float64(len(jobs)),
		ContainerPath:      containerPath,
		IndexPath:          index.MetadataPath(indexBase),
		VectorPath:         index.VectorPath(indexBase, idx.Stats().Type),
		BuildID:            info.BuildID,
		Codec:              b.codec.Name(),
		Duration:           time.Since(start),
		Index:              idx.Stats(),
	}
	if st, err := os.Stat(containerPath); err == nil {
		res.ContainerBytes = st.Size()
	}

	b.logger.Info("build complete",
		"records", res.TotalRecords,
		"frames", res.TotalFrames,
		"container", containerPath,
		"index", indexBase,
		"bytes", res.ContainerBytes,
		"duration", res.Duration,
	)
	return res, nil
}

// pipeline fans frame rendering out on a worker pool and appends the results
// in frame order. The futures channel bounds how far rendering runs ahead of
// appending.
func (b *Builder) pipeline(ctx context.Context, jobs []frameJob, w *container.Writer, idx *index.Manager) error {
	pool, err := worker.NewPool(&worker.Config{
		NumWorkers: uint(b.cfg.Workers),
		QueueSize:  uint(b.cfg.QueueSize),
		Logger:     b.logger,
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	g, gctx := errgroup.WithContext(ctx)
	futures := make(chan *worker.Future[rendered], b.cfg.QueueSize)

	g.Go(func() error {
		defer close(futures)
		for _, job := range jobs {
			f := worker.Submit(gctx, pool, func(ctx context.Context) (rendered, error) {
				return b.render(ctx, job)
			})
			select {
			case futures <- f:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	g.Go(func() error {
		for f := range futures {
			r, err := f.Wait(gctx)
			if err != nil {
				return err
			}

			n, err := w.Append(r.img)
			if err != nil {
				return err
			}
			if n != r.job.number {
				return fmt.Errorf("frame %d appended as %d", r.job.number, n)
			}

			for i, rec := range r.job.records {
				if err := idx.Insert(index.Entry{
					RecordID:    rec.ID,
					FrameNumber: n,
					Embedding:   r.vectors[i],
					Preview:     record.Preview(rec.Text, record.PreviewLength),
					CharCount:   rec.CharCount,
					WordCount:   rec.WordCount,
					Metadata:    rec.Metadata,
				}); err != nil {
					return err
				}
			}
		}
		return nil
	})

	return g.Wait()
}
