package builder

import (
	"log/slog"

	"github.com/papercomputeco/memvid/pkg/container"
	"github.com/papercomputeco/memvid/pkg/index"
)

const (
	DefaultChunkSize       = 500
	DefaultOverlap         = 50
	DefaultRecordsPerFrame = 1
	DefaultWorkers         = 4
	DefaultQueueSize       = 64
)

// Config configures a Builder. Zero fields take the defaults above.
type Config struct {
	// ChunkSize and Overlap are used by AddFile and AddDocuments when the
	// caller passes zero.
	ChunkSize int
	Overlap   int

	// RecordsPerFrame is how many consecutive records share one frame.
	RecordsPerFrame int

	// Workers bounds concurrent embed and render tasks.
	Workers int

	// QueueSize bounds rendered frames waiting to be appended.
	QueueSize int

	Compression container.Compression

	// Index configures the index built alongside the container. An empty
	// Model is filled from the embedder when it reports one.
	Index index.Config

	Logger *slog.Logger
}

func (c *Config) setDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.Overlap < 0 {
		c.Overlap = 0
	}
	if c.RecordsPerFrame <= 0 {
		c.RecordsPerFrame = DefaultRecordsPerFrame
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
}
