package retriever

import (
	"log/slog"
	"time"

	"github.com/papercomputeco/memvid/pkg/framecache"
)

const (
	DefaultTopK           = 5
	DefaultMaxWorkers     = 4
	DefaultQueueSize      = 64
	DefaultNegativeTTL    = 30 * time.Second
	DefaultTimeout        = 10 * time.Second
	DefaultPrefetchFrames = 50
)

// Config configures a Retriever. Zero fields take the defaults above.
type Config struct {
	// TopK is used by callers that do not pass an explicit result count.
	TopK int

	// MaxWorkers bounds concurrent frame decodes.
	MaxWorkers int

	// QueueSize is the decode task queue capacity.
	QueueSize int

	// CacheSize is the number of decoded frames kept. Negative disables
	// retention.
	CacheSize int

	// NegativeTTL is how long a failed frame decode is remembered.
	NegativeTTL time.Duration

	// Timeout applies to searches that do not set their own. Negative means
	// no timeout.
	Timeout time.Duration

	// PrefetchFrames caps how many frames a single Prefetch call decodes.
	PrefetchFrames int

	// NProbe overrides the persisted IVF nprobe when positive.
	NProbe int

	Logger *slog.Logger
}

func (c *Config) setDefaults() {
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = DefaultMaxWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.CacheSize == 0 {
		c.CacheSize = framecache.DefaultSize
	}
	if c.NegativeTTL == 0 {
		c.NegativeTTL = DefaultNegativeTTL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.PrefetchFrames <= 0 {
		c.PrefetchFrames = DefaultPrefetchFrames
	}
}

// SearchOption customizes a single Search call.
type SearchOption func(*searchOptions)

type searchOptions struct {
	timeout time.Duration
}

// WithTimeout bounds a Search call. Zero or negative disables the timeout for
// this call.
func WithTimeout(d time.Duration) SearchOption {
	return func(o *searchOptions) {
		o.timeout = d
		if d <= 0 {
			o.timeout = -1
		}
	}
}
