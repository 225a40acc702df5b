// Package framecache holds decoded frame payloads in a bounded LRU and makes
// sure each frame is decoded at most once at a time, no matter how many
// callers ask for it concurrently.
package framecache

import (
	"container/list"
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/papercomputeco/memvid/pkg/logger"
	"github.com/papercomputeco/memvid/pkg/record"
)

// DefaultSize is the default number of frames kept.
const DefaultSize = 1000

// Loader decodes one frame. It runs on the cache's own context, detached
// from any single caller, so one caller giving up does not fail the others
// waiting on the same frame.
type Loader func(ctx context.Context, frame int) ([]record.Payload, error)

// Config configures a Cache.
type Config struct {
	// Size is the maximum number of frames held. Zero or less disables
	// retention while keeping decode deduplication.
	Size int

	// NegativeTTL is how long a failed decode is remembered. Zero disables
	// negative caching.
	NegativeTTL time.Duration

	Logger *slog.Logger

	// Now is the clock used for negative entries. Defaults to time.Now.
	Now func() time.Time
}

// Stats are cumulative cache counters.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Decodes   int64 `json:"decodes"`
	Failures  int64 `json:"failures"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"size"`
	Capacity  int   `json:"capacity"`
}

type entry struct {
	frame    int
	payloads []record.Payload
}

type negative struct {
	err     error
	expires time.Time
}

// Cache is safe for concurrent use.
type Cache struct {
	load   Loader
	cfg    Config
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	items    map[int]*list.Element
	lru      *list.List
	negative map[int]negative

	flights singleflight.Group

	hits      atomic.Int64
	misses    atomic.Int64
	decodes   atomic.Int64
	failures  atomic.Int64
	evictions atomic.Int64
}

// New returns a Cache that fills misses with load.
func New(load Loader, c Config) *Cache {
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}
	if c.Now == nil {
		c.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		load:     load,
		cfg:      c,
		logger:   c.Logger,
		ctx:      ctx,
		cancel:   cancel,
		items:    make(map[int]*list.Element),
		lru:      list.New(),
		negative: make(map[int]negative),
	}
}

// Get returns the payloads of frame, decoding it if it is not cached.
// Concurrent Gets for the same uncached frame share a single decode.
func (c *Cache) Get(ctx context.Context, frame int) ([]record.Payload, error) {
	if p, ok := c.lookup(frame); ok {
		c.hits.Add(1)
		return p, nil
	}
	c.misses.Add(1)

	if err := c.recentFailure(frame); err != nil {
		return nil, err
	}

	ch := c.flights.DoChan(strconv.Itoa(frame), func() (any, error) {
		// a flight that finished between our lookup and DoChan already
		// filled the cache
		if p, ok := c.lookup(frame); ok {
			return p, nil
		}

		c.decodes.Add(1)
		p, err := c.load(c.ctx, frame)
		if err != nil {
			c.failures.Add(1)
			c.remember(frame, err)
			c.logger.Debug("frame decode failed", "frame", frame, "error", err)
			return nil, err
		}
		c.store(frame, p)
		return p, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]record.Payload), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Contains reports whether frame is cached, without touching recency.
func (c *Cache) Contains(frame int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[frame]
	return ok
}

// Len returns the number of cached frames.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Clear drops all cached frames and remembered failures. Counters are kept.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[int]*list.Element)
	c.lru.Init()
	c.negative = make(map[int]negative)
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Decodes:   c.decodes.Load(),
		Failures:  c.failures.Load(),
		Evictions: c.evictions.Load(),
		Size:      c.Len(),
		Capacity:  max(c.cfg.Size, 0),
	}
}

// Close cancels in-flight decodes and clears the cache.
func (c *Cache) Close() {
	c.cancel()
	c.Clear()
}

func (c *Cache) lookup(frame int) ([]record.Payload, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[frame]
	if !ok {
		return nil, false
	}
	c.lru.MoveToFront(el)
	return el.Value.(*entry).payloads, true
}

// recentFailure returns the remembered error for frame, if it has not expired.
func (c *Cache) recentFailure(frame int) error {
	if c.cfg.NegativeTTL <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.negative[frame]
	if !ok {
		return nil
	}
	if !c.cfg.Now().Before(n.expires) {
		delete(c.negative, frame)
		return nil
	}
	return n.err
}

func (c *Cache) remember(frame int, err error) {
	// cancellation is not a property of the frame
	if c.cfg.NegativeTTL <= 0 || c.ctx.Err() != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.negative[frame] = negative{err: err, expires: c.cfg.Now().Add(c.cfg.NegativeTTL)}
}

func (c *Cache) store(frame int, p []record.Payload) {
	if c.cfg.Size <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.negative, frame)
	if el, ok := c.items[frame]; ok {
		el.Value.(*entry).payloads = p
		c.lru.MoveToFront(el)
		return
	}

	c.items[frame] = c.lru.PushFront(&entry{frame: frame, payloads: p})
	for c.lru.Len() > c.cfg.Size {
		el := c.lru.Back()
		c.lru.Remove(el)
		delete(c.items, el.Value.(*entry).frame)
		c.evictions.Add(1)
	}
}
