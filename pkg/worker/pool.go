// Package worker provides a bounded task pool with explicit creation and
// shutdown. Work is submitted as a Task and its result is collected through a
// Future, so callers can fan work out and reassemble results in any order they
// choose.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/papercomputeco/memvid/pkg/logger"
)

var (
	defaultNumWorkers   uint = 4
	defaultJobQueueSize uint = 64
)

// ErrPoolClosed is returned by futures whose task was submitted after Close.
var ErrPoolClosed = errors.New("worker pool closed")

// Task is a unit of work executed by the pool.
type Task[T any] func(ctx context.Context) (T, error)

// Config is the configuration options for the worker pool.
type Config struct {
	// NumWorkers is the number of goroutines in the pool (defaults to 4).
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 64).
	// Submit blocks while the queue is full.
	QueueSize uint

	// Logger is the provided slog logger
	Logger *slog.Logger
}

type job struct {
	ctx context.Context
	run func(ctx context.Context)
}

// Pool executes tasks on a fixed number of goroutines.
type Pool struct {
	config *Config
	queue  chan job
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c == nil {
		c = &Config{}
	}
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}
	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	p := &Pool{
		config: c,
		queue:  make(chan job, c.QueueSize),
		logger: c.Logger,
	}

	p.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go p.worker(i)
	}

	return p, nil
}

// Workers returns the number of worker goroutines.
func (p *Pool) Workers() int {
	return int(p.config.NumWorkers)
}

// Close stops accepting tasks and waits for queued tasks to drain.
// It is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

// Submit queues task on p and returns a Future for its result. Submit blocks
// while the queue is full; if ctx ends first, the Future resolves with the
// context error. A task whose ctx has ended by the time a worker picks it up
// is not run.
func Submit[T any](ctx context.Context, p *Pool, task Task[T]) *Future[T] {
	f := newFuture[T]()

	j := job{
		ctx: ctx,
		run: func(ctx context.Context) {
			if err := ctx.Err(); err != nil {
				var zero T
				f.resolve(zero, err)
				return
			}
			f.resolve(runTask(ctx, task))
		},
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		var zero T
		f.resolve(zero, ErrPoolClosed)
		return f
	}

	select {
	case p.queue <- j:
	case <-ctx.Done():
		var zero T
		f.resolve(zero, ctx.Err())
	}

	return f
}

func runTask[T any](ctx context.Context, task Task[T]) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task(ctx)
}

// worker is the inner worker loop that pulls jobs off the queue until Close.
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for j := range p.queue {
		j.run(j.ctx)
	}

	p.logger.Debug("worker stopped", "worker_id", id)
}
