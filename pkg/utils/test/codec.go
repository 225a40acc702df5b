package testutils

import (
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/papercomputeco/memvid/pkg/codec"
)

// CountingCodec wraps a codec and counts Encode and Decode calls. It can
// slow down or fail decodes to exercise concurrency and failure paths.
type CountingCodec struct {
	codec.Codec

	// DecodeDelay is slept at the start of every Decode.
	DecodeDelay time.Duration

	// FailDecode makes every Decode fail with codec.ErrDecode.
	FailDecode atomic.Bool

	encodes atomic.Int64
	decodes atomic.Int64

	mu   sync.Mutex
	gate chan struct{}
}

// NewCountingCodec wraps inner, or a small raw codec when inner is nil.
func NewCountingCodec(inner codec.Codec) *CountingCodec {
	if inner == nil {
		inner = codec.NewRaw(64, 0)
	}
	return &CountingCodec{Codec: inner}
}

func (c *CountingCodec) Encode(payload []byte) (image.Image, error) {
	c.encodes.Add(1)
	return c.Codec.Encode(payload)
}

func (c *CountingCodec) Decode(img image.Image) ([]byte, error) {
	c.decodes.Add(1)

	c.mu.Lock()
	gate := c.gate
	c.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if c.DecodeDelay > 0 {
		time.Sleep(c.DecodeDelay)
	}
	if c.FailDecode.Load() {
		return nil, fmt.Errorf("%w: injected failure", codec.ErrDecode)
	}
	return c.Codec.Decode(img)
}

// Hold makes Decode block until Release is called.
func (c *CountingCodec) Hold() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gate = make(chan struct{})
}

// Release unblocks decodes held by Hold.
func (c *CountingCodec) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gate != nil {
		close(c.gate)
		c.gate = nil
	}
}

// Encodes returns the number of Encode calls.
func (c *CountingCodec) Encodes() int64 {
	return c.encodes.Load()
}

// Decodes returns the number of Decode calls.
func (c *CountingCodec) Decodes() int64 {
	return c.decodes.Load()
}
