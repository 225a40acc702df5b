package framecache_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memvid/pkg/framecache"
	"github.com/papercomputeco/memvid/pkg/record"
)

var errBadFrame = errors.New("bad frame")

// countingLoader decodes frame n into a single payload with id n.
type countingLoader struct {
	calls   atomic.Int64
	perCall sync.Map
	gate    chan struct{}
	fail    map[int]bool
}

func (l *countingLoader) load(ctx context.Context, frame int) ([]record.Payload, error) {
	l.calls.Add(1)
	v, _ := l.perCall.LoadOrStore(frame, new(atomic.Int64))
	v.(*atomic.Int64).Add(1)

	if l.gate != nil {
		select {
		case <-l.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if l.fail[frame] {
		return nil, fmt.Errorf("frame %d: %w", frame, errBadFrame)
	}
	return []record.Payload{{ID: frame, Text: fmt.Sprintf("frame %d", frame)}}, nil
}

func (l *countingLoader) callsFor(frame int) int64 {
	v, ok := l.perCall.Load(frame)
	if !ok {
		return 0
	}
	return v.(*atomic.Int64).Load()
}

var _ = Describe("Cache", func() {
	var (
		ctx    context.Context
		loader *countingLoader
	)

	BeforeEach(func() {
		ctx = context.Background()
		loader = &countingLoader{fail: map[int]bool{}}
	})

	It("decodes on miss and serves hits from memory", func() {
		c := framecache.New(loader.load, framecache.Config{Size: 4})
		defer c.Close()

		p, err := c.Get(ctx, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(p[0].ID).To(Equal(3))

		p, err = c.Get(ctx, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(p[0].Text).To(Equal("frame 3"))

		Expect(loader.calls.Load()).To(Equal(int64(1)))
		st := c.Stats()
		Expect(st.Hits).To(Equal(int64(1)))
		Expect(st.Misses).To(Equal(int64(1)))
		Expect(st.Decodes).To(Equal(int64(1)))
		Expect(st.Size).To(Equal(1))
		Expect(st.Capacity).To(Equal(4))
	})

	It("decodes a frame once for many concurrent callers", func() {
		loader.gate = make(chan struct{})
		c := framecache.New(loader.load, framecache.Config{Size: 4})
		defer c.Close()

		const callers = 32
		var wg sync.WaitGroup
		errs := make(chan error, callers)
		for range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer GinkgoRecover()
				p, err := c.Get(ctx, 7)
				if err == nil && p[0].ID != 7 {
					err = fmt.Errorf("got payload %d", p[0].ID)
				}
				errs <- err
			}()
		}

		Eventually(loader.calls.Load).Should(Equal(int64(1)))
		Consistently(loader.calls.Load, 50*time.Millisecond).Should(Equal(int64(1)))
		close(loader.gate)
		wg.Wait()
		close(errs)

		for err := range errs {
			Expect(err).NotTo(HaveOccurred())
		}
		Expect(loader.callsFor(7)).To(Equal(int64(1)))
	})

	It("evicts the least recently used frame", func() {
		c := framecache.New(loader.load, framecache.Config{Size: 2})
		defer c.Close()

		for _, f := range []int{1, 2, 1, 3} {
			_, err := c.Get(ctx, f)
			Expect(err).NotTo(HaveOccurred())
		}

		Expect(c.Contains(1)).To(BeTrue())
		Expect(c.Contains(2)).To(BeFalse())
		Expect(c.Contains(3)).To(BeTrue())
		Expect(c.Stats().Evictions).To(Equal(int64(1)))
	})

	It("decodes again when retention is disabled", func() {
		c := framecache.New(loader.load, framecache.Config{Size: 0})
		defer c.Close()

		_, err := c.Get(ctx, 1)
		Expect(err).NotTo(HaveOccurred())
		_, err = c.Get(ctx, 1)
		Expect(err).NotTo(HaveOccurred())

		Expect(c.Len()).To(BeZero())
		Expect(loader.callsFor(1)).To(Equal(int64(2)))
	})

	Context("with negative caching", func() {
		var now time.Time

		BeforeEach(func() {
			now = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
			loader.fail[5] = true
		})

		It("remembers failures until the TTL passes", func() {
			c := framecache.New(loader.load, framecache.Config{
				Size:        4,
				NegativeTTL: 30 * time.Second,
				Now:         func() time.Time { return now },
			})
			defer c.Close()

			_, err := c.Get(ctx, 5)
			Expect(err).To(MatchError(errBadFrame))
			_, err = c.Get(ctx, 5)
			Expect(err).To(MatchError(errBadFrame))
			Expect(loader.callsFor(5)).To(Equal(int64(1)))

			now = now.Add(31 * time.Second)
			_, err = c.Get(ctx, 5)
			Expect(err).To(MatchError(errBadFrame))
			Expect(loader.callsFor(5)).To(Equal(int64(2)))
			Expect(c.Stats().Failures).To(Equal(int64(2)))
		})

		It("retries every time when the TTL is zero", func() {
			c := framecache.New(loader.load, framecache.Config{Size: 4})
			defer c.Close()

			for range 3 {
				_, err := c.Get(ctx, 5)
				Expect(err).To(MatchError(errBadFrame))
			}
			Expect(loader.callsFor(5)).To(Equal(int64(3)))
		})

		It("forgets failures on Clear", func() {
			c := framecache.New(loader.load, framecache.Config{Size: 4, NegativeTTL: time.Hour})
			defer c.Close()

			_, err := c.Get(ctx, 5)
			Expect(err).To(HaveOccurred())
			c.Clear()
			_, err = c.Get(ctx, 5)
			Expect(err).To(HaveOccurred())
			Expect(loader.callsFor(5)).To(Equal(int64(2)))
		})
	})

	It("lets a caller give up without failing the shared decode", func() {
		loader.gate = make(chan struct{})
		c := framecache.New(loader.load, framecache.Config{Size: 4})
		defer c.Close()

		impatient, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() {
			_, err := c.Get(impatient, 9)
			done <- err
		}()
		Eventually(loader.calls.Load).Should(Equal(int64(1)))

		waiter := make(chan error, 1)
		go func() {
			_, err := c.Get(ctx, 9)
			waiter <- err
		}()

		cancel()
		Eventually(done).Should(Receive(MatchError(context.Canceled)))

		close(loader.gate)
		Eventually(waiter).Should(Receive(BeNil()))
		Expect(c.Contains(9)).To(BeTrue())
		Expect(loader.callsFor(9)).To(Equal(int64(1)))
	})
})
