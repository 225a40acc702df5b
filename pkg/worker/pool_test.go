package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Worker Pool", func() {
	var (
		wp  *Pool
		ctx context.Context
	)

	BeforeEach(func() {
		var err error
		wp, err = NewPool(&Config{NumWorkers: 2, QueueSize: 4})
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
	})

	AfterEach(func() {
		wp.Close()
	})

	It("applies defaults", func() {
		p, err := NewPool(nil)
		Expect(err).NotTo(HaveOccurred())
		defer p.Close()
		Expect(p.Workers()).To(Equal(int(defaultNumWorkers)))
	})

	It("delivers task results through futures in submission order", func() {
		futures := make([]*Future[int], 10)
		for i := range futures {
			futures[i] = Submit(ctx, wp, func(context.Context) (int, error) {
				time.Sleep(time.Duration(10-i) * time.Millisecond)
				return i * i, nil
			})
		}

		for i, f := range futures {
			v, err := f.Wait(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(i * i))
		}
	})

	It("never runs more tasks at once than it has workers", func() {
		var running, peak atomic.Int32
		futures := make([]*Future[struct{}], 12)
		for i := range futures {
			futures[i] = Submit(ctx, wp, func(context.Context) (struct{}, error) {
				n := running.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				running.Add(-1)
				return struct{}{}, nil
			})
		}
		for _, f := range futures {
			_, err := f.Wait(ctx)
			Expect(err).NotTo(HaveOccurred())
		}
		Expect(peak.Load()).To(BeNumerically("<=", 2))
	})

	It("propagates task errors", func() {
		boom := errors.New("boom")
		f := Submit(ctx, wp, func(context.Context) (string, error) {
			return "", boom
		})
		_, err := f.Wait(ctx)
		Expect(err).To(MatchError(boom))
	})

	It("converts panics into errors", func() {
		f := Submit(ctx, wp, func(context.Context) (int, error) {
			panic("bad frame")
		})
		_, err := f.Wait(ctx)
		Expect(err).To(MatchError(ContainSubstring("bad frame")))
	})

	It("returns the context error when waiting is abandoned", func() {
		release := make(chan struct{})
		f := Submit(ctx, wp, func(context.Context) (int, error) {
			<-release
			return 1, nil
		})

		waitCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()
		_, err := f.Wait(waitCtx)
		Expect(err).To(MatchError(context.DeadlineExceeded))

		close(release)
		v, err := f.Wait(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(1))
	})

	It("skips tasks whose context ended before they were picked up", func() {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		var ran atomic.Bool
		f := Submit(cancelled, wp, func(context.Context) (int, error) {
			ran.Store(true)
			return 1, nil
		})
		_, err := f.Wait(ctx)
		Expect(err).To(MatchError(context.Canceled))
		Expect(ran.Load()).To(BeFalse())
	})

	It("rejects submissions after Close", func() {
		wp.Close()
		f := Submit(ctx, wp, func(context.Context) (int, error) { return 1, nil })
		_, err := f.Wait(ctx)
		Expect(err).To(MatchError(ErrPoolClosed))
	})
})
