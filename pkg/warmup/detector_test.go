package warmup_test

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/parleylabs/parley/pkg/warmup"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// fakeProber answers probes from a programmable function.
type fakeProber struct {
	calls int64
	probe func(call int64, ctx context.Context) error
}

func (p *fakeProber) Probe(ctx context.Context) error {
	call := atomic.AddInt64(&p.calls, 1)
	return p.probe(call, ctx)
}

func (p *fakeProber) callCount() int64 {
	return atomic.LoadInt64(&p.calls)
}

var fastOpts = warmup.Options{
	InitialTimeout: 10 * time.Millisecond,
	PollInterval:   10 * time.Millisecond,
	MaxWait:        80 * time.Millisecond,
}

func collectStatuses(d *warmup.Detector, into *[]warmup.Status, done chan struct{}) {
	go func() {
		defer close(done)
		for s := range d.Updates() {
			*into = append(*into, s)
			if s == warmup.StatusReady || s == warmup.StatusTimedOut {
				return
			}
		}
	}()
}

var _ = Describe("Detector", func() {
	It("goes checking then ready when the probe wins the race, without polling", func() {
		prober := &fakeProber{probe: func(int64, context.Context) error { return nil }}
		detector := warmup.NewDetector(prober, fastOpts)

		var seen []warmup.Status
		done := make(chan struct{})
		collectStatuses(detector, &seen, done)

		detector.Start(context.Background())
		Eventually(done).Should(BeClosed())

		Expect(seen).To(Equal([]warmup.Status{warmup.StatusChecking, warmup.StatusReady}))

		// No poll timer was ever started: the single racing probe is all
		Consistently(prober.callCount, 40*time.Millisecond).Should(Equal(int64(1)))
	})

	It("passes through warming before ready when the backend answers late", func() {
		prober := &fakeProber{probe: func(call int64, ctx context.Context) error {
			if call <= 2 {
				return errors.New("still starting")
			}
			return nil
		}}
		detector := warmup.NewDetector(prober, fastOpts)

		var seen []warmup.Status
		done := make(chan struct{})
		collectStatuses(detector, &seen, done)

		detector.Start(context.Background())
		Eventually(done, time.Second).Should(BeClosed())

		Expect(seen).To(Equal([]warmup.Status{
			warmup.StatusChecking,
			warmup.StatusWarming,
			warmup.StatusReady,
		}))
	})

	It("reaches timed-out exactly once when the backend never answers", func() {
		prober := &fakeProber{probe: func(int64, context.Context) error {
			return errors.New("nope")
		}}
		detector := warmup.NewDetector(prober, fastOpts)

		var seen []warmup.Status
		done := make(chan struct{})
		collectStatuses(detector, &seen, done)

		detector.Start(context.Background())
		Eventually(done, time.Second).Should(BeClosed())

		timedOut := 0
		for _, s := range seen {
			if s == warmup.StatusTimedOut {
				timedOut++
			}
		}
		Expect(timedOut).To(Equal(1))
		Expect(seen[len(seen)-1]).To(Equal(warmup.StatusTimedOut))
		Expect(detector.Status()).To(Equal(warmup.StatusTimedOut))
	})

	It("is idempotent once started", func() {
		gate := make(chan struct{})
		prober := &fakeProber{probe: func(_ int64, ctx context.Context) error {
			select {
			case <-gate:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}}
		detector := warmup.NewDetector(prober, fastOpts)

		detector.Start(context.Background())
		detector.Start(context.Background())
		detector.Start(context.Background())

		close(gate)
		Eventually(detector.Status, time.Second).Should(Equal(warmup.StatusReady))

		// A second activation after ready stays a no-op as well
		detector.Start(context.Background())
		Consistently(detector.Status, 30*time.Millisecond).Should(Equal(warmup.StatusReady))
	})

	It("starts in the unknown status", func() {
		prober := &fakeProber{probe: func(int64, context.Context) error { return nil }}
		detector := warmup.NewDetector(prober, fastOpts)
		Expect(detector.Status()).To(Equal(warmup.StatusUnknown))
	})
})
