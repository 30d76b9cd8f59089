package warmup

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/parleylabs/parley/pkg/logger"
)

// Status is the cold-start detector's view of the backend. It is owned
// exclusively by the Detector and read-only everywhere else.
type Status int

const (
	StatusUnknown Status = iota
	StatusChecking
	StatusWarming
	StatusReady
	StatusTimedOut
)

func (s Status) String() string {
	switch s {
	case StatusChecking:
		return "checking"
	case StatusWarming:
		return "warming up"
	case StatusReady:
		return "ready"
	case StatusTimedOut:
		return "timed out"
	default:
		return "unknown"
	}
}

// Prober is a cheap liveness check against the backend.
type Prober interface {
	Probe(ctx context.Context) error
}

// Options tunes the detection schedule. Zero values fall back to defaults.
type Options struct {
	// InitialTimeout is how long the first probe may take before the
	// backend is assumed to be cold-starting.
	InitialTimeout time.Duration
	// PollInterval is the fixed delay between probes while warming.
	PollInterval time.Duration
	// MaxWait bounds the total time spent waiting for the backend.
	MaxWait time.Duration
}

func (o Options) withDefaults() Options {
	if o.InitialTimeout == 0 {
		o.InitialTimeout = 3 * time.Second
	}
	if o.PollInterval == 0 {
		o.PollInterval = 2 * time.Second
	}
	if o.MaxWait == 0 {
		o.MaxWait = 60 * time.Second
	}
	return o
}

// Detector distinguishes a cold-starting backend from ordinary latency. It
// races one probe against a short timeout; a win means ready with no polling
// at all, a loss means polling on a fixed interval until the backend answers
// or the total bound expires. It runs once per session activation.
type Detector struct {
	prober Prober
	opts   Options
	log    *log.Logger

	mu      sync.RWMutex
	status  Status
	started bool

	updates chan Status
}

func NewDetector(prober Prober, opts Options) *Detector {
	return &Detector{
		prober:  prober,
		opts:    opts.withDefaults(),
		log:     logger.WithComponent("warmup"),
		status:  StatusUnknown,
		updates: make(chan Status, 8),
	}
}

// Status returns a snapshot of the current status.
func (d *Detector) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status
}

// Updates delivers every status transition, in order.
func (d *Detector) Updates() <-chan Status {
	return d.updates
}

// Start begins detection. Idempotent: re-entering an already started or
// ready session does not re-trigger probing.
func (d *Detector) Start(ctx context.Context) {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return
	}
	d.started = true
	d.mu.Unlock()

	go d.run(ctx)
}

func (d *Detector) run(ctx context.Context) {
	deadline := time.Now().Add(d.opts.MaxWait)
	d.transition(StatusChecking)

	// Race the first probe against the short timeout. The probe outlives
	// the race so a late answer still counts during polling.
	first := make(chan error, 1)
	probeCtx, cancelProbe := context.WithTimeout(ctx, d.opts.MaxWait)
	defer cancelProbe()
	go func() {
		first <- d.prober.Probe(probeCtx)
	}()

	raceTimer := time.NewTimer(d.opts.InitialTimeout)
	defer raceTimer.Stop()

	select {
	case err := <-first:
		if err == nil {
			// Fast probe win: ready, and no poll timer is ever started.
			d.transition(StatusReady)
			return
		}
		d.log.Debug("Initial liveness probe failed", "error", err)
	case <-raceTimer.C:
		d.log.Debug("Initial liveness probe exceeded timeout", "timeout", d.opts.InitialTimeout)
	case <-ctx.Done():
		return
	}

	d.transition(StatusWarming)
	d.poll(ctx, first, deadline)
}

// poll probes on the fixed interval until success or the total bound. The
// in-flight first probe is still consumed so a late success counts.
func (d *Detector) poll(ctx context.Context, first <-chan error, deadline time.Time) {
	ticker := time.NewTicker(d.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-first:
			first = nil
			if err == nil {
				d.transition(StatusReady)
				return
			}

		case <-ticker.C:
			if time.Now().After(deadline) {
				d.log.Warn("Backend did not become ready in time", "waited", d.opts.MaxWait)
				d.transition(StatusTimedOut)
				return
			}

			probeCtx, cancel := context.WithTimeout(ctx, d.opts.PollInterval)
			err := d.prober.Probe(probeCtx)
			cancel()
			if err == nil {
				d.transition(StatusReady)
				return
			}
			d.log.Debug("Liveness probe failed while warming", "error", err)

		case <-ctx.Done():
			return
		}
	}
}

func (d *Detector) transition(s Status) {
	d.mu.Lock()
	d.status = s
	d.mu.Unlock()

	select {
	case d.updates <- s:
	default:
	}
}
