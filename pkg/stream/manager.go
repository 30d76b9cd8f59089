package stream

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/parleylabs/parley/pkg/events"
	"github.com/parleylabs/parley/pkg/logger"
)

// Options tunes the Manager's reconnection behavior. Zero values fall back
// to the documented defaults.
type Options struct {
	// ReconnectDelay is the fixed delay before redialing after a completed
	// assistant turn. Not part of the backoff schedule.
	ReconnectDelay time.Duration
	// BackoffBase is the base of the exponential failure schedule.
	BackoffBase time.Duration
	// BackoffCap bounds the failure schedule.
	BackoffCap time.Duration
}

func (o Options) withDefaults() Options {
	if o.ReconnectDelay == 0 {
		o.ReconnectDelay = 250 * time.Millisecond
	}
	if o.BackoffBase == 0 {
		o.BackoffBase = time.Second
	}
	if o.BackoffCap == 0 {
		o.BackoffCap = 16 * time.Second
	}
	return o
}

// Manager owns the single active streaming connection: it opens it, tears
// it down, distinguishes deliberate closures from failures, and reconnects
// with bounded exponential backoff. All lifecycle decisions happen on one
// goroutine; a deliberate closure is classified structurally by the Manager
// having stopped consuming the connection before closing it, so no
// suppression flag exists to race on.
type Manager struct {
	dialer   Dialer
	identity func() string
	opts     Options
	log      *log.Logger

	eventsCh chan events.StreamEvent
	notes    chan Notification
	resetCh  chan struct{}

	mu      sync.RWMutex
	state   State
	attempt int

	cancel  context.CancelFunc
	stopped chan struct{}
	started bool
}

// NewManager builds a Manager around a dialer. identity is read on every
// dial so reconnections always carry the current conversation forward.
func NewManager(dialer Dialer, identity func() string, opts Options) *Manager {
	return &Manager{
		dialer:   dialer,
		identity: identity,
		opts:     opts.withDefaults(),
		log:      logger.WithComponent("stream_manager"),
		eventsCh: make(chan events.StreamEvent, 64),
		notes:    make(chan Notification, 16),
		resetCh:  make(chan struct{}, 1),
		state:    StateIdle,
		stopped:  make(chan struct{}),
	}
}

// Events delivers every decoded stream event in order.
func (m *Manager) Events() <-chan events.StreamEvent {
	return m.eventsCh
}

// Notifications delivers transient user-visible notices.
func (m *Manager) Notifications() <-chan Notification {
	return m.notes
}

// State returns a snapshot of the connection state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Attempts returns the consecutive-failure counter. It resets to zero only
// on a successful open.
func (m *Manager) Attempts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.attempt
}

// Start begins dialing immediately. It may be called once.
func (m *Manager) Start(ctx context.Context) {
	if m.started {
		return
	}
	m.started = true

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	go m.run(runCtx)
}

// Stop tears down the connection and cancels all pending timers.
func (m *Manager) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.stopped
}

// Reset abandons the current connection and redials immediately. The caller
// clears the identity store first so the new dial starts a new conversation.
func (m *Manager) Reset() {
	select {
	case m.resetCh <- struct{}{}:
	default:
	}
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.stopped)
	defer close(m.eventsCh)
	defer close(m.notes)

	var conn Connection
	var connEvents <-chan events.StreamEvent

	// One redial timer serves both schedules: the short fixed delay after a
	// completed turn and the backoff schedule after a failure. It is always
	// stopped before being re-armed.
	redial := time.NewTimer(0)
	defer redial.Stop()

	closeConn := func() {
		if conn != nil {
			// Stop consuming before closing: the closure that follows is
			// ours, and the error path below can never observe it.
			connEvents = nil
			conn.Close()
			conn = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			closeConn()
			return

		case <-m.resetCh:
			m.log.Info("Resetting conversation stream")
			closeConn()
			m.setState(StateClosedExpected)
			m.setAttempt(0)
			rearm(redial, 0)

		case <-redial.C:
			m.setState(StateConnecting)
			id := m.identity()
			m.log.Debug("Dialing stream", "conversation_id", id, "attempt", m.Attempts())

			c, err := m.dialer.Dial(ctx, id)
			if err != nil {
				m.connectionFailed(err, redial)
				continue
			}
			conn = c
			connEvents = c.Events()

		case ev, ok := <-connEvents:
			if !ok {
				// A closure the Manager did not initiate is a failure, even
				// when the server ended the stream without an error.
				err := conn.Err()
				conn, connEvents = nil, nil
				m.connectionFailed(err, redial)
				continue
			}
			m.handleEvent(ctx, ev, closeConn, redial)
		}
	}
}

func (m *Manager) handleEvent(ctx context.Context, ev events.StreamEvent, closeConn func(), redial *time.Timer) {
	switch ev.Kind {
	case events.KindOpen:
		m.setState(StateOpen)
		m.setAttempt(0)
		m.log.Debug("Stream established", "conversation_id", ev.ConversationID)
		m.forward(ctx, ev)

	case events.KindComplete:
		m.forward(ctx, ev)
		// Expected end of one assistant turn, not of the session: close
		// deliberately and redial shortly on a clean connection.
		closeConn()
		m.setState(StateClosedExpected)
		rearm(redial, m.opts.ReconnectDelay)

	case events.KindError:
		m.forward(ctx, ev)
		m.notify(Notification{
			Kind:    NoticeStreamError,
			Message: ev.Content,
			Attempt: m.Attempts(),
		})

	case events.KindThinking, events.KindMessage, events.KindToolUsed:
		m.forward(ctx, ev)

	case events.KindUnknown:
		m.log.Debug("Ignoring unrecognized stream event")
	}
}

func (m *Manager) connectionFailed(err error, redial *time.Timer) {
	m.setState(StateClosedError)

	attempt := m.Attempts()
	delay := Backoff(attempt, m.opts.BackoffBase, m.opts.BackoffCap)
	m.setAttempt(attempt + 1)

	msg := "connection lost"
	if err != nil {
		msg = err.Error()
	}
	m.log.Warn("Stream connection failed", "error", msg, "attempt", attempt, "retry_in", delay)

	m.notify(Notification{
		Kind:    NoticeConnectionLost,
		Message: msg,
		Attempt: attempt,
	})
	rearm(redial, delay)
}

func (m *Manager) forward(ctx context.Context, ev events.StreamEvent) {
	select {
	case m.eventsCh <- ev:
	case <-ctx.Done():
	}
}

func (m *Manager) notify(n Notification) {
	select {
	case m.notes <- n:
	default:
		// A full channel drops the notice rather than stalling the stream;
		// the log line already recorded it.
	}
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Manager) setAttempt(n int) {
	m.mu.Lock()
	m.attempt = n
	m.mu.Unlock()
}

// rearm stops a timer, drains a stale fire if one is pending, and resets it.
// Only ever called from the run goroutine.
func rearm(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
