package stream_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/parleylabs/parley/pkg/events"
	"github.com/parleylabs/parley/pkg/stream"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeConn struct {
	ch        chan events.StreamEvent
	err       error
	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		ch:     make(chan events.StreamEvent, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) Events() <-chan events.StreamEvent { return c.ch }
func (c *fakeConn) Err() error                        { return c.err }

func (c *fakeConn) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// fail simulates a transport failure: the event channel closes while the
// manager is still consuming it.
func (c *fakeConn) fail(err error) {
	c.err = err
	close(c.ch)
}

type fakeDialer struct {
	mu    sync.Mutex
	dials []string
	conns chan *fakeConn
	errs  chan error
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{
		conns: make(chan *fakeConn, 16),
		errs:  make(chan error, 16),
	}
}

func (d *fakeDialer) Dial(ctx context.Context, conversationID string) (stream.Connection, error) {
	d.mu.Lock()
	d.dials = append(d.dials, conversationID)
	d.mu.Unlock()

	select {
	case err := <-d.errs:
		return nil, err
	default:
	}

	select {
	case conn := <-d.conns:
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dials)
}

func (d *fakeDialer) dialedWith(i int) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.dials) {
		return ""
	}
	return d.dials[i]
}

var fastOpts = stream.Options{
	ReconnectDelay: 5 * time.Millisecond,
	BackoffBase:    time.Millisecond,
	BackoffCap:     4 * time.Millisecond,
}

var _ = Describe("Manager", func() {
	var (
		dialer  *fakeDialer
		manager *stream.Manager
		id      string
		idMu    sync.Mutex
	)

	identity := func() string {
		idMu.Lock()
		defer idMu.Unlock()
		return id
	}

	setIdentity := func(v string) {
		idMu.Lock()
		defer idMu.Unlock()
		id = v
	}

	BeforeEach(func() {
		dialer = newFakeDialer()
		setIdentity("")
		manager = stream.NewManager(dialer, identity, fastOpts)
	})

	AfterEach(func() {
		manager.Stop()
	})

	It("dials immediately on start and opens on the open event", func() {
		conn := newFakeConn()
		dialer.conns <- conn
		manager.Start(context.Background())

		Eventually(dialer.dialCount).Should(Equal(1))
		Expect(manager.State()).To(Equal(stream.StateConnecting))

		conn.ch <- events.StreamEvent{Kind: events.KindOpen}
		Eventually(manager.State).Should(Equal(stream.StateOpen))
		Expect(manager.Attempts()).To(BeZero())

		Eventually(manager.Events()).Should(Receive())
	})

	It("forwards content events in order", func() {
		conn := newFakeConn()
		dialer.conns <- conn
		manager.Start(context.Background())

		conn.ch <- events.StreamEvent{Kind: events.KindThinking, Content: "hm"}
		conn.ch <- events.StreamEvent{Kind: events.KindMessage, Content: "hi"}

		var ev events.StreamEvent
		Eventually(manager.Events()).Should(Receive(&ev))
		Expect(ev.Kind).To(Equal(events.KindThinking))
		Eventually(manager.Events()).Should(Receive(&ev))
		Expect(ev.Kind).To(Equal(events.KindMessage))
	})

	It("treats complete as an expected closure and redials silently", func() {
		first := newFakeConn()
		second := newFakeConn()
		dialer.conns <- first
		dialer.conns <- second
		setIdentity("conv-1")
		manager.Start(context.Background())

		first.ch <- events.StreamEvent{Kind: events.KindOpen}
		first.ch <- events.StreamEvent{Kind: events.KindComplete}

		// The manager closes the connection itself
		Eventually(first.closed).Should(BeClosed())
		Eventually(manager.State).Should(Equal(stream.StateClosedExpected))

		// ...then redials on the fixed short delay, carrying the identity
		Eventually(dialer.dialCount).Should(Equal(2))
		Expect(dialer.dialedWith(1)).To(Equal("conv-1"))

		// and the deliberate closure never surfaces a notification
		Consistently(manager.Notifications(), 30*time.Millisecond).ShouldNot(Receive())
	})

	It("classifies an unexpected closure as a failure with exactly one notification", func() {
		first := newFakeConn()
		second := newFakeConn()
		dialer.conns <- first
		dialer.conns <- second
		manager.Start(context.Background())

		first.ch <- events.StreamEvent{Kind: events.KindOpen}
		Eventually(manager.State).Should(Equal(stream.StateOpen))

		first.fail(errors.New("connection reset"))

		var note stream.Notification
		Eventually(manager.Notifications()).Should(Receive(&note))
		Expect(note.Kind).To(Equal(stream.NoticeConnectionLost))
		Expect(note.Message).To(ContainSubstring("connection reset"))
		Expect(note.Attempt).To(BeZero())

		Consistently(manager.Notifications(), 30*time.Millisecond).ShouldNot(Receive())
		Eventually(dialer.dialCount).Should(Equal(2))
	})

	It("increments the attempt counter across consecutive failures and resets on open", func() {
		manager.Start(context.Background())

		first := newFakeConn()
		dialer.errs <- errors.New("refused")
		dialer.errs <- errors.New("refused")
		dialer.conns <- first

		Eventually(dialer.dialCount).Should(Equal(3))
		Eventually(manager.Attempts).Should(Equal(2))

		first.ch <- events.StreamEvent{Kind: events.KindOpen}
		Eventually(manager.Attempts).Should(BeZero())
		Eventually(manager.State).Should(Equal(stream.StateOpen))
	})

	It("surfaces error events verbatim without dropping the connection", func() {
		conn := newFakeConn()
		dialer.conns <- conn
		manager.Start(context.Background())

		conn.ch <- events.StreamEvent{Kind: events.KindOpen}
		conn.ch <- events.StreamEvent{Kind: events.KindError, Content: "model unavailable"}

		var note stream.Notification
		Eventually(manager.Notifications()).Should(Receive(&note))
		Expect(note.Kind).To(Equal(stream.NoticeStreamError))
		Expect(note.Message).To(Equal("model unavailable"))

		Consistently(conn.closed, 30*time.Millisecond).ShouldNot(BeClosed())
	})

	It("redials with a cleared identity after a reset", func() {
		first := newFakeConn()
		second := newFakeConn()
		dialer.conns <- first
		dialer.conns <- second
		setIdentity("conv-1")
		manager.Start(context.Background())

		Eventually(dialer.dialCount).Should(Equal(1))
		Expect(dialer.dialedWith(0)).To(Equal("conv-1"))

		setIdentity("")
		manager.Reset()

		Eventually(first.closed).Should(BeClosed())
		Eventually(dialer.dialCount).Should(Equal(2))
		Expect(dialer.dialedWith(1)).To(BeEmpty())
		Consistently(manager.Notifications(), 30*time.Millisecond).ShouldNot(Receive())
	})

	It("closes the active connection on stop", func() {
		conn := newFakeConn()
		dialer.conns <- conn
		manager.Start(context.Background())

		Eventually(dialer.dialCount).Should(Equal(1))
		manager.Stop()
		Expect(conn.closed).To(BeClosed())
	})
})
