package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/parleylabs/parley/pkg/events"
	"github.com/parleylabs/parley/pkg/logger"
)

// Connection is one live event stream. Events() closes when the stream ends;
// Err() then reports why, nil meaning a clean server-side end of stream.
type Connection interface {
	Events() <-chan events.StreamEvent
	Err() error
	Close()
}

// Dialer opens a streaming connection for a conversation. An empty
// conversationID asks the backend for a new conversation.
type Dialer interface {
	Dial(ctx context.Context, conversationID string) (Connection, error)
}

// SSEDialer dials the backend's text/event-stream endpoint. Its HTTP client
// deliberately has no overall timeout: the stream is expected to stay open
// indefinitely. Connection setup is still bounded via the header timeout.
type SSEDialer struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewSSEDialer(baseURL, token string) *SSEDialer {
	return &SSEDialer{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
	}
}

func (d *SSEDialer) Dial(ctx context.Context, conversationID string) (Connection, error) {
	streamURL := fmt.Sprintf("%s/api/stream", d.baseURL)
	if conversationID != "" {
		streamURL += "?conversation_id=" + url.QueryEscape(conversationID)
	}

	connCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(connCtx, http.MethodGet, streamURL, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stream request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("stream request failed with status %d", resp.StatusCode)
	}

	conn := &sseConnection{
		ctx:    connCtx,
		cancel: cancel,
		ch:     make(chan events.StreamEvent, 64),
	}
	go conn.read(resp.Body)
	return conn, nil
}

type sseConnection struct {
	ctx    context.Context
	cancel context.CancelFunc
	ch     chan events.StreamEvent
	err    error
}

func (c *sseConnection) Events() <-chan events.StreamEvent {
	return c.ch
}

// Err reports why the event channel closed. Only valid after it has closed.
func (c *sseConnection) Err() error {
	return c.err
}

func (c *sseConnection) Close() {
	c.cancel()
}

func (c *sseConnection) read(body io.ReadCloser) {
	defer close(c.ch)
	defer body.Close()

	log := logger.WithComponent("sse_connection")
	decoder := events.NewDecoder(body)

	for {
		ev, err := decoder.Next()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Debug("Stream read ended", "error", err)
			c.err = err
			return
		}
		select {
		case c.ch <- ev:
		case <-c.ctx.Done():
			return
		}
	}
}
