package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrSessionExpired is returned when the backend rejects the session; the
// host redirects to its login flow on it.
var ErrSessionExpired = errors.New("session expired")

// Client talks to the backend's request/response endpoints: submission,
// liveness, and session validation. The event stream has its own transport
// in the stream package because it must not share this client's timeout.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	return NewClientWithTimeout(baseURL, token, 30*time.Second)
}

func NewClientWithTimeout(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type submitRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type submitResponse struct {
	ConversationID string `json:"conversation_id"`
}

// Send submits a user message. conversationID may be empty, meaning "start a
// new conversation"; the returned identity is whatever the backend allocated
// or confirmed. A submission failure never affects the streaming connection.
func (c *Client) Send(ctx context.Context, message, conversationID string) (string, error) {
	reqBody, err := json.Marshal(submitRequest{
		Message:        message,
		ConversationID: conversationID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/messages", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", statusError(resp)
	}

	var submitResp submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&submitResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return submitResp.ConversationID, nil
}

// Probe checks backend liveness. Success means the backend answered at all;
// it says nothing about model readiness beyond that.
func (c *Client) Probe(ctx context.Context) error {
	url := fmt.Sprintf("%s/api/health", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("cannot reach backend at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("backend returned status %d", resp.StatusCode)
	}
	return nil
}

// ValidateSession verifies the session token. 401-class responses map to
// ErrSessionExpired so callers can distinguish login problems from outages.
func (c *Client) ValidateSession(ctx context.Context) error {
	url := fmt.Sprintf("%s/api/session", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrSessionExpired
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("session check returned status %d", resp.StatusCode)
	}
	return nil
}

// BaseURL exposes the configured backend address for the stream transport.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Token exposes the bearer token for the stream transport.
func (c *Client) Token() string {
	return c.token
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func statusError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	var errorResp struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &errorResp) == nil && errorResp.Error != "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, errorResp.Error)
	}
	return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
}
