// Package completion wraps a single streaming call to an OpenAI-compatible
// chat completion service and exposes the response as a lazy, forward-only
// sequence of text deltas.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vango-go/talkrelay/pkg/core/types"
)

const (
	// DefaultBaseURL is the default upstream API endpoint.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultIdleTimeout bounds the wait for the next delta before the
	// stream is treated as failed.
	DefaultIdleTimeout = 30 * time.Second
)

// Client issues streaming chat completion requests. A Client is safe for
// concurrent use; each call owns its own stream.
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	idleTimeout time.Duration
	httpClient  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different OpenAI-compatible backend.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the HTTP client used for upstream calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithIdleTimeout bounds the gap between consecutive deltas.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.idleTimeout = d
		}
	}
}

// New creates a completion client for the given model.
func New(apiKey, model string, opts ...Option) *Client {
	c := &Client{
		apiKey:      apiKey,
		baseURL:     DefaultBaseURL,
		model:       model,
		idleTimeout: DefaultIdleTimeout,
		httpClient:  &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// chatRequest is the upstream chat completions payload.
type chatRequest struct {
	Model    string          `json:"model"`
	Messages []types.Message `json:"messages"`
	Stream   bool            `json:"stream"`
}

// StreamChat opens one streaming completion call for the given conversation
// and returns the delta stream. The stream is not restartable; a retry must
// issue a fresh call. Canceling ctx aborts the upstream request.
func (c *Client) StreamChat(ctx context.Context, messages []types.Message) (*Stream, error) {
	body, err := json.Marshal(chatRequest{Model: c.model, Messages: messages, Stream: true})
	if err != nil {
		return nil, &StreamError{Message: fmt.Sprintf("marshal request: %v", err)}
	}

	reqCtx, cancel := context.WithCancel(ctx)
	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, &StreamError{Message: fmt.Sprintf("create request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		cancel()
		return nil, &StreamError{Message: "upstream request failed", cause: err}
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		defer cancel()
		return nil, parseError(resp)
	}

	return newStream(resp.Body, cancel, c.idleTimeout), nil
}

// upstreamErrorBody is the error envelope OpenAI-compatible backends return.
type upstreamErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func parseError(resp *http.Response) *StreamError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var envelope upstreamErrorBody
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		return &StreamError{Status: resp.StatusCode, Message: envelope.Error.Message}
	}
	return &StreamError{Status: resp.StatusCode, Message: fmt.Sprintf("upstream returned status %d", resp.StatusCode)}
}
