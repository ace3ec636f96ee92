// Package sse implements relay.Sender over a server-sent-events stream.
//
// The request body is POSTed as JSON. Each data event carries one JSON
// payload; a "[DONE]" data line or the end of the body closes the stream,
// and an event named "error" is delivered as a server-declared error.
package sse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/fwojciec/relay"
	"go.uber.org/zap"
)

// doneMarker ends a stream before the body closes.
const doneMarker = "[DONE]"

// Interface compliance check.
var _ relay.Sender = (*Client)(nil)

// Client streams responses from an SSE endpoint.
type Client struct {
	url        string
	headers    http.Header
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithHeader adds a request header.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers.Add(key, value) }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a [Client] for the endpoint at url.
func New(url string, opts ...Option) *Client {
	c := &Client{
		url:        url,
		headers:    make(http.Header),
		httpClient: http.DefaultClient,
		logger:     zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Send POSTs body and delivers every streamed payload through sig. It
// returns when the stream ends or ctx is done.
func (c *Client) Send(ctx context.Context, body relay.Body, sig relay.Signals) error {
	if sig.Cancel != nil {
		// Cancelling ctx closes the connection, so a stop is always honoured.
		sig.Cancel.OnStop(func(context.Context) bool { return true })
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("sse: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("sse: %w", err)
	}
	for k, vs := range c.headers {
		req.Header[k] = vs
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sse: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sse: %w", relay.ReadStatusError(resp.StatusCode, resp.Body))
	}

	sig.OnOpen()
	r := NewReader(resp.Body)
	for {
		evt, err := r.Next()
		if errors.Is(err, io.EOF) {
			sig.OnClose()
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("sse: %w", err)
		}
		if evt.Data == doneMarker {
			sig.OnClose()
			return nil
		}
		sig.OnResponse(ctx, c.decode(evt))
	}
}

// decode turns an event into a payload. Garbled data yields an empty
// payload, which the handler rejects as malformed.
func (c *Client) decode(evt Event) relay.Payload {
	p, err := relay.DecodePayload([]byte(evt.Data))
	if evt.Name == "error" {
		if err == nil && p.Error != nil {
			return p
		}
		return relay.Payload{Error: relay.NewPayloadError(evt.Data)}
	}
	if err != nil {
		c.logger.Warn("garbled event", zap.String("event", evt.Name), zap.Error(err))
		return relay.Payload{}
	}
	return p
}
