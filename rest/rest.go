// Package rest implements relay.Sender as a single HTTP request and
// response. Requests carrying files are sent as multipart forms and may be
// routed to a dedicated endpoint by MIME type.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fwojciec/relay"
	"go.uber.org/zap"
)

// Interface compliance check.
var _ relay.Sender = (*Client)(nil)

// Route sends requests whose files all match Pattern to URL. Pattern is a
// glob over MIME types, such as "image/*" or "audio/{mpeg,wav}".
type Route struct {
	Pattern string
	URL     string
}

// Client posts request bodies to an HTTP endpoint.
type Client struct {
	url        string
	routes     []Route
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

// WithRoute adds a file route. Routes are tried in the order added.
func WithRoute(pattern, url string) Option {
	return func(c *Client) { c.routes = append(c.routes, Route{Pattern: pattern, URL: url}) }
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

// Send posts body and delivers the single response payload through sig.
func (c *Client) Send(ctx context.Context, body relay.Body, sig relay.Signals) error {
	if sig.Cancel != nil {
		sig.Cancel.OnStop(func(context.Context) bool { return true })
	}

	url, err := c.route(body.Files)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, url, body)
	if err != nil {
		return fmt.Errorf("rest: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rest: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rest: %w", relay.ReadStatusError(resp.StatusCode, resp.Body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("rest: read response: %w", err)
	}
	p, err := relay.DecodePayload(data)
	if err != nil {
		c.logger.Warn("garbled response", zap.Int("bytes", len(data)), zap.Error(err))
		p = relay.Payload{}
	}
	sig.OnResponse(ctx, p)
	return nil
}

// route picks the endpoint for a set of attachments: the first route whose
// pattern matches every file type, or the default URL.
func (c *Client) route(files []relay.Attachment) (string, error) {
	if len(files) == 0 {
		return c.url, nil
	}
	for _, r := range c.routes {
		ok, err := matchAll(r.Pattern, files)
		if err != nil {
			return "", fmt.Errorf("rest: route %q: %w", r.Pattern, err)
		}
		if ok {
			return r.URL, nil
		}
	}
	return c.url, nil
}

func matchAll(pattern string, files []relay.Attachment) (bool, error) {
	if !doublestar.ValidatePattern(pattern) {
		return false, doublestar.ErrBadPattern
	}
	for _, f := range files {
		ok, err := doublestar.Match(pattern, f.Type)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (c *Client) newRequest(ctx context.Context, url string, body relay.Body) (*http.Request, error) {
	var (
		payload     []byte
		contentType string
		err         error
	)
	if len(body.Files) > 0 {
		payload, contentType, err = encodeMultipart(body)
	} else {
		payload, err = json.Marshal(body)
		contentType = "application/json"
	}
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	for k, vs := range c.headers {
		req.Header[k] = vs
	}
	req.Header.Set("Content-Type", contentType)
	return req, nil
}
