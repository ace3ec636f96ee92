// Package websocket implements relay.Connector over a websocket channel.
// Every text frame received carries one JSON payload; user input is sent
// as the JSON request body.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/fwojciec/relay"
	ws "github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// closeGrace bounds the close handshake write.
const closeGrace = time.Second

// errRemoteClosed ends the read loop when the server closes the channel.
var errRemoteClosed = errors.New("remote closed")

// Interface compliance check.
var _ relay.Connector = (*Connector)(nil)

// Connector dials a websocket endpoint and runs it as a duplex channel.
type Connector struct {
	url    string
	header http.Header
	dialer *ws.Dialer
	logger *zap.Logger
}

// Option configures a [Connector].
type Option func(*Connector)

// WithHeader adds a handshake header.
func WithHeader(key, value string) Option {
	return func(c *Connector) { c.header.Add(key, value) }
}

// WithDialer sets a custom dialer.
func WithDialer(d *ws.Dialer) Option {
	return func(c *Connector) { c.dialer = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Connector) { c.logger = l }
}

// New creates a [Connector] for the endpoint at url.
func New(url string, opts ...Option) *Connector {
	c := &Connector{
		url:    url,
		header: make(http.Header),
		dialer: &ws.Dialer{HandshakeTimeout: 8 * time.Second},
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Connect dials the endpoint and delivers frames until ctx is done or the
// server closes the channel, both of which return nil.
func (c *Connector) Connect(ctx context.Context, sig relay.DuplexSignals) error {
	conn, resp, err := c.dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket: dial: %w (status %s)", err, resp.Status)
		}
		return fmt.Errorf("websocket: dial: %w", err)
	}

	var wmu sync.Mutex
	sig.Listen(func(ctx context.Context, body relay.Body) error {
		wmu.Lock()
		defer wmu.Unlock()
		if dl, ok := ctx.Deadline(); ok {
			conn.SetWriteDeadline(dl)
		} else {
			conn.SetWriteDeadline(time.Time{})
		}
		if err := conn.WriteJSON(body); err != nil {
			return fmt.Errorf("websocket: write: %w", err)
		}
		return nil
	})
	sig.OnOpen()
	defer sig.OnClose()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		msg := ws.FormatCloseMessage(ws.CloseNormalClosure, "")
		_ = conn.WriteControl(ws.CloseMessage, msg, time.Now().Add(closeGrace))
		return conn.Close()
	})
	g.Go(func() error {
		return c.read(gctx, conn, sig)
	})

	err = g.Wait()
	if errors.Is(err, errRemoteClosed) || ctx.Err() != nil {
		return nil
	}
	return err
}

func (c *Connector) read(ctx context.Context, conn *ws.Conn, sig relay.DuplexSignals) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || ws.IsCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway) {
				return errRemoteClosed
			}
			return fmt.Errorf("websocket: read: %w", err)
		}
		p, err := relay.DecodePayload(data)
		if err != nil {
			c.logger.Warn("garbled frame", zap.Int("bytes", len(data)), zap.Error(err))
			p = relay.Payload{}
		}
		sig.OnResponse(ctx, p)
	}
}
