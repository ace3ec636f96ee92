package relay

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// duplexChannel holds the state of a persistent channel: whether it is
// open, the listener that forwards user input, and one open message stream
// per role. Streams survive a close and resume on the next open.
type duplexChannel struct {
	h *Handler

	mu       sync.Mutex
	open     bool
	listener func(ctx context.Context, body Body) error
	streams  map[Role]*MessageStream
}

// Connect runs the duplex connector and blocks until it returns.
func (h *Handler) Connect(ctx context.Context) error {
	t, ok := h.transport.(DuplexTransport)
	if !ok {
		return fmt.Errorf("connect over %s transport: %w", h.Kind(), ErrWrongTransport)
	}
	d := h.duplex
	return t.Connector.Connect(ctx, DuplexSignals{
		OnOpen:     d.onOpen,
		OnResponse: d.onResponse,
		OnClose:    d.onClose,
		Listen:     d.listen,
	})
}

// Open reports whether the duplex channel is open.
func (h *Handler) Open() bool {
	if h.duplex == nil {
		return false
	}
	h.duplex.mu.Lock()
	defer h.duplex.mu.Unlock()
	return h.duplex.open
}

// Forward sends user input over the open channel. It returns
// ErrChannelClosed when the channel is not open.
func (h *Handler) Forward(ctx context.Context, body Body) error {
	if h.duplex == nil {
		return fmt.Errorf("forward over %s transport: %w", h.Kind(), ErrWrongTransport)
	}
	h.duplex.mu.Lock()
	open, fn := h.duplex.open, h.duplex.listener
	h.duplex.mu.Unlock()
	if !open || fn == nil {
		return ErrChannelClosed
	}
	return fn(ctx, body)
}

func (d *duplexChannel) onOpen() {
	d.mu.Lock()
	d.open = true
	d.mu.Unlock()
	d.h.store.RemoveError()
}

func (d *duplexChannel) onClose() {
	d.mu.Lock()
	d.open = false
	d.mu.Unlock()
}

func (d *duplexChannel) listen(fn func(ctx context.Context, body Body) error) {
	d.mu.Lock()
	d.listener = fn
	d.mu.Unlock()
}

func (d *duplexChannel) onResponse(ctx context.Context, p Payload) {
	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		d.h.logger.Debug("payload on closed channel dropped")
		return
	}

	p, err := d.h.prepare(ctx, p)
	if err != nil {
		d.mu.Unlock()
		d.h.logger.Error("invalid server payload", zap.Error(err))
		d.surface(GenericErrorText)
		return
	}

	role := p.Role.OrDefault()
	marker := d.h.cfg.StreamEndMarker
	_, streaming := d.streams[role]
	rc := ReduceContext{
		Simulate:   d.h.cfg.Simulate,
		StreamOpen: streaming || (d.h.cfg.Simulate && marker != ""),
	}
	switch Reduce(p, rc) {
	case ActionError:
		d.releaseLocked(role, d.h.cfg.PartialOnError)
		d.mu.Unlock()
		d.h.logger.Error("service error", zap.String("error", p.Error.Message()))
		d.surface(d.h.serviceErrorText(p.Error))
	case ActionUpsert:
		defer d.mu.Unlock()
		d.upsertLocked(role, p, marker)
	case ActionSimulate:
		d.mu.Unlock()
		d.h.simulate(ctx, p, nopNotifier{})
	default:
		d.mu.Unlock()
		d.h.commit(p)
	}
}

// upsertLocked routes a payload into the role's stream. A payload equal to
// the end marker finalizes and removes the stream.
func (d *duplexChannel) upsertLocked(role Role, p Payload, marker string) {
	s := d.streams[role]
	if marker != "" && (p.Text == marker || p.HTML == marker) {
		if s != nil {
			s.Finalize()
			delete(d.streams, role)
		}
		return
	}
	if s == nil {
		s = NewMessageStream(d.h.store, role, d.h.logger)
		d.streams[role] = s
	}
	if err := s.Upsert(p); err != nil {
		d.h.logger.Warn("upsert streamed message", zap.String("role", string(role)), zap.Error(err))
	}
}

// releaseLocked finalizes or discards the role's open stream, if any, and
// forgets it so the next reply starts a fresh message.
func (d *duplexChannel) releaseLocked(role Role, policy PartialPolicy) {
	s, ok := d.streams[role]
	if !ok {
		return
	}
	delete(d.streams, role)
	if policy == PartialDiscard {
		s.Discard()
		return
	}
	s.Finalize()
}

// surface adds an error message unless the newest message already is one.
func (d *duplexChannel) surface(text string) {
	if d.h.store.IsLastMessageError() {
		return
	}
	d.h.store.AddNewErrorMessage(SourceService, text)
}
