package relay

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Handler reduces the responses of one configured transport into message
// store mutations. The transport variant is fixed when the handler is built.
type Handler struct {
	transport Transport
	store     MessageStore
	cfg       Config
	logger    *zap.Logger

	duplex *duplexChannel
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger. The default discards all output.
func WithLogger(l *zap.Logger) Option {
	return func(h *Handler) {
		h.logger = l
	}
}

// NewHandler returns a handler for t that mutates store.
func NewHandler(t Transport, store MessageStore, cfg Config, opts ...Option) *Handler {
	h := &Handler{
		transport: t,
		store:     store,
		cfg:       cfg,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if _, ok := t.(DuplexTransport); ok {
		h.duplex = &duplexChannel{h: h, streams: make(map[Role]*MessageStream)}
	}
	return h
}

// Kind returns the kind of the configured transport.
func (h *Handler) Kind() TransportKind { return h.transport.Kind() }

// Config returns the service settings the handler was built with.
func (h *Handler) Config() Config { return h.cfg }

// Store returns the message store the handler mutates.
func (h *Handler) Store() MessageStore { return h.store }

// Exchange runs one request over a plain or stream transport and returns
// once the exchange has settled. Transport failures and server errors are
// surfaced as error messages, not returned. The exchange observes
// cancel.Context(); when cancel is nil one is derived from ctx.
func (h *Handler) Exchange(ctx context.Context, cancel *Cancellation, body Body, n Notifier) error {
	if cancel == nil {
		cancel = NewCancellation(ctx)
		defer cancel.Release()
	}
	switch t := h.transport.(type) {
	case PlainTransport:
		h.request(t.Sender, cancel, body, n)
	case StreamTransport:
		h.stream(t.Sender, cancel, body, n)
	default:
		return fmt.Errorf("exchange over %s transport: %w", h.Kind(), ErrWrongTransport)
	}
	return nil
}

// prepare runs the response interceptor and the validator.
func (h *Handler) prepare(ctx context.Context, p Payload) (Payload, error) {
	if h.cfg.ResponseInterceptor != nil {
		out, err := h.cfg.ResponseInterceptor(ctx, p)
		if err != nil {
			return Payload{}, fmt.Errorf("response interceptor: %v: %w", err, ErrMalformedPayload)
		}
		p = out
	}
	if err := ValidatePayload(p); err != nil {
		return Payload{}, err
	}
	return p, nil
}

// rejectPayload logs an invalid payload and surfaces the generic error.
func (h *Handler) rejectPayload(err error) {
	h.logger.Error("invalid server payload",
		zap.Error(err),
		zap.Bool("intercepted", h.cfg.ResponseInterceptor != nil),
	)
	h.store.AddNewErrorMessage(SourceService, GenericErrorText)
}

// serviceErrorText returns the text shown for a server-declared error.
func (h *Handler) serviceErrorText(e *PayloadError) string {
	if h.cfg.DisplayServiceErrors && e != nil && e.Message() != "" {
		return e.Message()
	}
	return ServiceErrorText
}

// failureText returns the text shown for a transport failure.
func (h *Handler) failureText(err error) string {
	if errors.Is(err, ErrMalformedPayload) {
		return GenericErrorText
	}
	if h.cfg.DisplayServiceErrors && err != nil {
		return err.Error()
	}
	return ServiceErrorText
}

// surfaceError reports a server-declared error.
func (h *Handler) surfaceError(e *PayloadError) {
	h.logger.Error("service error", zap.String("error", e.Message()), zap.Bool("structured", e.Structured()))
	h.store.AddNewErrorMessage(SourceService, h.serviceErrorText(e))
}

// commit appends a validated payload as a standalone message.
func (h *Handler) commit(p Payload) {
	p.Role = p.Role.OrDefault()
	p.Overwrite = false
	h.store.AddNewMessage(p)
}

// commitLate handles an overwrite payload that arrives after its exchange
// stopped accepting responses.
func (h *Handler) commitLate(ctx context.Context, p Payload) {
	p, err := h.prepare(ctx, p)
	if err != nil {
		h.rejectPayload(err)
		return
	}
	if p.Error != nil {
		h.surfaceError(p.Error)
		return
	}
	h.commit(p)
}

type nopNotifier struct{}

func (nopNotifier) OnOpen()   {}
func (nopNotifier) OnClose()  {}
func (nopNotifier) OnFinish() {}
