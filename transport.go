package relay

import "context"

// Notifier receives exchange lifecycle notifications. OnOpen fires when a
// stream starts, OnClose when it ends, and OnFinish when a one-shot request
// completes.
type Notifier interface {
	OnOpen()
	OnClose()
	OnFinish()
}

// Signals are handed to a sender for the duration of one exchange. Senders
// call OnOpen when the transport is ready, OnResponse for every payload in
// delivery order, and OnClose when the server ends the stream. Cancel is
// the exchange's cancellation token; senders observe Cancel.Context() and may
// register a stop listener with Cancel.OnStop.
type Signals struct {
	OnOpen     func()
	OnResponse func(ctx context.Context, p Payload)
	OnClose    func()
	Cancel     *Cancellation
}

// DuplexSignals are handed to a connector for the lifetime of a channel.
// Listen registers the function that forwards new user input over the
// channel while it is open.
type DuplexSignals struct {
	OnOpen     func()
	OnResponse func(ctx context.Context, p Payload)
	OnClose    func()
	Listen     func(fn func(ctx context.Context, body Body) error)
}

// Sender performs one exchange. It returns when the exchange is over from
// the transport's point of view; a non-nil error is a transport failure.
type Sender interface {
	Send(ctx context.Context, body Body, sig Signals) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, body Body, sig Signals) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, body Body, sig Signals) error {
	return f(ctx, body, sig)
}

// Connector runs a persistent duplex channel until ctx is done or the
// channel closes.
type Connector interface {
	Connect(ctx context.Context, sig DuplexSignals) error
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context, sig DuplexSignals) error

// Connect calls f.
func (f ConnectorFunc) Connect(ctx context.Context, sig DuplexSignals) error {
	return f(ctx, sig)
}

// TransportKind enumerates the transport variants.
type TransportKind int

const (
	TransportPlain  TransportKind = iota // One request, one response.
	TransportStream                      // One request, many payloads.
	TransportDuplex                      // Persistent bidirectional channel.
)

// String returns the kind name.
func (k TransportKind) String() string {
	switch k {
	case TransportPlain:
		return "plain"
	case TransportStream:
		return "stream"
	case TransportDuplex:
		return "duplex"
	default:
		return "unknown"
	}
}

// Transport is a sealed interface over the three delivery models. The
// variant is selected once, when a Handler is built.
type Transport interface {
	Kind() TransportKind
	transport()
}

// PlainTransport delivers a single response per request.
type PlainTransport struct {
	Sender Sender
}

// StreamTransport delivers incremental payloads over one logical request.
type StreamTransport struct {
	Sender Sender
}

// DuplexTransport delivers payloads over a persistent channel.
type DuplexTransport struct {
	Connector Connector
}

func (PlainTransport) Kind() TransportKind  { return TransportPlain }
func (StreamTransport) Kind() TransportKind { return TransportStream }
func (DuplexTransport) Kind() TransportKind { return TransportDuplex }

func (PlainTransport) transport()  {}
func (StreamTransport) transport() {}
func (DuplexTransport) transport() {}

// Interface compliance checks.
var (
	_ Transport = PlainTransport{}
	_ Transport = StreamTransport{}
	_ Transport = DuplexTransport{}
)

// RequestInterceptor transforms a body before it is sent.
type RequestInterceptor func(ctx context.Context, body Body) (Body, error)

// ResponseInterceptor transforms a payload before it is reduced.
type ResponseInterceptor func(ctx context.Context, p Payload) (Payload, error)
