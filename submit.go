package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SubmitState is the state of the submit control.
type SubmitState int

const (
	SubmitIdle      SubmitState = iota // Ready for input.
	SubmitLoading                      // Request sent, nothing received yet.
	SubmitStreaming                    // Stream open; stop is available.
	SubmitStopping                     // Stop requested, awaiting the exchange.
)

// String returns the state name.
func (s SubmitState) String() string {
	switch s {
	case SubmitIdle:
		return "idle"
	case SubmitLoading:
		return "loading"
	case SubmitStreaming:
		return "streaming"
	case SubmitStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Submitter drives submissions through a Handler and tracks the submit
// control state. At most one exchange is in flight at a time.
type Submitter struct {
	handler   *Handler
	store     MessageStore
	logger    *zap.Logger
	sessionID string
	observers []func(SubmitState)

	mu     sync.Mutex
	state  SubmitState
	cancel *Cancellation
	gen    uint64
}

// SubmitOption configures a Submitter.
type SubmitOption func(*Submitter)

// WithSessionID sets the session id stamped on user messages. The default
// is a random uuid.
func WithSessionID(id string) SubmitOption {
	return func(s *Submitter) {
		s.sessionID = id
	}
}

// WithStateObserver registers fn to be called on every state change. fn
// runs without the submitter's lock held.
func WithStateObserver(fn func(SubmitState)) SubmitOption {
	return func(s *Submitter) {
		s.observers = append(s.observers, fn)
	}
}

// NewSubmitter returns an idle submitter dispatching through h.
func NewSubmitter(h *Handler, opts ...SubmitOption) *Submitter {
	s := &Submitter{
		handler:   h,
		store:     h.store,
		logger:    h.logger,
		sessionID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SessionID returns the session id stamped on user messages.
func (s *Submitter) SessionID() string { return s.sessionID }

// State returns the current state.
func (s *Submitter) State() SubmitState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Submit records the user's request and dispatches it. Over plain and
// stream transports it blocks until the exchange settles and returns
// ErrBusy when another exchange is in flight. Over a duplex transport it
// forwards the request on the open channel. Failures past validation are
// surfaced as error messages rather than returned.
func (s *Submitter) Submit(ctx context.Context, req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if s.handler.Kind() == TransportDuplex {
		s.forward(ctx, req)
		return nil
	}

	s.mu.Lock()
	if s.state != SubmitIdle {
		s.mu.Unlock()
		return ErrBusy
	}
	cancel := NewCancellation(ctx)
	s.gen++
	gen := s.gen
	s.cancel = cancel
	s.setLocked(SubmitLoading)
	s.mu.Unlock()
	s.notify(SubmitLoading)

	defer func() {
		cancel.Release()
		s.reset(gen, true)
	}()

	body, err := s.prepare(cancel.Context(), req)
	if err != nil {
		s.logger.Error("prepare request", zap.Error(err))
		s.store.AddNewErrorMessage(SourceService, s.handler.failureText(err))
		return nil
	}
	return s.handler.Exchange(ctx, cancel, body, &submitNotifier{s: s, gen: gen})
}

// Stop aborts the exchange in flight and returns the stop listener's
// verdict. An acknowledged stop returns the control to idle at once;
// otherwise it stays stopping until the exchange settles.
func (s *Submitter) Stop(ctx context.Context) bool {
	s.mu.Lock()
	if s.state != SubmitLoading && s.state != SubmitStreaming {
		s.mu.Unlock()
		return false
	}
	cancel, gen := s.cancel, s.gen
	s.setLocked(SubmitStopping)
	s.mu.Unlock()
	s.notify(SubmitStopping)

	ack := cancel.Abort(ctx)
	if ack {
		s.reset(gen, true)
	}
	return ack
}

func (s *Submitter) forward(ctx context.Context, req Request) {
	body, err := s.prepare(ctx, req)
	if err == nil {
		err = s.handler.Forward(ctx, body)
	}
	switch {
	case err == nil:
	case errors.Is(err, ErrChannelClosed):
		s.store.AddNewErrorMessage(SourceService, ChannelClosedText)
	default:
		s.logger.Error("forward request", zap.Error(err))
		s.store.AddNewErrorMessage(SourceService, s.handler.failureText(err))
	}
}

// prepare records the user message and builds the request body from the
// limited history.
func (s *Submitter) prepare(ctx context.Context, req Request) (Body, error) {
	msg := Payload{Role: RoleUser, Text: req.Text, SessionID: s.sessionID}
	if len(req.Files) > 0 {
		files, err := s.store.AddMultipleFiles(req.Files)
		if err != nil {
			return Body{}, fmt.Errorf("add files: %w", err)
		}
		msg.Files = files
	}
	s.store.AddNewMessage(msg)

	cfg := s.handler.cfg
	body := Body{
		Messages: LimitMessages(s.store.History(), cfg.MaxMessages, cfg.MaxHistoryChars),
		Files:    req.Files,
		Extra:    cfg.Extra,
	}
	if cfg.RequestInterceptor != nil {
		out, err := cfg.RequestInterceptor(ctx, body)
		if err != nil {
			return Body{}, fmt.Errorf("request interceptor: %w", err)
		}
		body = out
	}
	return body, nil
}

// reset returns the control to idle if gen is still the current exchange.
// Unless force is set, a stopping control is left alone.
func (s *Submitter) reset(gen uint64, force bool) {
	s.mu.Lock()
	if s.gen != gen || s.state == SubmitIdle || (!force && s.state == SubmitStopping) {
		s.mu.Unlock()
		return
	}
	s.setLocked(SubmitIdle)
	s.mu.Unlock()
	s.notify(SubmitIdle)
}

func (s *Submitter) open(gen uint64) {
	s.mu.Lock()
	if s.gen != gen || s.state != SubmitLoading {
		s.mu.Unlock()
		return
	}
	s.setLocked(SubmitStreaming)
	s.mu.Unlock()
	s.notify(SubmitStreaming)
}

func (s *Submitter) setLocked(st SubmitState) {
	s.state = st
}

func (s *Submitter) notify(st SubmitState) {
	for _, fn := range s.observers {
		fn(st)
	}
}

// submitNotifier binds exchange notifications to the exchange that issued
// them, so a superseded exchange cannot move the control.
type submitNotifier struct {
	s   *Submitter
	gen uint64
}

func (n *submitNotifier) OnOpen()   { n.s.open(n.gen) }
func (n *submitNotifier) OnClose()  { n.s.reset(n.gen, false) }
func (n *submitNotifier) OnFinish() { n.s.reset(n.gen, false) }

var _ Notifier = (*submitNotifier)(nil)
