package relay

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// exchangeState is the lifecycle state of a server-stream exchange.
type exchangeState int

const (
	exchangeOpening exchangeState = iota
	exchangeOpen
	exchangeClosing
	exchangeClosed
	exchangeAborted
)

func (s exchangeState) String() string {
	switch s {
	case exchangeOpening:
		return "opening"
	case exchangeOpen:
		return "open"
	case exchangeClosing:
		return "closing"
	case exchangeClosed:
		return "closed"
	case exchangeAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// terminal reports whether no further signal is processed in s.
func (s exchangeState) terminal() bool {
	return s == exchangeClosed || s == exchangeAborted
}

// streamExchange tracks one server-stream exchange. Its message stream is
// opened by the first partial payload and released on every exit path.
type streamExchange struct {
	h      *Handler
	n      Notifier
	cancel *Cancellation

	mu     sync.Mutex
	state  exchangeState
	stream *MessageStream
}

func (h *Handler) stream(sender Sender, cancel *Cancellation, body Body, n Notifier) {
	x := &streamExchange{h: h, n: n, cancel: cancel, state: exchangeOpening}
	cancel.OnAbort(x.abort)
	err := sender.Send(cancel.Context(), body, Signals{
		OnOpen:     x.onOpen,
		OnResponse: x.onResponse,
		OnClose:    x.onClose,
		Cancel:     cancel,
	})
	x.settle(err)
}

// accepting reports whether transport signals are still processed. An
// aborted token stops them even before the abort hook has run.
func (x *streamExchange) accepting() bool {
	return !x.state.terminal() && !x.cancel.Aborted()
}

func (x *streamExchange) onOpen() {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.state != exchangeOpening || x.cancel.Aborted() {
		return
	}
	x.state = exchangeOpen
	x.n.OnOpen()
}

func (x *streamExchange) onResponse(ctx context.Context, p Payload) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if !x.accepting() {
		if p.Overwrite {
			x.h.commitLate(ctx, p)
		}
		return
	}

	p, err := x.h.prepare(ctx, p)
	if err != nil {
		x.releaseLocked(PartialKeep)
		x.h.rejectPayload(err)
		x.closeLocked(exchangeClosed)
		return
	}
	if Reduce(p, ReduceContext{StreamOpen: true}) == ActionError {
		x.releaseLocked(x.h.cfg.PartialOnError)
		x.h.surfaceError(p.Error)
		x.closeLocked(exchangeClosed)
		return
	}
	if x.stream == nil {
		x.stream = NewMessageStream(x.h.store, p.Role, x.h.logger)
	}
	if err := x.stream.Upsert(p); err != nil {
		x.h.logger.Warn("upsert streamed message", zap.String("stream", x.stream.ID()), zap.Error(err))
	}
}

func (x *streamExchange) onClose() {
	x.mu.Lock()
	defer x.mu.Unlock()
	if !x.accepting() {
		return
	}
	x.state = exchangeClosing
	x.releaseLocked(PartialKeep)
	x.closeLocked(exchangeClosed)
}

func (x *streamExchange) abort() {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.state.terminal() {
		return
	}
	x.releaseLocked(PartialKeep)
	x.closeLocked(exchangeAborted)
}

// settle runs after the sender returns and closes a still-active exchange.
func (x *streamExchange) settle(err error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.state.terminal() {
		if err != nil {
			x.h.logger.Debug("sender error after close", zap.Error(err))
		}
		return
	}
	x.releaseLocked(PartialKeep)
	if x.cancel.Aborted() {
		x.closeLocked(exchangeAborted)
		return
	}
	if err != nil {
		x.h.logger.Error("stream failed", zap.Error(err), zap.Stringer("state", x.state))
		x.h.store.AddNewErrorMessage(SourceService, x.h.failureText(err))
	}
	x.closeLocked(exchangeClosed)
}

// releaseLocked finalizes or discards the open stream, if any.
func (x *streamExchange) releaseLocked(policy PartialPolicy) {
	if x.stream == nil {
		return
	}
	if policy == PartialDiscard {
		x.stream.Discard()
		return
	}
	x.stream.Finalize()
}

func (x *streamExchange) closeLocked(final exchangeState) {
	x.state = final
	x.n.OnClose()
}
