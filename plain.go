package relay

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// requestExchange tracks one plain request. It accepts a single response;
// OnFinish fires exactly once.
type requestExchange struct {
	h      *Handler
	n      Notifier
	cancel *Cancellation

	mu       sync.Mutex
	active   bool
	finished bool
}

func (h *Handler) request(sender Sender, cancel *Cancellation, body Body, n Notifier) {
	x := &requestExchange{h: h, n: n, cancel: cancel, active: true}
	cancel.OnAbort(x.abort)
	err := sender.Send(cancel.Context(), body, Signals{
		OnOpen:     func() {},
		OnResponse: x.onResponse,
		OnClose:    func() {},
		Cancel:     cancel,
	})
	x.settle(err)
}

func (x *requestExchange) onResponse(ctx context.Context, p Payload) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if !x.active || x.cancel.Aborted() {
		if p.Overwrite {
			x.h.commitLate(ctx, p)
		}
		return
	}
	x.active = false

	p, err := x.h.prepare(ctx, p)
	if err != nil {
		x.h.rejectPayload(err)
		x.finishLocked()
		return
	}
	switch Reduce(p, ReduceContext{Simulate: x.h.cfg.Simulate}) {
	case ActionError:
		x.h.surfaceError(p.Error)
	case ActionSimulate:
		x.h.simulate(ctx, p, x.n)
	default:
		x.h.commit(p)
	}
	x.finishLocked()
}

func (x *requestExchange) abort() {
	x.mu.Lock()
	defer x.mu.Unlock()
	if !x.active {
		return
	}
	x.active = false
	x.finishLocked()
}

// settle runs after the sender returns.
func (x *requestExchange) settle(err error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if !x.active {
		if err != nil && !x.cancel.Aborted() {
			x.h.logger.Debug("sender error after response", zap.Error(err))
		}
		return
	}
	x.active = false
	if x.cancel.Aborted() {
		x.finishLocked()
		return
	}
	if err == nil {
		err = fmt.Errorf("sender returned without a response: %w", ErrMalformedPayload)
	}
	x.h.logger.Error("request failed", zap.Error(err))
	x.h.store.AddNewErrorMessage(SourceService, x.h.failureText(err))
	x.finishLocked()
}

func (x *requestExchange) finishLocked() {
	if x.finished {
		return
	}
	x.finished = true
	x.n.OnFinish()
}
