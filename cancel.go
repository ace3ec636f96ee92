package relay

import (
	"context"
	"sync"
)

// StopFunc is consulted after the user stops an exchange. Returning true
// acknowledges the stop and lets the submit control re-enable input;
// returning false leaves it in the stopping state until the exchange settles.
type StopFunc func(ctx context.Context) bool

// Cancellation is the cancellation token of one submission. The submitter
// triggers it; the handler and the sender observe it. Aborting stops local
// consumption only: nothing is sent to the server.
type Cancellation struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	aborted bool
	hooks   []func()
	stop    StopFunc
}

// NewCancellation returns a token whose context derives from parent.
func NewCancellation(parent context.Context) *Cancellation {
	ctx, cancel := context.WithCancel(parent)
	return &Cancellation{ctx: ctx, cancel: cancel}
}

// Context is done once the token is aborted or released.
func (c *Cancellation) Context() context.Context { return c.ctx }

// Aborted reports whether Abort has been called.
func (c *Cancellation) Aborted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted
}

// OnAbort registers fn to run once on abort. When the token is already
// aborted fn runs immediately.
func (c *Cancellation) OnAbort(fn func()) {
	c.mu.Lock()
	if c.aborted {
		c.mu.Unlock()
		fn()
		return
	}
	c.hooks = append(c.hooks, fn)
	c.mu.Unlock()
}

// OnStop registers the stop listener, replacing any earlier one.
func (c *Cancellation) OnStop(fn StopFunc) {
	c.mu.Lock()
	c.stop = fn
	c.mu.Unlock()
}

// Abort cancels the context, runs the abort hooks, then returns the stop
// listener's verdict. Only the first call has any effect; later calls
// return false.
func (c *Cancellation) Abort(ctx context.Context) bool {
	c.mu.Lock()
	if c.aborted {
		c.mu.Unlock()
		return false
	}
	c.aborted = true
	hooks := c.hooks
	c.hooks = nil
	stop := c.stop
	c.mu.Unlock()

	c.cancel()
	for _, fn := range hooks {
		fn()
	}
	if stop == nil {
		return false
	}
	return stop(ctx)
}

// Release frees the token's context once the exchange has settled. It does
// not run abort hooks.
func (c *Cancellation) Release() {
	c.cancel()
}
