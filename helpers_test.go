package relay_test

import (
	"sync"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/mock"
)

// recorder captures store mutations in order.
type recorder struct {
	mu        sync.Mutex
	ops       []string
	committed []relay.Payload
	errors    []string
	lastErr   bool
	finalizeE error
}

func newRecorder() (*recorder, *mock.MessageStore) {
	r := &recorder{}
	return r, &mock.MessageStore{
		AddNewMessageFn: func(p relay.Payload) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.ops = append(r.ops, "add:"+p.Text)
			r.committed = append(r.committed, p)
			r.lastErr = false
		},
		AddNewErrorMessageFn: func(source relay.ErrorSource, text string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.ops = append(r.ops, "error:"+text)
			r.errors = append(r.errors, text)
			r.lastErr = true
		},
		RemoveErrorFn: func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.ops = append(r.ops, "remove-error")
			r.lastErr = false
		},
		IsLastMessageErrorFn: func() bool {
			r.mu.Lock()
			defer r.mu.Unlock()
			return r.lastErr
		},
		AddMultipleFilesFn: func(files []relay.Attachment) ([]relay.File, error) {
			out := make([]relay.File, len(files))
			for i, f := range files {
				out[i] = relay.File{Name: f.Name, Type: f.Type, Data: string(f.Data)}
			}
			return out, nil
		},
		UpdateStreamedMessageFn: func(id string, p relay.Payload) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.ops = append(r.ops, "update:"+p.Text)
			return nil
		},
		FinalizeStreamedMessageFn: func(id string, p relay.Payload) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			if r.finalizeE != nil {
				return r.finalizeE
			}
			r.ops = append(r.ops, "finalize:"+p.Text)
			r.committed = append(r.committed, p)
			r.lastErr = false
			return nil
		},
		DiscardStreamedMessageFn: func(id string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.ops = append(r.ops, "discard")
		},
		HistoryFn: func() []relay.Payload {
			r.mu.Lock()
			defer r.mu.Unlock()
			return append([]relay.Payload(nil), r.committed...)
		},
	}
}

func (r *recorder) Ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...)
}

func (r *recorder) Committed() []relay.Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]relay.Payload(nil), r.committed...)
}

func (r *recorder) Errors() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.errors...)
}

// notes counts notifier calls.
type notes struct {
	mu                     sync.Mutex
	open, closed, finished int
	order                  []string
}

func (n *notes) notifier() *mock.Notifier {
	return &mock.Notifier{
		OnOpenFn:   func() { n.add("open", &n.open) },
		OnCloseFn:  func() { n.add("close", &n.closed) },
		OnFinishFn: func() { n.add("finish", &n.finished) },
	}
}

func (n *notes) add(name string, c *int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	*c++
	n.order = append(n.order, name)
}

func (n *notes) counts() (open, closed, finished int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.open, n.closed, n.finished
}

// instant disables the reveal delay.
func instant(cfg relay.Config) relay.Config {
	cfg.SimulationInterval = 0
	return cfg
}
