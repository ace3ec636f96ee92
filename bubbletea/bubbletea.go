// Package bubbletea provides a Bubble Tea TUI for a relay conversation.
package bubbletea

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/relay"
)

// Conversation is the part of a relay.Submitter the TUI drives.
type Conversation interface {
	Submit(ctx context.Context, req relay.Request) error
	Stop(ctx context.Context) bool
	State() relay.SubmitState
}

// Interface compliance check.
var _ Conversation = (*relay.Submitter)(nil)

// Run creates and runs the Bubble Tea TUI program. It blocks until the
// program exits. Cancelling ctx quits the program.
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		p.Quit()
	}()
	_, err := p.Run()
	return err
}

// Changes coalesces change notifications from the message store and the
// submitter into at most one pending refresh.
type Changes chan struct{}

// NewChanges returns a ready Changes.
func NewChanges() Changes { return make(Changes, 1) }

// Notify records a change without blocking.
func (c Changes) Notify() {
	select {
	case c <- struct{}{}:
	default:
	}
}

// RefreshMsg asks the model to re-read messages and state.
type RefreshMsg struct{}

// SubmitDoneMsg reports that a submission returned.
type SubmitDoneMsg struct {
	Err error
}

// StopDoneMsg reports the outcome of a stop request.
type StopDoneMsg struct {
	Acknowledged bool
}
