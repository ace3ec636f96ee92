// Package mock provides test doubles for relay interfaces using function fields.
package mock

import (
	"context"

	"github.com/fwojciec/relay"
)

// Interface compliance checks.
var (
	_ relay.MessageStore = (*MessageStore)(nil)
	_ relay.Notifier     = (*Notifier)(nil)
	_ relay.Sender       = (*Sender)(nil)
	_ relay.Connector    = (*Connector)(nil)
)

// MessageStore is a test double for relay.MessageStore.
// Set the function fields for the methods you need.
type MessageStore struct {
	AddNewMessageFn           func(content relay.Payload)
	AddNewErrorMessageFn      func(source relay.ErrorSource, text string)
	RemoveErrorFn             func()
	IsLastMessageErrorFn      func() bool
	AddMultipleFilesFn        func(files []relay.Attachment) ([]relay.File, error)
	UpdateStreamedMessageFn   func(id string, content relay.Payload) error
	FinalizeStreamedMessageFn func(id string, content relay.Payload) error
	DiscardStreamedMessageFn  func(id string)
	HistoryFn                 func() []relay.Payload
}

// AddNewMessage delegates to AddNewMessageFn.
func (s *MessageStore) AddNewMessage(content relay.Payload) {
	s.AddNewMessageFn(content)
}

// AddNewErrorMessage delegates to AddNewErrorMessageFn.
func (s *MessageStore) AddNewErrorMessage(source relay.ErrorSource, text string) {
	s.AddNewErrorMessageFn(source, text)
}

// RemoveError delegates to RemoveErrorFn.
func (s *MessageStore) RemoveError() {
	s.RemoveErrorFn()
}

// IsLastMessageError delegates to IsLastMessageErrorFn.
func (s *MessageStore) IsLastMessageError() bool {
	return s.IsLastMessageErrorFn()
}

// AddMultipleFiles delegates to AddMultipleFilesFn.
func (s *MessageStore) AddMultipleFiles(files []relay.Attachment) ([]relay.File, error) {
	return s.AddMultipleFilesFn(files)
}

// UpdateStreamedMessage delegates to UpdateStreamedMessageFn.
func (s *MessageStore) UpdateStreamedMessage(id string, content relay.Payload) error {
	return s.UpdateStreamedMessageFn(id, content)
}

// FinalizeStreamedMessage delegates to FinalizeStreamedMessageFn.
func (s *MessageStore) FinalizeStreamedMessage(id string, content relay.Payload) error {
	return s.FinalizeStreamedMessageFn(id, content)
}

// DiscardStreamedMessage delegates to DiscardStreamedMessageFn.
func (s *MessageStore) DiscardStreamedMessage(id string) {
	s.DiscardStreamedMessageFn(id)
}

// History delegates to HistoryFn.
func (s *MessageStore) History() []relay.Payload {
	return s.HistoryFn()
}

// Notifier is a test double for relay.Notifier.
type Notifier struct {
	OnOpenFn   func()
	OnCloseFn  func()
	OnFinishFn func()
}

// OnOpen delegates to OnOpenFn.
func (n *Notifier) OnOpen() { n.OnOpenFn() }

// OnClose delegates to OnCloseFn.
func (n *Notifier) OnClose() { n.OnCloseFn() }

// OnFinish delegates to OnFinishFn.
func (n *Notifier) OnFinish() { n.OnFinishFn() }

// Sender is a test double for relay.Sender.
// Set SendFn before calling Send.
type Sender struct {
	SendFn func(ctx context.Context, body relay.Body, sig relay.Signals) error
}

// Send delegates to SendFn.
func (s *Sender) Send(ctx context.Context, body relay.Body, sig relay.Signals) error {
	return s.SendFn(ctx, body, sig)
}

// Connector is a test double for relay.Connector.
// Set ConnectFn before calling Connect.
type Connector struct {
	ConnectFn func(ctx context.Context, sig relay.DuplexSignals) error
}

// Connect delegates to ConnectFn.
func (c *Connector) Connect(ctx context.Context, sig relay.DuplexSignals) error {
	return c.ConnectFn(ctx, sig)
}
