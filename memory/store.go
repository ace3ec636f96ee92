// Package memory implements relay.MessageStore over an in-memory session.
package memory

import (
	"encoding/base64"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/fwojciec/relay"
	"github.com/google/uuid"
)

var _ relay.MessageStore = (*Store)(nil)

// Store is a thread-safe message list backed by a relay.Session.
type Store struct {
	mu       sync.Mutex
	session  relay.Session
	now      func() time.Time
	onChange []func()
}

// Option configures a Store.
type Option func(*Store)

// WithSession seeds the store with an existing session.
func WithSession(s relay.Session) Option {
	return func(st *Store) {
		st.session = s
		st.session.Messages = slices.Clone(s.Messages)
	}
}

// WithClock sets the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(st *Store) {
		st.now = now
	}
}

// WithOnChange registers fn to be called after every mutation, without the
// store's lock held.
func WithOnChange(fn func()) Option {
	return func(st *Store) {
		st.onChange = append(st.onChange, fn)
	}
}

// New returns an empty store with a fresh session.
func New(opts ...Option) *Store {
	s := &Store{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.session.ID == "" {
		s.session.ID = uuid.NewString()
	}
	if s.session.CreatedAt.IsZero() {
		s.session.CreatedAt = s.now()
		s.session.UpdatedAt = s.session.CreatedAt
	}
	return s
}

// Session returns a snapshot of the session.
func (s *Store) Session() relay.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.session
	out.Messages = slices.Clone(s.session.Messages)
	return out
}

// Messages returns a snapshot of the message list.
func (s *Store) Messages() []relay.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.session.Messages)
}

// AddNewMessage commits a standalone message.
func (s *Store) AddNewMessage(p relay.Payload) {
	s.mutate(func(now time.Time) {
		s.session.Messages = append(s.session.Messages, messageFrom(uuid.NewString(), p, now))
	})
}

// AddNewErrorMessage commits an error message.
func (s *Store) AddNewErrorMessage(source relay.ErrorSource, text string) {
	s.mutate(func(now time.Time) {
		s.session.Messages = append(s.session.Messages, relay.Message{
			ID:        uuid.NewString(),
			Role:      relay.DefaultRole,
			Text:      text,
			Error:     true,
			Source:    source,
			CreatedAt: now,
		})
	})
}

// RemoveError removes the newest message if it is an error.
func (s *Store) RemoveError() {
	s.mu.Lock()
	n := len(s.session.Messages)
	if n == 0 || !s.session.Messages[n-1].Error {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.mutate(func(time.Time) {
		if n := len(s.session.Messages); n > 0 && s.session.Messages[n-1].Error {
			s.session.Messages = s.session.Messages[:n-1]
		}
	})
}

// IsLastMessageError reports whether the newest message is an error.
func (s *Store) IsLastMessageError() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.session.Messages)
	return n > 0 && s.session.Messages[n-1].Error
}

// AddMultipleFiles converts attachments into data URL file entries.
func (s *Store) AddMultipleFiles(files []relay.Attachment) ([]relay.File, error) {
	out := make([]relay.File, 0, len(files))
	for i, f := range files {
		if len(f.Data) == 0 {
			return nil, fmt.Errorf("memory: file %d (%q) is empty", i, f.Name)
		}
		typ := f.Type
		if typ == "" {
			typ = "application/octet-stream"
		}
		out = append(out, relay.File{
			Name: f.Name,
			Type: typ,
			Data: "data:" + typ + ";base64," + base64.StdEncoding.EncodeToString(f.Data),
		})
	}
	return out, nil
}

// UpdateStreamedMessage renders an open stream, creating its entry on the
// first update.
func (s *Store) UpdateStreamedMessage(id string, p relay.Payload) error {
	s.mutate(func(now time.Time) {
		if i := s.indexLocked(id); i >= 0 {
			m := messageFrom(id, p, s.session.Messages[i].CreatedAt)
			m.Streaming = true
			s.session.Messages[i] = m
			return
		}
		m := messageFrom(id, p, now)
		m.Streaming = true
		s.session.Messages = append(s.session.Messages, m)
	})
	return nil
}

// FinalizeStreamedMessage commits the settled content of a stream.
func (s *Store) FinalizeStreamedMessage(id string, p relay.Payload) error {
	var err error
	s.mutate(func(now time.Time) {
		i := s.indexLocked(id)
		if i < 0 {
			err = fmt.Errorf("memory: unknown stream %q", id)
			return
		}
		if !s.session.Messages[i].Streaming {
			err = fmt.Errorf("memory: stream %q already committed", id)
			return
		}
		s.session.Messages[i] = messageFrom(id, p, s.session.Messages[i].CreatedAt)
	})
	return err
}

// DiscardStreamedMessage removes an uncommitted stream.
func (s *Store) DiscardStreamedMessage(id string) {
	s.mutate(func(time.Time) {
		if i := s.indexLocked(id); i >= 0 && s.session.Messages[i].Streaming {
			s.session.Messages = slices.Delete(s.session.Messages, i, i+1)
		}
	})
}

// History returns committed, non-error messages for request bodies.
func (s *Store) History() []relay.Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []relay.Payload
	for _, m := range s.session.Messages {
		if m.Error || m.Streaming {
			continue
		}
		out = append(out, m.Payload())
	}
	return out
}

func (s *Store) mutate(fn func(now time.Time)) {
	s.mu.Lock()
	now := s.now()
	fn(now)
	s.session.UpdatedAt = now
	s.mu.Unlock()
	for _, cb := range s.onChange {
		cb()
	}
}

func (s *Store) indexLocked(id string) int {
	for i := len(s.session.Messages) - 1; i >= 0; i-- {
		if s.session.Messages[i].ID == id {
			return i
		}
	}
	return -1
}

func messageFrom(id string, p relay.Payload, at time.Time) relay.Message {
	return relay.Message{
		ID:        id,
		Role:      p.Role.OrDefault(),
		Text:      p.Text,
		HTML:      p.HTML,
		Files:     slices.Clone(p.Files),
		SessionID: p.SessionID,
		CreatedAt: at,
	}
}
