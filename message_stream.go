package relay

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MessageStream is an open, uncommitted message. It accumulates deltas for
// one role, renders them through the store as they arrive, and is finalized
// exactly once. No mutation is accepted after finalization.
type MessageStream struct {
	id     string
	role   Role
	store  MessageStore
	logger *zap.Logger

	mu        sync.Mutex
	text      strings.Builder
	html      strings.Builder
	files     []File
	rendered  bool
	finalized bool
}

// NewMessageStream opens a stream for role. A nil logger discards logs.
func NewMessageStream(store MessageStore, role Role, logger *zap.Logger) *MessageStream {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageStream{
		id:     uuid.NewString(),
		role:   role.OrDefault(),
		store:  store,
		logger: logger,
	}
}

// ID returns the identifier the store knows the stream by.
func (s *MessageStream) ID() string { return s.id }

// Role returns the role that owns the stream.
func (s *MessageStream) Role() Role { return s.role }

// Finalized reports whether Finalize or Discard has run.
func (s *MessageStream) Finalized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalized
}

// Content returns the accumulated content.
func (s *MessageStream) Content() Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contentLocked()
}

func (s *MessageStream) contentLocked() Payload {
	return Payload{
		Text:  s.text.String(),
		HTML:  s.html.String(),
		Files: append([]File(nil), s.files...),
		Role:  s.role,
	}
}

// Upsert appends the delta's text, html and files, then renders the
// accumulated content. An Overwrite delta replaces the accumulated text.
// Files are appended in order without de-duplication.
func (s *MessageStream) Upsert(delta Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return ErrStreamFinalized
	}
	if delta.Overwrite {
		s.text.Reset()
	}
	s.text.WriteString(delta.Text)
	s.html.WriteString(delta.HTML)
	s.files = append(s.files, delta.Files...)
	s.rendered = true
	if err := s.store.UpdateStreamedMessage(s.id, s.contentLocked()); err != nil {
		return fmt.Errorf("render stream %s: %w", s.id, err)
	}
	return nil
}

// Finalize commits the accumulated content. Only the first call has any
// effect, and a stream that never received content commits nothing. A
// commit failure is logged and surfaced as an error message.
func (s *MessageStream) Finalize() {
	s.mu.Lock()
	if s.finalized {
		s.mu.Unlock()
		return
	}
	s.finalized = true
	rendered, content := s.rendered, s.contentLocked()
	s.mu.Unlock()

	if !rendered {
		return
	}
	if err := s.store.FinalizeStreamedMessage(s.id, content); err != nil {
		s.logger.Error("finalize streamed message", zap.String("stream", s.id), zap.Error(err))
		s.store.AddNewErrorMessage(SourceService, err.Error())
	}
}

// Discard finalizes the stream without committing it, removing whatever
// was rendered so far.
func (s *MessageStream) Discard() {
	s.mu.Lock()
	if s.finalized {
		s.mu.Unlock()
		return
	}
	s.finalized = true
	rendered := s.rendered
	s.mu.Unlock()

	if rendered {
		s.store.DiscardStreamedMessage(s.id)
	}
}
