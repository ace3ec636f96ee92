package relay

import "time"

// Message is a committed entry in the message list.
type Message struct {
	ID        string
	Role      Role
	Text      string
	HTML      string
	Files     []File
	Error     bool        // error messages never enter request history
	Streaming bool        // rendered from an open stream, not yet committed
	Source    ErrorSource // producer of an error message
	SessionID string
	CreatedAt time.Time
}

// Payload returns the message in the form sent back to the server as history.
func (m Message) Payload() Payload {
	return Payload{
		Text:      m.Text,
		HTML:      m.HTML,
		Files:     m.Files,
		Role:      m.Role,
		SessionID: m.SessionID,
	}
}

// Session represents a conversation.
type Session struct {
	ID        string
	Messages  []Message
	CreatedAt time.Time
	UpdatedAt time.Time
}
