package json

import (
	"fmt"
	"time"

	"github.com/fwojciec/relay"
)

// messageDTO is the JSON representation of a Message. Type discriminates
// conversation messages from error notices.
type messageDTO struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	Role      string    `json:"role,omitempty"`
	Text      string    `json:"text,omitempty"`
	HTML      string    `json:"html,omitempty"`
	Files     []fileDTO `json:"files,omitempty"`
	Source    string    `json:"source,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type fileDTO struct {
	URL      string `json:"url,omitempty"`
	Data     string `json:"data,omitempty"`
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

const (
	typeMessage = "message"
	typeError   = "error"
)

func marshalMessage(m relay.Message) (messageDTO, error) {
	if m.ID == "" {
		return messageDTO{}, fmt.Errorf("message has no id")
	}
	dto := messageDTO{
		Type:      typeMessage,
		ID:        m.ID,
		Role:      string(m.Role),
		Text:      m.Text,
		HTML:      m.HTML,
		SessionID: m.SessionID,
		Timestamp: m.CreatedAt,
	}
	if m.Error {
		dto.Type = typeError
		dto.Source = string(m.Source)
	}
	for _, f := range m.Files {
		dto.Files = append(dto.Files, fileDTO{URL: f.URL, Data: f.Data, Name: f.Name, MimeType: f.Type})
	}
	return dto, nil
}

func unmarshalMessage(dto messageDTO) (relay.Message, error) {
	m := relay.Message{
		ID:        dto.ID,
		Role:      relay.Role(dto.Role),
		Text:      dto.Text,
		HTML:      dto.HTML,
		SessionID: dto.SessionID,
		CreatedAt: dto.Timestamp,
	}
	switch dto.Type {
	case typeMessage:
	case typeError:
		m.Error = true
		m.Source = relay.ErrorSource(dto.Source)
	default:
		return relay.Message{}, fmt.Errorf("unknown message type: %q", dto.Type)
	}
	for _, f := range dto.Files {
		m.Files = append(m.Files, relay.File{URL: f.URL, Data: f.Data, Name: f.Name, Type: f.MimeType})
	}
	return m, nil
}
