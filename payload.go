package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// File is a file entry carried by a payload or a committed message.
// A valid entry references its content through URL or inlines it in Data.
type File struct {
	URL  string `json:"url,omitempty"`
	Data string `json:"data,omitempty"`
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`
}

// PayloadError is an error declared by the server inside a payload. On the
// wire it is either a JSON string or a structured JSON value.
type PayloadError struct {
	text string
	raw  json.RawMessage // set for structured errors
}

// NewPayloadError returns a string-form PayloadError.
func NewPayloadError(text string) *PayloadError {
	return &PayloadError{text: text}
}

// NewStructuredPayloadError returns a structured PayloadError from raw JSON.
func NewStructuredPayloadError(raw json.RawMessage) *PayloadError {
	e := &PayloadError{raw: append(json.RawMessage(nil), raw...)}
	var detail struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &detail) == nil {
		e.text = detail.Message
	}
	return e
}

// Structured reports whether the error arrived as a JSON object rather than a string.
func (e *PayloadError) Structured() bool { return e.raw != nil }

// Message returns displayable error text. Structured errors yield their
// "message" field when present and their raw JSON otherwise.
func (e *PayloadError) Message() string {
	if e.text == "" && e.raw != nil {
		return string(e.raw)
	}
	return e.text
}

// Error implements the error interface.
func (e *PayloadError) Error() string { return e.Message() }

// MarshalJSON encodes the error in the form it was received.
func (e *PayloadError) MarshalJSON() ([]byte, error) {
	if e.raw != nil {
		return e.raw, nil
	}
	return json.Marshal(e.text)
}

// UnmarshalJSON accepts a JSON string or any structured JSON value.
func (e *PayloadError) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = PayloadError{text: s}
		return nil
	}
	*e = *NewStructuredPayloadError(data)
	return nil
}

// Payload is a single response delivered by a transport. A payload carrying
// Error is an error payload regardless of any content it also carries.
type Payload struct {
	Text      string        `json:"text,omitempty"`
	HTML      string        `json:"html,omitempty"`
	Files     []File        `json:"files,omitempty"`
	Error     *PayloadError `json:"error,omitempty"`
	Role      Role          `json:"role,omitempty"`
	Overwrite bool          `json:"overwrite,omitempty"`
	SessionID string        `json:"_sessionId,omitempty"`

	// present records keys seen on decode so that empty strings still
	// count as content.
	present fieldSet
}

type fieldSet uint8

const (
	fieldText fieldSet = 1 << iota
	fieldHTML
	fieldFiles
)

// UnmarshalJSON decodes a payload and records which content keys were present.
func (p *Payload) UnmarshalJSON(data []byte) error {
	type plain Payload
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	*p = Payload(v)
	p.present = 0
	if isJSONKind(keys["text"], '"') {
		p.present |= fieldText
	}
	if isJSONKind(keys["html"], '"') {
		p.present |= fieldHTML
	}
	if isJSONKind(keys["files"], '[') {
		p.present |= fieldFiles
	}
	return nil
}

func isJSONKind(raw json.RawMessage, first byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == first
}

// HasText reports whether the payload carries text, including an explicitly empty string.
func (p Payload) HasText() bool { return p.Text != "" || p.present&fieldText != 0 }

// HasHTML reports whether the payload carries html, including an explicitly empty string.
func (p Payload) HasHTML() bool { return p.HTML != "" || p.present&fieldHTML != 0 }

// HasFiles reports whether the payload carries a files list, including an empty one.
func (p Payload) HasFiles() bool { return len(p.Files) > 0 || p.present&fieldFiles != 0 }

// HasContent reports whether the payload carries text, html or files.
func (p Payload) HasContent() bool { return p.HasText() || p.HasHTML() || p.HasFiles() }

// DecodePayload parses a wire payload. Decoding failures wrap ErrMalformedPayload.
func DecodePayload(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("decode payload: %v: %w", err, ErrMalformedPayload)
	}
	return p, nil
}
