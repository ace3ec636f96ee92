package relay

import "encoding/json"

// Attachment is a file the user attached to a request.
type Attachment struct {
	Name string
	Type string // MIME type
	Data []byte
}

// Request is the outbound user submission. It is not modified after dispatch.
type Request struct {
	Text  string
	Files []Attachment
}

// Body is what a sender transmits for one exchange: the conversation
// history, any attachments, and extra static fields from configuration.
type Body struct {
	Messages []Payload
	Files    []Attachment
	Extra    map[string]any
}

// MarshalJSON encodes the body as {"messages": [...], ...Extra}. Files are
// not part of the JSON form; senders transmit them as multipart fields.
func (b Body) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(b.Extra)+1)
	for k, v := range b.Extra {
		m[k] = v
	}
	msgs := b.Messages
	if msgs == nil {
		msgs = []Payload{}
	}
	m["messages"] = msgs
	return json.Marshal(m)
}
