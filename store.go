package relay

// ErrorSource names the producer of an error message.
type ErrorSource string

// SourceService marks errors originating from the service or its transport.
const SourceService ErrorSource = "service"

// MessageStore is the message list the core mutates. It is implemented by
// the UI layer; the core never renders anything itself.
type MessageStore interface {
	// AddNewMessage commits a standalone message.
	AddNewMessage(content Payload)
	// AddNewErrorMessage commits an error message.
	AddNewErrorMessage(source ErrorSource, text string)
	// RemoveError removes a trailing error message, if any.
	RemoveError()
	// IsLastMessageError reports whether the newest message is an error.
	IsLastMessageError() bool
	// AddMultipleFiles converts user attachments into file entries for display.
	AddMultipleFiles(files []Attachment) ([]File, error)

	// UpdateStreamedMessage renders the accumulated content of an open stream.
	UpdateStreamedMessage(id string, content Payload) error
	// FinalizeStreamedMessage commits the settled content of a stream.
	FinalizeStreamedMessage(id string, content Payload) error
	// DiscardStreamedMessage removes a partially rendered stream without committing it.
	DiscardStreamedMessage(id string)

	// History returns committed, non-error messages in order, for request bodies.
	History() []Payload
}
