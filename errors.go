package relay

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// Sentinel errors for common failure modes.
var (
	// ErrValidation indicates a request failed validation.
	ErrValidation = errors.New("validation error")

	// ErrMalformedPayload indicates a server payload failed validation or decoding.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrStreamFinalized indicates a mutation of an already finalized message stream.
	ErrStreamFinalized = errors.New("message stream finalized")

	// ErrChannelClosed indicates user input was forwarded to a duplex channel that is not open.
	ErrChannelClosed = errors.New("channel closed")

	// ErrBusy indicates a submission was attempted while another exchange is in flight.
	ErrBusy = errors.New("exchange in progress")

	// ErrWrongTransport indicates an operation not supported by the configured transport.
	ErrWrongTransport = errors.New("operation not supported by transport")
)

// Messages surfaced to the message list.
const (
	// GenericErrorText is shown for malformed payloads and hidden service errors.
	GenericErrorText = "Error in server message"
	// ServiceErrorText is shown for server-declared errors when detail display is disabled.
	ServiceErrorText = "Service error, please try again."
	// ChannelClosedText is shown when input is submitted to a closed duplex channel.
	ChannelClosedText = "Connection is not open"
)

// StatusError is a non-success HTTP response from a service.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Message)
}

// ReadStatusError reads a failed response body into a StatusError. The
// message is the error text of a JSON payload body when there is one, and
// the trimmed body otherwise.
func ReadStatusError(code int, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("HTTP %d (failed to read body: %w)", code, err)
	}
	if p, err := DecodePayload(data); err == nil && p.Error != nil {
		return &StatusError{Code: code, Message: p.Error.Message()}
	}
	return &StatusError{Code: code, Message: string(bytes.TrimSpace(data))}
}
