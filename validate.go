package relay

import (
	"fmt"
	"strings"
)

// Validate checks that the request carries something to send: non-blank
// text or at least one file.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Text) == "" && len(r.Files) == 0 {
		return fmt.Errorf("request has no text and no files: %w", ErrValidation)
	}
	for i, f := range r.Files {
		if len(f.Data) == 0 {
			return fmt.Errorf("file %d (%q) is empty: %w", i, f.Name, ErrValidation)
		}
	}
	return nil
}

// ValidatePayload checks a server payload against the expected shape before
// it is trusted. A payload must carry an error or at least one of text, html
// and files, and every file entry must reference its content.
func ValidatePayload(p Payload) error {
	if p.Error == nil && !p.HasContent() {
		return fmt.Errorf("payload has no text, html, files or error: %w", ErrMalformedPayload)
	}
	for i, f := range p.Files {
		if f.URL == "" && f.Data == "" {
			return fmt.Errorf("file %d has neither url nor data: %w", i, ErrMalformedPayload)
		}
	}
	return nil
}

// Valid reports whether the payload passes ValidatePayload.
func (p Payload) Valid() bool {
	return ValidatePayload(p) == nil
}
