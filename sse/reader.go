package sse

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// maxEventSize bounds a single data line.
const maxEventSize = 1 << 20

// Event is one server-sent event.
type Event struct {
	Name string // the "event" field; empty for unnamed events
	Data string // data lines joined by newlines
}

// Reader assembles server-sent events from a response body.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	return &Reader{scanner: s}
}

// Next reads lines until a complete event is assembled. It returns io.EOF
// when the body ends; a trailing event without a blank line is still
// delivered.
func (r *Reader) Next() (Event, error) {
	var (
		name string
		data strings.Builder
		seen bool
	)
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if line == "" {
			if seen {
				return Event{Name: name, Data: data.String()}, nil
			}
			name = ""
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			name = value
		case "data":
			if seen {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			seen = true
		}
		// Comments (empty field) and unknown fields are ignored.
	}
	if err := r.scanner.Err(); err != nil {
		return Event{}, fmt.Errorf("read event: %w", err)
	}
	if seen {
		return Event{Name: name, Data: data.String()}, nil
	}
	return Event{}, io.EOF
}
