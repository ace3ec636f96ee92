package goldmark

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// Sanitize removes terminal escape sequences and control characters from
// server-supplied text so it cannot move the cursor or restyle the screen.
// Tabs and newlines survive; CRLF becomes LF and a lone CR is dropped.
func Sanitize(s string) string {
	s = ansi.Strip(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t', r == '\n':
			return r
		case r < 0x20, r == 0x7f:
			return -1
		case r >= 0x80 && r < 0xa0: // C1 controls
			return -1
		}
		return r
	}, s)
}
