package bubbletea

import (
	"strings"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/goldmark"
)

const streamCursor = "▍"

// renderMessage renders one message under a role header. Open streams end
// with a cursor.
func renderMessage(msg relay.Message, width int, theme relay.Theme, styles Styles) string {
	var header string
	switch {
	case msg.Error:
		header = styles.Error.Render("Error")
	case msg.Role == relay.RoleUser:
		header = styles.User.Render("You")
	default:
		header = styles.Assistant.Render(roleLabel(msg.Role))
	}
	body := goldmark.RenderMessage(msg, width, theme)
	if msg.Streaming {
		body = strings.TrimRight(body, " \n") + styles.Streaming.Render(streamCursor)
	}
	if body == "" {
		return header
	}
	return header + "\n" + body
}

func roleLabel(r relay.Role) string {
	if r == "" || r == relay.RoleAssistant {
		return "Assistant"
	}
	s := string(r)
	return strings.ToUpper(s[:1]) + s[1:]
}
