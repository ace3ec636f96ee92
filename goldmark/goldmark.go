// Package goldmark renders chat messages for a terminal. Message text is
// parsed as GitHub-flavored markdown with goldmark and styled with lipgloss.
package goldmark

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/relay"
)

const defaultWidth = 80

// Render parses markdown source and returns ANSI-styled terminal output.
// Prose is wrapped to width; code blocks keep their lines as written.
func Render(source string, width int, theme relay.Theme) string {
	if strings.TrimSpace(source) == "" {
		return ""
	}
	if width <= 0 {
		width = defaultWidth
	}
	return newRenderer(theme, width).render([]byte(source))
}

// RenderMessage renders a committed or streaming message body: its text as
// markdown, its html reduced to plain text, then one line per file. All
// message content is sanitized first.
func RenderMessage(m relay.Message, width int, theme relay.Theme) string {
	if width <= 0 {
		width = defaultWidth
	}
	if m.Error {
		style := lipgloss.NewStyle().Foreground(ansiColor(theme.Error)).Width(width)
		return style.Render(Sanitize(m.Text))
	}
	var sections []string
	if s := Render(Sanitize(m.Text), width, theme); s != "" {
		sections = append(sections, s)
	}
	if s := Render(StripTags(Sanitize(m.HTML)), width, theme); s != "" {
		sections = append(sections, s)
	}
	if len(m.Files) > 0 {
		muted := lipgloss.NewStyle().Foreground(ansiColor(theme.Muted))
		lines := make([]string, 0, len(m.Files))
		for _, f := range m.Files {
			lines = append(lines, muted.Render("[file] "+Sanitize(fileLabel(f))))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}
	return strings.Join(sections, "\n\n")
}

func fileLabel(f relay.File) string {
	name := f.Name
	if name == "" {
		name = f.URL
	}
	if name == "" {
		name = "attachment"
	}
	if f.Type != "" {
		name += " (" + f.Type + ")"
	}
	return name
}

var (
	breakTag = regexp.MustCompile(`(?i)<br\s*/?>|</p>|</div>|</li>`)
	anyTag   = regexp.MustCompile(`<[^>]*>`)
	entities = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'", "&nbsp;", " ")
)

// StripTags reduces an html fragment to its text. Line-ending elements
// become newlines.
func StripTags(html string) string {
	if html == "" {
		return ""
	}
	s := breakTag.ReplaceAllString(html, "\n")
	s = anyTag.ReplaceAllString(s, "")
	return strings.TrimSpace(entities.Replace(s))
}
