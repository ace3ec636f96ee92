package goldmark_test

import (
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/goldmark"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

var ansiSeq = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

func stripANSI(s string) string { return ansiSeq.ReplaceAllString(s, "") }

func TestMain(m *testing.M) {
	// Styled output must carry escape codes so the tests can tell it apart.
	lipgloss.SetColorProfile(termenv.ANSI)
	os.Exit(m.Run())
}

func TestRender(t *testing.T) {
	t.Parallel()

	theme := relay.DefaultTheme()

	t.Run("blank input renders nothing", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "", goldmark.Render("", 80, theme))
		assert.Equal(t, "", goldmark.Render(" \n", 80, theme))
	})

	t.Run("plain paragraph", func(t *testing.T) {
		t.Parallel()
		assert.Contains(t, stripANSI(goldmark.Render("hello world", 80, theme)), "hello world")
	})

	t.Run("heading is styled", func(t *testing.T) {
		t.Parallel()
		heading := goldmark.Render("# Title", 80, theme)
		paragraph := goldmark.Render("Title", 80, theme)
		assert.Contains(t, stripANSI(heading), "Title")
		assert.NotEqual(t, heading, paragraph)
	})

	t.Run("emphasis and code keep their text", func(t *testing.T) {
		t.Parallel()
		got := stripANSI(goldmark.Render("**bold** *italic* `code` ~~gone~~", 80, theme))
		assert.Contains(t, got, "bold")
		assert.Contains(t, got, "italic")
		assert.Contains(t, got, "code")
		assert.Contains(t, got, "gone")
		assert.NotContains(t, got, "~~")
	})

	t.Run("fenced code is not reflowed", func(t *testing.T) {
		t.Parallel()
		got := stripANSI(goldmark.Render("```go\nfmt.Println(\"hello world\")\n```", 20, theme))
		assert.Contains(t, got, "go\n")
		assert.Contains(t, got, `fmt.Println("hello world")`)
	})

	t.Run("indented code block", func(t *testing.T) {
		t.Parallel()
		got := stripANSI(goldmark.Render("paragraph\n\n    indented code\n    more code", 80, theme))
		assert.Contains(t, got, "indented code")
		assert.Contains(t, got, "more code")
	})

	t.Run("lists keep markers", func(t *testing.T) {
		t.Parallel()
		got := stripANSI(goldmark.Render("3. first\n4. second", 80, theme))
		assert.Contains(t, got, "3. first")
		assert.Contains(t, got, "4. second")
		got = stripANSI(goldmark.Render("- outer\n  - inner", 80, theme))
		assert.Contains(t, got, "- outer")
		assert.Contains(t, got, "  - inner")
	})

	t.Run("list continuation lines are indented", func(t *testing.T) {
		t.Parallel()
		src := "- this is a very long list item that should wrap onto indented continuation lines"
		lines := strings.Split(stripANSI(goldmark.Render(src, 30, theme)), "\n")
		assert.True(t, strings.HasPrefix(lines[0], "- "))
		for _, line := range lines[1:] {
			if strings.TrimSpace(line) != "" {
				assert.True(t, strings.HasPrefix(line, "  "), "continuation line: %q", line)
			}
		}
	})

	t.Run("task list", func(t *testing.T) {
		t.Parallel()
		got := stripANSI(goldmark.Render("- [x] done\n- [ ] todo", 80, theme))
		assert.Contains(t, got, "[x] done")
		assert.Contains(t, got, "[ ] todo")
	})

	t.Run("links show destination", func(t *testing.T) {
		t.Parallel()
		got := stripANSI(goldmark.Render("[click](https://example.com)", 80, theme))
		assert.Contains(t, got, "click")
		assert.Contains(t, got, "(https://example.com)")
	})

	t.Run("image shows alt and destination", func(t *testing.T) {
		t.Parallel()
		got := stripANSI(goldmark.Render("![alt text](https://example.com/img.png)", 80, theme))
		assert.Contains(t, got, "alt text")
		assert.Contains(t, got, "example.com/img.png")
	})

	t.Run("blockquote gets a gutter", func(t *testing.T) {
		t.Parallel()
		got := stripANSI(goldmark.Render("> quoted", 80, theme))
		assert.True(t, strings.HasPrefix(got, "▌ quoted"), got)
	})

	t.Run("table aligns columns", func(t *testing.T) {
		t.Parallel()
		got := stripANSI(goldmark.Render("| a | bb |\n|---|---|\n| ccc | d |", 80, theme))
		lines := strings.Split(got, "\n")
		assert.Len(t, lines, 3)
		assert.Contains(t, lines[0], "a   │ bb")
		assert.Contains(t, lines[2], "ccc │ d")
	})

	t.Run("paragraph wraps to width", func(t *testing.T) {
		t.Parallel()
		long := "word1 word2 word3 word4 word5 word6 word7 word8 word9 word10 word11 word12"
		got := goldmark.Render(long, 30, theme)
		assert.Greater(t, len(strings.Split(got, "\n")), 1)
		assert.Contains(t, stripANSI(got), "word12")
	})

	t.Run("width zero defaults", func(t *testing.T) {
		t.Parallel()
		assert.Contains(t, stripANSI(goldmark.Render("hello world", 0, theme)), "hello world")
	})
}

func TestRenderMessage(t *testing.T) {
	t.Parallel()

	theme := relay.DefaultTheme()

	t.Run("text html and files", func(t *testing.T) {
		t.Parallel()
		got := stripANSI(goldmark.RenderMessage(relay.Message{
			Text:  "hello",
			HTML:  "<p>from <b>html</b></p>",
			Files: []relay.File{{Name: "a.png", Type: "image/png"}, {URL: "https://x/y"}},
		}, 80, theme))
		assert.Contains(t, got, "hello")
		assert.Contains(t, got, "from html")
		assert.Contains(t, got, "[file] a.png (image/png)")
		assert.Contains(t, got, "[file] https://x/y")
		assert.Less(t, strings.Index(got, "hello"), strings.Index(got, "from html"))
	})

	t.Run("error messages are not parsed", func(t *testing.T) {
		t.Parallel()
		got := goldmark.RenderMessage(relay.Message{Text: "**Service error**", Error: true}, 80, theme)
		assert.Contains(t, stripANSI(got), "**Service error**")
	})
}

func TestStripTags(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "", goldmark.StripTags(""))
	assert.Equal(t, "a\nb & c", goldmark.StripTags("<div>a<br/>b &amp; c</div>"))
}

func TestSanitize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text unchanged", "hello\tworld\n", "hello\tworld\n"},
		{"color codes stripped", "\x1b[31mred\x1b[0m", "red"},
		{"osc title stripped", "\x1b]0;pwned\x07text", "text"},
		{"crlf normalized", "a\r\nb", "a\nb"},
		{"lone cr dropped", "abc\rd", "abcd"},
		{"bell and backspace dropped", "a\x07b\x08c", "abc"},
		{"unicode kept", "héllo ▍", "héllo ▍"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, goldmark.Sanitize(tt.in))
		})
	}
}

func TestRenderMessage_Sanitizes(t *testing.T) {
	t.Parallel()
	out := goldmark.RenderMessage(relay.Message{Text: "safe\x1b[2Jtext"}, 80, relay.DefaultTheme())
	assert.NotContains(t, out, "\x1b[2J")
	assert.Contains(t, stripANSI(out), "safetext")
}
