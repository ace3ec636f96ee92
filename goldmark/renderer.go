package goldmark

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/relay"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

const minWrap = 10

// gfm parses GitHub-flavored markdown. Parsers are safe for concurrent use.
var gfm parser.Parser = goldmark.New(goldmark.WithExtensions(extension.GFM)).Parser()

type renderer struct {
	width int

	strong lipgloss.Style
	em     lipgloss.Style
	strike lipgloss.Style
	code   lipgloss.Style
	head   lipgloss.Style
	link   lipgloss.Style
	muted  lipgloss.Style
}

func newRenderer(theme relay.Theme, width int) *renderer {
	return &renderer{
		width:  width,
		strong: lipgloss.NewStyle().Bold(true),
		em:     lipgloss.NewStyle().Italic(true),
		strike: lipgloss.NewStyle().Strikethrough(true),
		code:   lipgloss.NewStyle().Background(ansiColor(theme.CodeBg)).Bold(true),
		head:   lipgloss.NewStyle().Foreground(ansiColor(theme.Accent)).Bold(true),
		link:   lipgloss.NewStyle().Foreground(ansiColor(theme.Accent)).Underline(true),
		muted:  lipgloss.NewStyle().Foreground(ansiColor(theme.Muted)).Faint(true),
	}
}

func ansiColor(index int) lipgloss.TerminalColor {
	if index < 0 {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(strconv.Itoa(index))
}

func (r *renderer) render(src []byte) string {
	doc := gfm.Parse(text.NewReader(src))
	return strings.Join(r.blocks(doc, src, r.width), "\n\n")
}

// blocks renders each block child of n and returns them in order, one
// string per block.
func (r *renderer) blocks(n ast.Node, src []byte, width int) []string {
	var out []string
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if s := r.block(c, src, width); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (r *renderer) block(n ast.Node, src []byte, width int) string {
	switch n := n.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		return wrap(r.inline(n, src), width)
	case *ast.Heading:
		return wrap(r.head.Render(r.inline(n, src)), width)
	case *ast.FencedCodeBlock:
		body := r.codeLines(n, src)
		if lang := string(n.Language(src)); lang != "" {
			return r.muted.Render(lang) + "\n" + body
		}
		return body
	case *ast.CodeBlock:
		return r.codeLines(n, src)
	case *ast.Blockquote:
		gutter := r.muted.Render("▌") + " "
		inner := strings.Join(r.blocks(n, src, max(width-2, minWrap)), "\n\n")
		return prefixLines(inner, gutter, gutter)
	case *ast.List:
		return r.list(n, src, width)
	case *ast.ThematicBreak:
		return r.muted.Render(strings.Repeat("─", min(width, 40)))
	case *ast.HTMLBlock:
		var b strings.Builder
		for i := 0; i < n.Lines().Len(); i++ {
			seg := n.Lines().At(i)
			b.Write(seg.Value(src))
		}
		return wrap(StripTags(b.String()), width)
	case *east.Table:
		return r.table(n, src)
	default:
		return strings.Join(r.blocks(n, src, width), "\n\n")
	}
}

func (r *renderer) codeLines(n ast.Node, src []byte) string {
	gutter := r.muted.Render("│") + " "
	lines := make([]string, 0, n.Lines().Len())
	for i := 0; i < n.Lines().Len(); i++ {
		seg := n.Lines().At(i)
		lines = append(lines, gutter+strings.TrimRight(string(seg.Value(src)), "\n"))
	}
	return strings.Join(lines, "\n")
}

func (r *renderer) list(n *ast.List, src []byte, width int) string {
	var items []string
	num := n.Start
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		marker := "- "
		if n.IsOrdered() {
			marker = strconv.Itoa(num) + ". "
			num++
		}
		indent := strings.Repeat(" ", len(marker))
		body := strings.Join(r.blocks(c, src, max(width-len(marker), minWrap)), "\n")
		items = append(items, prefixLines(body, marker, indent))
	}
	return strings.Join(items, "\n")
}

func (r *renderer) table(n *east.Table, src []byte) string {
	var rows [][]string
	widths := map[int]int{}
	for row := n.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			s := r.inline(cell, src)
			widths[len(cells)] = max(widths[len(cells)], lipgloss.Width(s))
			cells = append(cells, s)
		}
		rows = append(rows, cells)
	}
	lines := make([]string, 0, len(rows)+1)
	sep := r.muted.Render(" │ ")
	for i, cells := range rows {
		padded := make([]string, len(cells))
		for j, c := range cells {
			padded[j] = c + strings.Repeat(" ", widths[j]-lipgloss.Width(c))
		}
		line := strings.TrimRight(strings.Join(padded, sep), " ")
		if i == 0 {
			line = r.strong.Render(line)
		}
		lines = append(lines, line)
		if i == 0 {
			var rule []string
			for j := range cells {
				rule = append(rule, strings.Repeat("─", widths[j]))
			}
			lines = append(lines, r.muted.Render(strings.Join(rule, "─┼─")))
		}
	}
	return strings.Join(lines, "\n")
}

func (r *renderer) inline(n ast.Node, src []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		r.span(c, src, &b)
	}
	return b.String()
}

func (r *renderer) span(n ast.Node, src []byte, b *strings.Builder) {
	switch n := n.(type) {
	case *ast.Text:
		b.Write(n.Segment.Value(src))
		switch {
		case n.HardLineBreak():
			b.WriteByte('\n')
		case n.SoftLineBreak():
			b.WriteByte(' ')
		}
	case *ast.String:
		b.Write(n.Value)
	case *ast.Emphasis:
		if n.Level == 1 {
			b.WriteString(r.em.Render(r.inline(n, src)))
		} else {
			b.WriteString(r.strong.Render(r.inline(n, src)))
		}
	case *east.Strikethrough:
		b.WriteString(r.strike.Render(r.inline(n, src)))
	case *east.TaskCheckBox:
		if n.IsChecked {
			b.WriteString("[x] ")
		} else {
			b.WriteString("[ ] ")
		}
	case *ast.CodeSpan:
		b.WriteString(r.code.Render(r.inline(n, src)))
	case *ast.Link:
		label := r.inline(n, src)
		dest := string(n.Destination)
		b.WriteString(r.link.Render(label))
		if label != dest {
			b.WriteString(" " + r.muted.Render("("+dest+")"))
		}
	case *ast.AutoLink:
		b.WriteString(r.link.Render(string(n.URL(src))))
	case *ast.Image:
		b.WriteString(r.muted.Render("[image] "))
		b.WriteString(r.link.Render(r.inline(n, src)))
		b.WriteString(" " + r.muted.Render("("+string(n.Destination)+")"))
	case *ast.RawHTML:
		if isBreak(n, src) {
			b.WriteByte('\n')
		}
	default:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			r.span(c, src, b)
		}
	}
}

func isBreak(n *ast.RawHTML, src []byte) bool {
	var raw strings.Builder
	for i := 0; i < n.Segments.Len(); i++ {
		seg := n.Segments.At(i)
		raw.Write(seg.Value(src))
	}
	return strings.HasPrefix(strings.ToLower(raw.String()), "<br")
}

func wrap(s string, width int) string {
	return lipgloss.NewStyle().Width(width).Render(s)
}

// prefixLines prefixes the first line of s with first and the rest with rest.
func prefixLines(s, first, rest string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if i == 0 {
			lines[i] = first + l
		} else {
			lines[i] = rest + l
		}
	}
	return strings.Join(lines, "\n")
}
