package bubbletea

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/relay"
	"github.com/mattn/go-runewidth"
)

var _ tea.Model = Model{}

// Model is the Bubble Tea model for the relay TUI.
type Model struct {
	// Input is the text input component. Exported for test access.
	Input textinput.Model
	// Viewport is the scrollable output area. Exported for test access.
	Viewport viewport.Model

	conv     Conversation
	messages func() []relay.Message
	changes  Changes
	theme    relay.Theme
	styles   Styles

	pending bool // a Submit call has not returned yet
	state   relay.SubmitState
	err     error
	ready   bool
}

// New creates a TUI Model. messages returns the current message list and
// changes fires whenever it or the submission state may have changed.
func New(conv Conversation, messages func() []relay.Message, changes Changes, theme relay.Theme) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.Prompt = "> "
	ti.Focus()
	ti.CharLimit = 0

	return Model{
		Input:    ti,
		conv:     conv,
		messages: messages,
		changes:  changes,
		theme:    theme,
		styles:   NewStyles(theme),
	}
}

// Running reports whether a submission is in flight.
func (m Model) Running() bool { return m.pending || m.state != relay.SubmitIdle }

// Err returns the last submission error, if any.
func (m Model) Err() error { return m.err }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForChange(m.changes))
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleWindowSize(msg), nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case RefreshMsg:
		m = m.refresh()
		return m, waitForChange(m.changes)

	case SubmitDoneMsg:
		m.pending = false
		if msg.Err != nil && !errors.Is(msg.Err, context.Canceled) {
			m.err = msg.Err
		}
		m = m.refresh()
		return m, m.Input.Focus()

	case StopDoneMsg:
		return m.refresh(), nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	cmds = append(cmds, cmd)
	if !m.Running() {
		m.Input, cmd = m.Input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	var b strings.Builder
	b.WriteString(m.Viewport.View())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(m.Input.View())
	return b.String()
}

func (m Model) handleWindowSize(msg tea.WindowSizeMsg) Model {
	const chrome = 4 // status line, input line and the two newlines between sections
	vpHeight := max(msg.Height-chrome, 1)

	if !m.ready {
		m.Viewport = viewport.New(msg.Width, vpHeight)
		m.ready = true
	} else {
		m.Viewport.Width = msg.Width
		m.Viewport.Height = vpHeight
	}
	m.Input.Width = max(msg.Width-runewidth.StringWidth(m.Input.Prompt)-1, 1)
	return m.refresh()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.Running() {
			if m.state == relay.SubmitStopping {
				return m, nil
			}
			return m, stop(m.conv)
		}
		return m, tea.Quit

	case tea.KeyEnter:
		if m.Running() {
			return m, nil
		}
		text := strings.TrimSpace(m.Input.Value())
		if text == "" {
			return m, nil
		}
		m.Input.SetValue("")
		m.Input.Blur()
		m.err = nil
		m.pending = true
		return m, submit(m.conv, relay.Request{Text: text})
	}

	if m.Running() {
		var cmd tea.Cmd
		m.Viewport, cmd = m.Viewport.Update(msg)
		return m, cmd
	}

	// Character keys go only to the input so that viewport bindings such as
	// 'j' and 'k' stay typeable.
	var cmds []tea.Cmd
	var cmd tea.Cmd
	if msg.Type != tea.KeyRunes && msg.Type != tea.KeySpace {
		m.Viewport, cmd = m.Viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	m.Input, cmd = m.Input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// refresh re-reads the submission state and re-renders the message list.
func (m Model) refresh() Model {
	if m.conv != nil {
		m.state = m.conv.State()
	}
	if !m.ready {
		return m
	}
	atBottom := m.Viewport.AtBottom()
	m.Viewport.SetContent(m.renderContent())
	if atBottom || m.Running() {
		m.Viewport.GotoBottom()
	}
	return m
}

func (m Model) renderContent() string {
	if m.messages == nil {
		return ""
	}
	msgs := m.messages()
	parts := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		parts = append(parts, renderMessage(msg, m.Viewport.Width, m.theme, m.styles))
	}
	return strings.Join(parts, "\n\n")
}

func (m Model) statusLine() string {
	var line string
	style := m.styles.Muted
	switch {
	case m.err != nil:
		line = "Error: " + m.err.Error()
		style = m.styles.Error
	case m.state == relay.SubmitStopping:
		line = "Stopping..."
	case m.state == relay.SubmitStreaming:
		line = "Receiving... Ctrl+C to stop"
		style = m.styles.Streaming
	case m.Running():
		line = "Waiting for response... Ctrl+C to stop"
	default:
		line = "Enter to send, Ctrl+C to quit"
	}
	if w := m.Viewport.Width; w > 0 {
		line = runewidth.Truncate(line, w, "…")
	}
	return style.Render(line)
}

func submit(conv Conversation, req relay.Request) tea.Cmd {
	return func() tea.Msg {
		return SubmitDoneMsg{Err: conv.Submit(context.Background(), req)}
	}
}

func stop(conv Conversation) tea.Cmd {
	return func() tea.Msg {
		return StopDoneMsg{Acknowledged: conv.Stop(context.Background())}
	}
}

// waitForChange blocks until the next change notification.
func waitForChange(c Changes) tea.Cmd {
	if c == nil {
		return nil
	}
	return func() tea.Msg {
		<-c
		return RefreshMsg{}
	}
}
