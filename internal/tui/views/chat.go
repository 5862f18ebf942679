package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/devmate-dev/devmate/internal/backend"
	"github.com/devmate-dev/devmate/internal/render"
	"github.com/devmate-dev/devmate/internal/tui"
)

// ============================================================================
// Message Types
// ============================================================================

// SendChatMsg is sent when the user submits a chat message.
type SendChatMsg struct {
	Content string
}

// ============================================================================
// ChatModel
// ============================================================================

// ChatModel is the view model for the conversation pane.
type ChatModel struct {
	messages []backend.Message
	title    string
	textarea textarea.Model
	viewport viewport.Model
	markdown *render.Markdown
	busy     bool
	spinner  spinner.Model
	width    int
	height   int
}

// NewChatModel creates a ChatModel. md may be nil, in which case assistant
// replies are shown as plain text.
func NewChatModel(md *render.Markdown, width, height int) ChatModel {
	ta := textarea.New()
	ta.Placeholder = "Type your message... (Enter to send)"
	ta.CharLimit = 5000
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	// Enter submits; Ctrl+J inserts a newline.
	keyMap := ta.KeyMap
	keyMap.InsertNewline = tui.DefaultKeyMap.NewLine
	ta.KeyMap = keyMap
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = tui.TitleStyle

	m := ChatModel{
		title:    "New conversation",
		textarea: ta,
		viewport: viewport.New(20, 5),
		markdown: md,
		spinner:  sp,
	}
	m.resize(width, height)
	return m
}

// Init returns the initial command for the chat view.
func (m ChatModel) Init() tea.Cmd {
	return textarea.Blink
}

// SetMessages replaces the visible list.
func (m *ChatModel) SetMessages(msgs []backend.Message) {
	m.messages = msgs
	m.refresh()
}

// Messages returns the visible list.
func (m ChatModel) Messages() []backend.Message { return m.messages }

// Title returns the header line.
func (m ChatModel) Title() string { return m.title }

// SetTitle sets the header line.
func (m *ChatModel) SetTitle(title string) { m.title = title }

// SetBusy toggles the in-flight indicator. While busy, Enter does nothing.
func (m *ChatModel) SetBusy(busy bool) tea.Cmd {
	m.busy = busy
	if busy {
		m.textarea.Blur()
		return m.spinner.Tick
	}
	m.textarea.Focus()
	return nil
}

// Busy reports whether a send is in flight.
func (m ChatModel) Busy() bool { return m.busy }

// Focus gives the input keyboard focus.
func (m *ChatModel) Focus() { m.textarea.Focus() }

// Blur removes keyboard focus from the input.
func (m *ChatModel) Blur() { m.textarea.Blur() }

// SetSize resizes the pane.
func (m *ChatModel) SetSize(width, height int) {
	m.resize(width, height)
}

// Update handles messages for the chat view.
func (m ChatModel) Update(msg tea.Msg) (ChatModel, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, tui.DefaultKeyMap.Enter) {
			if m.busy {
				return m, nil
			}
			content := strings.TrimSpace(m.textarea.Value())
			if content == "" {
				return m, nil
			}

			// Shown right away; the server's list replaces it when the
			// reply arrives.
			m.messages = append(m.messages, backend.Message{Role: backend.RoleUser, Content: content})
			m.refresh()
			m.textarea.Reset()
			tick := m.SetBusy(true)

			return m, tea.Batch(tick, func() tea.Msg {
				return SendChatMsg{Content: content}
			})
		}

	case spinner.TickMsg:
		if m.busy {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	if !m.busy {
		m.textarea, cmd = m.textarea.Update(msg)
		cmds = append(cmds, cmd)
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// View renders the chat view.
func (m ChatModel) View() string {
	var b strings.Builder

	b.WriteString(tui.TitleStyle.Render(m.title))
	b.WriteString("\n\n")

	b.WriteString(m.viewport.View())
	b.WriteString("\n\n")

	if m.busy {
		b.WriteString(fmt.Sprintf("%s Thinking...", m.spinner.View()))
		b.WriteString("\n")
		b.WriteString(tui.DimStyle.Render(m.textarea.View()))
	} else {
		b.WriteString("\n")
		b.WriteString(m.textarea.View())
	}

	return lipgloss.NewStyle().Width(m.width).Render(b.String())
}

func (m *ChatModel) resize(width, height int) {
	m.width = width
	m.height = height

	// Header (2 lines), status/spinner (1), textarea (3), gaps (3).
	vpHeight := height - 9
	if vpHeight < 3 {
		vpHeight = 3
	}
	vpWidth := width
	if vpWidth < 20 {
		vpWidth = 20
	}

	m.viewport.Width = vpWidth
	m.viewport.Height = vpHeight
	m.textarea.SetWidth(vpWidth)
	if m.markdown != nil {
		_ = m.markdown.SetWidth(vpWidth - 2)
	}
	m.refresh()
}

func (m *ChatModel) refresh() {
	m.viewport.SetContent(m.formatMessages())
	m.viewport.GotoBottom()
}

// formatMessages formats the message list for the viewport.
func (m ChatModel) formatMessages() string {
	if len(m.messages) == 0 {
		return tui.DimStyle.Render("No messages yet. Ask DevMate anything!")
	}

	var b strings.Builder
	for i, msg := range m.messages {
		body, att := render.Message(msg.Role, msg.Content)

		switch msg.Role {
		case backend.RoleUser:
			b.WriteString(tui.UserLabelStyle.Render("You: "))
			b.WriteString(body)
		case backend.RoleAssistant:
			b.WriteString(tui.AssistantLabelStyle.Render("DevMate:"))
			b.WriteString("\n")
			if m.markdown != nil {
				body = m.markdown.Render(body)
			}
			if strings.HasPrefix(msg.Content, "Error") {
				body = tui.ErrorStyle.Render(body)
			}
			b.WriteString(body)
		default:
			b.WriteString(tui.DimStyle.Render(msg.Role + ": "))
			b.WriteString(body)
		}

		if att != nil {
			b.WriteString("\n")
			b.WriteString(tui.WarningStyle.Render(fmt.Sprintf("Download %s: %s", att.Filename, att.URL)))
		}

		if i < len(m.messages)-1 {
			b.WriteString("\n\n")
		}
	}
	return b.String()
}
