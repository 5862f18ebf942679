package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/devmate-dev/devmate/internal/tui"
)

// ConfirmDeleteMsg reports the answer to a delete confirmation.
type ConfirmDeleteMsg struct {
	ID        string
	Confirmed bool
}

// ConfirmModel asks a yes/no question about deleting one conversation.
type ConfirmModel struct {
	id      string
	preview string
}

// NewConfirmModel creates a confirmation for id.
func NewConfirmModel(id, preview string) ConfirmModel {
	return ConfirmModel{id: id, preview: preview}
}

// Update answers on y, n or esc. Other keys are ignored.
func (m ConfirmModel) Update(msg tea.Msg) (ConfirmModel, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	id := m.id
	switch {
	case key.Matches(keyMsg, tui.DefaultKeyMap.Confirm):
		return m, func() tea.Msg { return ConfirmDeleteMsg{ID: id, Confirmed: true} }
	case key.Matches(keyMsg, tui.DefaultKeyMap.Decline):
		return m, func() tea.Msg { return ConfirmDeleteMsg{ID: id} }
	}
	return m, nil
}

// View renders the question.
func (m ConfirmModel) View() string {
	q := fmt.Sprintf("Delete this conversation? %q", m.preview)
	return tui.WarningStyle.Render(q) + tui.DimStyle.Render("  [y/N]")
}

// SubmitUploadMsg carries the file path to upload.
type SubmitUploadMsg struct {
	Path string
}

// CancelUploadMsg closes the upload prompt.
type CancelUploadMsg struct{}

// UploadModel asks for a file path.
type UploadModel struct {
	input textinput.Model
}

// NewUploadModel creates the upload prompt.
func NewUploadModel(width int) UploadModel {
	ti := textinput.New()
	ti.Placeholder = "path to a file (pdf, txt, docx, ...)"
	ti.Prompt = "Upload: "
	ti.Width = inputWidth(width)
	ti.Focus()
	return UploadModel{input: ti}
}

// Update submits on enter and cancels on esc.
func (m UploadModel) Update(msg tea.Msg) (UploadModel, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case tui.KeyEnter:
			path := strings.TrimSpace(m.input.Value())
			if path == "" {
				return m, nil
			}
			return m, func() tea.Msg { return SubmitUploadMsg{Path: path} }
		case tui.KeyEsc:
			return m, func() tea.Msg { return CancelUploadMsg{} }
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the prompt.
func (m UploadModel) View() string {
	return m.input.View()
}
