package views

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/devmate-dev/devmate/internal/chat"
	"github.com/devmate-dev/devmate/internal/tui"
)

// ============================================================================
// Message Types
// ============================================================================

// OpenConversationMsg asks to show a saved conversation.
type OpenConversationMsg struct {
	ID string
}

// RequestDeleteMsg asks to delete a conversation, pending confirmation.
type RequestDeleteMsg struct {
	ID      string
	Preview string
}

// RefreshHistoryMsg asks for the conversation list to be fetched again.
type RefreshHistoryMsg struct{}

// CloseHistoryMsg returns focus to the chat pane.
type CloseHistoryMsg struct{}

// ============================================================================
// HistoryModel
// ============================================================================

type conversationItem struct {
	summary chat.Summary
	active  bool
}

func (i conversationItem) Title() string {
	if i.active {
		return "● " + i.summary.UserPreview
	}
	return i.summary.UserPreview
}

func (i conversationItem) Description() string {
	when := ""
	if !i.summary.LastActivity.IsZero() {
		when = i.summary.LastActivity.Local().Format("Jan 2 15:04") + " · "
	}
	return fmt.Sprintf("%s%d msgs · %s", when, i.summary.TotalMessages, i.summary.AssistantPreview)
}

func (i conversationItem) FilterValue() string { return i.summary.UserPreview }

// HistoryModel is the conversation sidebar.
type HistoryModel struct {
	list     list.Model
	activeID string
	focused  bool
}

// NewHistoryModel creates an empty sidebar.
func NewHistoryModel(width, height int) HistoryModel {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), width, height)
	l.Title = "Conversations"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.Styles.Title = tui.TitleStyle
	return HistoryModel{list: l}
}

// SetSummaries replaces the listed conversations, keeping their order.
func (m *HistoryModel) SetSummaries(sums []chat.Summary) {
	items := make([]list.Item, len(sums))
	for i, s := range sums {
		items[i] = conversationItem{summary: s, active: s.ID == m.activeID}
	}
	m.list.SetItems(items)
}

// SetActive marks the conversation in view.
func (m *HistoryModel) SetActive(id string) {
	m.activeID = id
	items := m.list.Items()
	for i, it := range items {
		ci := it.(conversationItem)
		ci.active = ci.summary.ID == id
		items[i] = ci
	}
	m.list.SetItems(items)
}

// Len returns the number of listed conversations.
func (m HistoryModel) Len() int { return len(m.list.Items()) }

// Selected returns the highlighted conversation.
func (m HistoryModel) Selected() (chat.Summary, bool) {
	it, ok := m.list.SelectedItem().(conversationItem)
	if !ok {
		return chat.Summary{}, false
	}
	return it.summary, true
}

// SetFocused toggles keyboard focus.
func (m *HistoryModel) SetFocused(focused bool) { m.focused = focused }

// SetSize resizes the sidebar.
func (m *HistoryModel) SetSize(width, height int) { m.list.SetSize(width, height) }

// Update handles keys while the sidebar has focus.
func (m HistoryModel) Update(msg tea.Msg) (HistoryModel, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && m.focused {
		switch {
		case key.Matches(keyMsg, tui.DefaultKeyMap.Enter):
			if s, ok := m.Selected(); ok {
				return m, func() tea.Msg { return OpenConversationMsg{ID: s.ID} }
			}
			return m, nil
		case key.Matches(keyMsg, tui.DefaultKeyMap.Delete):
			if s, ok := m.Selected(); ok {
				return m, func() tea.Msg { return RequestDeleteMsg{ID: s.ID, Preview: s.UserPreview} }
			}
			return m, nil
		case key.Matches(keyMsg, tui.DefaultKeyMap.Refresh):
			return m, func() tea.Msg { return RefreshHistoryMsg{} }
		case key.Matches(keyMsg, tui.DefaultKeyMap.Escape):
			return m, func() tea.Msg { return CloseHistoryMsg{} }
		}
	}
	if !m.focused {
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the sidebar.
func (m HistoryModel) View() string {
	if len(m.list.Items()) == 0 {
		return tui.TitleStyle.Render("Conversations") + "\n\n" + tui.DimStyle.Render("No conversations yet.")
	}
	return m.list.View()
}
