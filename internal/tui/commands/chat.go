package commands

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/devmate-dev/devmate/internal/chat"
	"github.com/devmate-dev/devmate/internal/tui"
)

// SendCmd posts one message. The result always carries the list to show,
// including a synthetic error reply on failure.
func SendCmd(ctx context.Context, s *chat.Sync, text string) tea.Cmd {
	return func() tea.Msg {
		msgs, err := s.SendMessage(ctx, text)
		return tui.SendDoneMsg{Messages: msgs, Err: err}
	}
}

// RefreshHistoryCmd fetches the conversation list.
func RefreshHistoryCmd(ctx context.Context, s *chat.Sync) tea.Cmd {
	return func() tea.Msg {
		sums, err := s.RefreshHistory(ctx)
		return tui.HistoryMsg{Summaries: sums, Err: err}
	}
}

// CachedHistoryCmd shows the locally stored list while the real one loads.
func CachedHistoryCmd(s *chat.Sync) tea.Cmd {
	return func() tea.Msg {
		sums, err := s.LoadCachedHistory()
		if err != nil || len(sums) == 0 {
			return nil
		}
		return tui.HistoryMsg{Summaries: sums}
	}
}

// DeleteCmd deletes a conversation the user has already confirmed.
func DeleteCmd(ctx context.Context, s *chat.Sync, id string) tea.Cmd {
	return func() tea.Msg {
		confirmed := chat.ConfirmFunc(func(string) bool { return true })
		err := s.DeleteConversation(ctx, id, confirmed)
		return tui.DeletedMsg{ID: id, Err: err}
	}
}

// UploadCmd uploads a local file.
func UploadCmd(ctx context.Context, s *chat.Sync, path string) tea.Cmd {
	return func() tea.Msg {
		msg, err := s.Upload(ctx, path)
		return tui.UploadedMsg{Message: msg, Err: err}
	}
}
