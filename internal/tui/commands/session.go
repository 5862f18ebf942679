// Package commands provides Bubble Tea commands for TUI operations.
package commands

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/devmate-dev/devmate/internal/backend"
	"github.com/devmate-dev/devmate/internal/session"
	"github.com/devmate-dev/devmate/internal/tui"
)

// RestoreCmd rehydrates a persisted session. It yields LoggedInMsg, or nil
// when there is nothing to restore.
func RestoreCmd(s *session.Store) tea.Cmd {
	return func() tea.Msg {
		sess, ok := s.Restore()
		if !ok {
			return nil
		}
		return tui.LoggedInMsg{Session: sess, Restored: true}
	}
}

// LoginCmd submits credentials in the background.
func LoginCmd(ctx context.Context, s *session.Store, creds backend.Credentials) tea.Cmd {
	return func() tea.Msg {
		sess, err := s.Login(ctx, creds)
		if err != nil {
			return tui.AuthErrorMsg{Err: err}
		}
		return tui.LoggedInMsg{Session: sess}
	}
}

// SignupCmd creates an account in the background.
func SignupCmd(ctx context.Context, s *session.Store, account backend.NewAccount) tea.Cmd {
	return func() tea.Msg {
		msg, err := s.Signup(ctx, account)
		if err != nil {
			return tui.AuthErrorMsg{Err: err}
		}
		return tui.SignedUpMsg{Message: msg}
	}
}

// LogoutCmd clears the session.
func LogoutCmd(s *session.Store) tea.Cmd {
	return func() tea.Msg {
		s.Logout()
		return tui.LoggedOutMsg{}
	}
}
