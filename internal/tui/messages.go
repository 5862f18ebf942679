package tui

import (
	"github.com/devmate-dev/devmate/internal/backend"
	"github.com/devmate-dev/devmate/internal/chat"
	"github.com/devmate-dev/devmate/internal/session"
)

// ============================================================================
// Session Messages
// ============================================================================

// LoggedInMsg signals a successful login or a restored session.
type LoggedInMsg struct {
	Session session.Session
	// Restored is set when the session came from storage rather than a
	// fresh login.
	Restored bool
}

// AuthErrorMsg carries a failed login or signup.
type AuthErrorMsg struct {
	Err error
}

// SignedUpMsg carries the advisory text shown after signup.
type SignedUpMsg struct {
	Message string
}

// LoggedOutMsg signals that the session was cleared.
type LoggedOutMsg struct{}

// ============================================================================
// Conversation Messages
// ============================================================================

// SendDoneMsg carries the message list after a send. Err is set when the
// list ends with a synthetic error reply.
type SendDoneMsg struct {
	Messages []backend.Message
	Err      error
}

// HistoryMsg carries a refreshed conversation list.
type HistoryMsg struct {
	Summaries []chat.Summary
	Err       error
}

// DeletedMsg reports the outcome of a confirmed delete.
type DeletedMsg struct {
	ID  string
	Err error
}

// UploadedMsg reports the outcome of an upload.
type UploadedMsg struct {
	Message string
	Err     error
}

// ============================================================================
// Utility Messages
// ============================================================================

// CtrlCResetMsg clears a pending Ctrl+C confirmation.
type CtrlCResetMsg struct{}

// StatusMsg sets the transient status line.
type StatusMsg struct {
	Text  string
	IsErr bool
}
