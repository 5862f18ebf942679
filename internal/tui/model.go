package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"

	"github.com/devmate-dev/devmate/internal/config"
	"github.com/devmate-dev/devmate/internal/session"
)

// ViewState represents the current screen of the TUI.
type ViewState int

const (
	StateAuth          ViewState = iota // login / signup form
	StateChat                           // message list and input
	StateHistory                        // conversation list has focus
	StateConfirmDelete                  // waiting for y/n on a delete
	StateUpload                         // asking for a file path
)

// Model holds the state shared by every screen.
type Model struct {
	State ViewState
	Cfg   *config.Config

	Session session.Session

	// Status line
	Status      string
	StatusIsErr bool

	Spinner spinner.Model

	// Terminal dimensions
	Width  int
	Height int

	// Ctrl+C confirmation state
	CtrlCPending bool
}

// NewModel creates a Model on the auth screen.
func NewModel(cfg *config.Config) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(primaryColor))

	return &Model{
		State:   StateAuth,
		Cfg:     cfg,
		Spinner: sp,

		// Default dimensions (will be updated on WindowSizeMsg)
		Width:  80,
		Height: 24,
	}
}

// SetStatus replaces the status line.
func (m *Model) SetStatus(text string, isErr bool) {
	m.Status = text
	m.StatusIsErr = isErr
}
