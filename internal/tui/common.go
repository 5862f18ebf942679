// Package tui implements the terminal user interface using Bubble Tea.
package tui

import (
	"errors"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"
)

// Common key binding constants.
const (
	KeyCtrlC      = "ctrl+c"
	KeyCtrlJ      = "ctrl+j"
	KeyTab        = "tab"
	KeyShiftTab   = "shift+tab"
	KeyEnter      = "enter"
	KeyEsc        = "esc"
	KeyUp         = "up"
	KeyDown       = "down"
	KeyShiftEnter = "shift+enter"
)

// ErrNotTTY is returned by Run when stdout is not a terminal.
var ErrNotTTY = errors.New("the chat UI needs a terminal; use the devmate subcommands instead")

// IsTTY returns true if stdout is connected to a terminal.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Run starts the TUI program with the given model in alternate screen mode.
func Run(m tea.Model) error {
	if !IsTTY() {
		return ErrNotTTY
	}
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
