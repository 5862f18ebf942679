// Package views provides TUI view components for the DevMate application.
package views

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/devmate-dev/devmate/internal/backend"
	"github.com/devmate-dev/devmate/internal/tui"
)

// ============================================================================
// Message Types
// ============================================================================

// SubmitLoginMsg is sent when the user submits the login form.
type SubmitLoginMsg struct {
	Credentials backend.Credentials
}

// SubmitSignupMsg is sent when the user submits the signup form.
type SubmitSignupMsg struct {
	Account backend.NewAccount
}

// ============================================================================
// AuthModel
// ============================================================================

// AuthMode selects between the login and signup forms.
type AuthMode int

const (
	ModeLogin AuthMode = iota
	ModeSignup
)

const (
	fieldUsername = iota
	fieldEmail
	fieldPassword
)

// AuthModel is the view model for the login/signup screen.
type AuthModel struct {
	mode    AuthMode
	inputs  []textinput.Model
	focus   int
	pending bool
	Err     string
	Notice  string
	width   int
	height  int
}

// NewAuthModel creates the auth screen in login mode.
func NewAuthModel(width, height int) AuthModel {
	newInput := func(placeholder string) textinput.Model {
		ti := textinput.New()
		ti.Placeholder = placeholder
		ti.CharLimit = 256
		ti.Width = inputWidth(width)
		return ti
	}

	username := newInput("username")
	email := newInput("email (or username)")
	password := newInput("password")
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	m := AuthModel{
		mode:   ModeLogin,
		inputs: []textinput.Model{username, email, password},
		width:  width,
		height: height,
	}
	m.focusField(fieldEmail)
	return m
}

// Init returns the initial command for the auth view.
func (m AuthModel) Init() tea.Cmd {
	return textinput.Blink
}

// Mode reports which form is showing.
func (m AuthModel) Mode() AuthMode { return m.mode }

// SetPending marks a request in flight; input is ignored until it clears.
func (m *AuthModel) SetPending(pending bool) { m.pending = pending }

// ShowLogin switches to the login form, keeping notice text such as the
// signup confirmation.
func (m *AuthModel) ShowLogin(notice string) {
	m.mode = ModeLogin
	m.Notice = notice
	m.Err = ""
	m.inputs[fieldPassword].SetValue("")
	m.focusField(fieldEmail)
}

// Update handles messages for the auth view.
func (m AuthModel) Update(msg tea.Msg) (AuthModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.pending {
			return m, nil
		}
		switch msg.String() {
		case "ctrl+t":
			if m.mode == ModeLogin {
				m.mode = ModeSignup
				m.focusField(fieldUsername)
			} else {
				m.mode = ModeLogin
				m.focusField(fieldEmail)
			}
			m.Err, m.Notice = "", ""
			return m, nil

		case tui.KeyTab, tui.KeyDown:
			m.focusField(m.nextField(1))
			return m, nil

		case tui.KeyShiftTab, tui.KeyUp:
			m.focusField(m.nextField(-1))
			return m, nil

		case tui.KeyEnter:
			if m.focus != fieldPassword {
				m.focusField(m.nextField(1))
				return m, nil
			}
			return m.submit()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		for i := range m.inputs {
			m.inputs[i].Width = inputWidth(msg.Width)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m AuthModel) submit() (AuthModel, tea.Cmd) {
	username := strings.TrimSpace(m.inputs[fieldUsername].Value())
	identifier := strings.TrimSpace(m.inputs[fieldEmail].Value())
	password := m.inputs[fieldPassword].Value()

	if m.mode == ModeSignup {
		if username == "" || identifier == "" || password == "" {
			m.Err = "Username, email and password are required"
			return m, nil
		}
		m.Err = ""
		account := backend.NewAccount{Username: username, Email: identifier, Password: password}
		return m, func() tea.Msg { return SubmitSignupMsg{Account: account} }
	}

	if identifier == "" || password == "" {
		m.Err = "Email and password are required"
		return m, nil
	}
	m.Err = ""
	creds := backend.Credentials{Password: password}
	if strings.Contains(identifier, "@") {
		creds.Email = identifier
	} else {
		creds.Username = identifier
	}
	return m, func() tea.Msg { return SubmitLoginMsg{Credentials: creds} }
}

// fields returns the inputs shown in the current mode.
func (m AuthModel) fields() []int {
	if m.mode == ModeSignup {
		return []int{fieldUsername, fieldEmail, fieldPassword}
	}
	return []int{fieldEmail, fieldPassword}
}

func (m AuthModel) nextField(step int) int {
	fields := m.fields()
	for i, f := range fields {
		if f == m.focus {
			return fields[(i+step+len(fields))%len(fields)]
		}
	}
	return fields[0]
}

func (m *AuthModel) focusField(field int) {
	m.focus = field
	for i := range m.inputs {
		if i == field {
			m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
}

// View renders the auth view.
func (m AuthModel) View() string {
	var b strings.Builder

	title := "DevMate - Login"
	if m.mode == ModeSignup {
		title = "DevMate - Sign up"
	}
	b.WriteString(tui.TitleStyle.Render(title))
	b.WriteString("\n\n")

	for _, f := range m.fields() {
		b.WriteString(m.inputs[f].View())
		b.WriteString("\n")
	}
	b.WriteString("\n")

	switch {
	case m.pending:
		b.WriteString(tui.DimStyle.Render("Please wait..."))
		b.WriteString("\n\n")
	case m.Err != "":
		b.WriteString(tui.ErrorStyle.Render(m.Err))
		b.WriteString("\n\n")
	case m.Notice != "":
		b.WriteString(tui.SuccessStyle.Render(m.Notice))
		b.WriteString("\n\n")
	}

	switchHint := "Ctrl+T: Create an account"
	if m.mode == ModeSignup {
		switchHint = "Ctrl+T: Back to login"
	}
	b.WriteString(tui.DimStyle.Render("Tab: Next field · Enter: Submit · " + switchHint + " · Ctrl+C: Exit"))

	boxed := tui.BoxStyle.
		Width(min(m.width-4, 72)).
		Render(b.String())

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, boxed)
}

func inputWidth(width int) int {
	w := min(width-10, 60)
	if w < 20 {
		w = 20
	}
	return w
}
