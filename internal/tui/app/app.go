// Package app provides the main TUI application that wires all views together.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/devmate-dev/devmate/internal/chat"
	"github.com/devmate-dev/devmate/internal/config"
	"github.com/devmate-dev/devmate/internal/render"
	"github.com/devmate-dev/devmate/internal/session"
	"github.com/devmate-dev/devmate/internal/tui"
	"github.com/devmate-dev/devmate/internal/tui/commands"
	"github.com/devmate-dev/devmate/internal/tui/views"
)

const (
	maxSidebarWidth = 36
	statusHeight    = 2
)

// Deps are the stores the TUI drives.
type Deps struct {
	Session *session.Store
	Chat    *chat.Sync
	Config  *config.Config
	Logger  *zap.Logger

	// MarkdownStyle is a glamour style name; empty means "auto".
	MarkdownStyle string
}

// App is the main TUI application that wires all views together.
type App struct {
	model  *tui.Model
	deps   Deps
	ctx    context.Context
	cancel context.CancelFunc

	// View models
	authView    views.AuthModel
	chatView    views.ChatModel
	historyView views.HistoryModel
	confirmView views.ConfirmModel
	uploadView  views.UploadModel
}

// New creates a new App on the auth screen.
func New(deps Deps) *App {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.MarkdownStyle == "" {
		deps.MarkdownStyle = "auto"
	}

	model := tui.NewModel(deps.Config)
	md, err := render.NewMarkdown(deps.MarkdownStyle, model.Width)
	if err != nil {
		deps.Logger.Warn("markdown renderer unavailable", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		model:       model,
		deps:        deps,
		ctx:         ctx,
		cancel:      cancel,
		authView:    views.NewAuthModel(model.Width, model.Height),
		chatView:    views.NewChatModel(md, model.Width, model.Height),
		historyView: views.NewHistoryModel(maxSidebarWidth, model.Height),
	}
	a.layout()
	return a
}

// Init tries to restore a saved session.
func (a *App) Init() tea.Cmd {
	return tea.Batch(commands.RestoreCmd(a.deps.Session), a.authView.Init())
}

// Update handles messages and updates the application state.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.model.Width = msg.Width
		a.model.Height = msg.Height
		a.layout()
		var cmd tea.Cmd
		a.authView, cmd = a.authView.Update(msg)
		return a, cmd

	case tea.KeyMsg:
		if msg.String() == tui.KeyCtrlC {
			if a.model.CtrlCPending {
				a.cancel()
				return a, tea.Quit
			}
			a.model.CtrlCPending = true
			return a, tea.Tick(time.Second, func(time.Time) tea.Msg {
				return tui.CtrlCResetMsg{}
			})
		}

	case tui.CtrlCResetMsg:
		a.model.CtrlCPending = false
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.chatView, cmd = a.chatView.Update(msg)
		return a, cmd

	// Session results
	case tui.LoggedInMsg:
		return a.handleLoggedIn(msg)
	case tui.AuthErrorMsg:
		a.authView.SetPending(false)
		a.authView.Err = msg.Err.Error()
		return a, nil
	case tui.SignedUpMsg:
		a.authView.SetPending(false)
		a.authView.ShowLogin(msg.Message)
		return a, nil
	case tui.LoggedOutMsg:
		return a.handleLoggedOut()

	// Conversation results
	case tui.SendDoneMsg:
		return a.handleSendDone(msg)
	case tui.HistoryMsg:
		if msg.Err != nil {
			a.deps.Logger.Warn("refreshing history", zap.Error(msg.Err))
			a.model.SetStatus("Could not load conversations: "+msg.Err.Error(), true)
			return a, nil
		}
		a.historyView.SetSummaries(msg.Summaries)
		return a, nil
	case tui.DeletedMsg:
		return a.handleDeleted(msg)
	case tui.UploadedMsg:
		if msg.Err != nil {
			a.model.SetStatus(msg.Err.Error(), true)
		} else {
			a.model.SetStatus(msg.Message, false)
		}
		return a, nil

	// View requests
	case views.SubmitLoginMsg:
		a.authView.SetPending(true)
		return a, commands.LoginCmd(a.ctx, a.deps.Session, msg.Credentials)
	case views.SubmitSignupMsg:
		a.authView.SetPending(true)
		return a, commands.SignupCmd(a.ctx, a.deps.Session, msg.Account)
	case views.SendChatMsg:
		a.model.SetStatus("", false)
		return a, commands.SendCmd(a.ctx, a.deps.Chat, msg.Content)
	case views.OpenConversationMsg:
		return a.openConversation(msg.ID)
	case views.RequestDeleteMsg:
		if a.chatView.Busy() {
			a.model.SetStatus(chat.ErrBusy.Error(), true)
			return a, nil
		}
		a.confirmView = views.NewConfirmModel(msg.ID, msg.Preview)
		a.model.State = tui.StateConfirmDelete
		return a, nil
	case views.ConfirmDeleteMsg:
		a.model.State = tui.StateHistory
		if !msg.Confirmed {
			a.model.SetStatus("Delete cancelled", false)
			return a, nil
		}
		return a, commands.DeleteCmd(a.ctx, a.deps.Chat, msg.ID)
	case views.RefreshHistoryMsg:
		return a, commands.RefreshHistoryCmd(a.ctx, a.deps.Chat)
	case views.CloseHistoryMsg:
		a.focusChat()
		return a, nil
	case views.SubmitUploadMsg:
		a.focusChat()
		a.model.SetStatus("Uploading "+msg.Path+"...", false)
		return a, commands.UploadCmd(a.ctx, a.deps.Chat, msg.Path)
	case views.CancelUploadMsg:
		a.focusChat()
		return a, nil
	}

	// Route input based on current state
	switch a.model.State {
	case tui.StateAuth:
		var cmd tea.Cmd
		a.authView, cmd = a.authView.Update(msg)
		return a, cmd

	case tui.StateChat:
		return a.updateChat(msg)

	case tui.StateHistory:
		var cmd tea.Cmd
		a.historyView, cmd = a.historyView.Update(msg)
		return a, cmd

	case tui.StateConfirmDelete:
		var cmd tea.Cmd
		a.confirmView, cmd = a.confirmView.Update(msg)
		return a, cmd

	case tui.StateUpload:
		var cmd tea.Cmd
		a.uploadView, cmd = a.uploadView.Update(msg)
		return a, cmd
	}

	return a, nil
}

func (a *App) updateChat(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		km := tui.DefaultKeyMap
		switch {
		case key.Matches(keyMsg, km.History):
			a.chatView.Blur()
			a.historyView.SetFocused(true)
			a.model.State = tui.StateHistory
			return a, nil

		case key.Matches(keyMsg, km.New):
			if a.chatView.Busy() {
				return a, nil
			}
			a.deps.Chat.StartNew()
			a.syncChatView()
			a.model.SetStatus("Started a new conversation", false)
			return a, nil

		case key.Matches(keyMsg, km.Upload):
			a.chatView.Blur()
			a.uploadView = views.NewUploadModel(a.model.Width)
			a.model.State = tui.StateUpload
			return a, nil

		case key.Matches(keyMsg, km.Logout):
			if a.chatView.Busy() {
				return a, nil
			}
			return a, commands.LogoutCmd(a.deps.Session)
		}
	}

	var cmd tea.Cmd
	a.chatView, cmd = a.chatView.Update(msg)
	return a, cmd
}

func (a *App) handleLoggedIn(msg tui.LoggedInMsg) (tea.Model, tea.Cmd) {
	a.model.Session = msg.Session
	a.authView.SetPending(false)
	// A fresh login may be a different account than the one the cache
	// was filled for.
	if msg.Restored {
		a.deps.Chat.StartNew()
	} else if err := a.deps.Chat.Forget(); err != nil {
		a.deps.Logger.Warn("clearing conversation cache", zap.Error(err))
	}
	a.historyView.SetSummaries(nil)
	a.syncChatView()
	a.focusChat()
	a.model.SetStatus("", false)
	return a, tea.Batch(
		tea.Sequence(
			commands.CachedHistoryCmd(a.deps.Chat),
			commands.RefreshHistoryCmd(a.ctx, a.deps.Chat),
		),
		a.chatView.Init(),
	)
}

func (a *App) handleLoggedOut() (tea.Model, tea.Cmd) {
	a.model.Session = session.Session{}
	if err := a.deps.Chat.Forget(); err != nil {
		a.deps.Logger.Warn("clearing conversation cache", zap.Error(err))
	}
	a.syncChatView()
	a.historyView.SetSummaries(nil)
	a.authView = views.NewAuthModel(a.model.Width, a.model.Height)
	a.model.State = tui.StateAuth
	a.model.SetStatus("", false)
	return a, a.authView.Init()
}

func (a *App) handleSendDone(msg tui.SendDoneMsg) (tea.Model, tea.Cmd) {
	a.chatView.SetBusy(false)
	if errors.Is(msg.Err, chat.ErrBusy) || errors.Is(msg.Err, chat.ErrEmptyMessage) {
		a.syncChatView()
		a.model.SetStatus(msg.Err.Error(), true)
		return a, nil
	}
	if errors.Is(msg.Err, session.ErrNotAuthenticated) {
		return a.handleLoggedOut()
	}

	a.syncChatView()
	a.historyView.SetSummaries(a.deps.Chat.Summaries())
	if msg.Err != nil {
		a.deps.Logger.Info("send failed", zap.Error(msg.Err))
	}
	return a, nil
}

func (a *App) handleDeleted(msg tui.DeletedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		a.model.SetStatus(msg.Err.Error(), true)
		return a, nil
	}
	a.syncChatView()
	a.historyView.SetSummaries(a.deps.Chat.Summaries())
	a.model.SetStatus("Conversation deleted", false)
	return a, nil
}

func (a *App) openConversation(id string) (tea.Model, tea.Cmd) {
	if a.chatView.Busy() {
		a.model.SetStatus(chat.ErrBusy.Error(), true)
		return a, nil
	}
	if _, err := a.deps.Chat.LoadConversation(id); err != nil {
		a.model.SetStatus(err.Error(), true)
		return a, nil
	}
	a.syncChatView()
	a.focusChat()
	return a, nil
}

// syncChatView copies the Sync's list and state into the chat pane.
func (a *App) syncChatView() {
	a.chatView.SetMessages(a.deps.Chat.Messages())
	id, ok := chat.ConversationID(a.deps.Chat.State())
	if ok {
		a.chatView.SetTitle("Conversation " + id)
	} else {
		a.chatView.SetTitle("New conversation")
	}
	a.historyView.SetActive(id)
}

func (a *App) focusChat() {
	a.historyView.SetFocused(false)
	a.chatView.Focus()
	a.model.State = tui.StateChat
}

func (a *App) sidebarWidth() int {
	return min(maxSidebarWidth, a.model.Width/3)
}

func (a *App) layout() {
	height := a.model.Height - statusHeight
	sw := a.sidebarWidth()
	a.historyView.SetSize(sw, height)
	a.chatView.SetSize(a.model.Width-sw-3, height)
}

// View renders the current application state.
func (a *App) View() string {
	if a.model.State == tui.StateAuth {
		return a.authView.View()
	}

	sidebar := tui.SidebarStyle.
		Width(a.sidebarWidth()).
		Height(a.model.Height - statusHeight).
		Render(a.historyView.View())
	main := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, " ", a.chatView.View())

	return lipgloss.JoinVertical(lipgloss.Left, main, a.bottomLine())
}

func (a *App) bottomLine() string {
	switch a.model.State {
	case tui.StateConfirmDelete:
		return a.confirmView.View()
	case tui.StateUpload:
		return a.uploadView.View()
	}

	if a.model.CtrlCPending {
		return tui.WarningStyle.Render("Press Ctrl+C again to exit")
	}
	if a.model.Status != "" {
		if a.model.StatusIsErr {
			return tui.ErrorStyle.Render(a.model.Status)
		}
		return tui.SuccessStyle.Render(a.model.Status)
	}

	var help string
	if a.model.State == tui.StateHistory {
		help = "Enter: Open · d: Delete · r: Refresh · Esc: Back"
	} else {
		help = "Enter: Send · Ctrl+J: New line · Ctrl+O: History · Ctrl+N: New chat · Ctrl+U: Upload · Ctrl+L: Logout"
	}
	user := fmt.Sprintf(" %s ", a.model.Session.Username)
	return tui.StatusBarStyle.Render(user) + " " + tui.DimStyle.Render(strings.TrimSpace(help))
}
