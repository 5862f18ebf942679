// Package chat keeps the client's view of conversations in step with the
// backend: the visible message list, the saved conversation list and the
// Draft/Active state of the conversation in view.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/devmate-dev/devmate/internal/backend"
	"github.com/devmate-dev/devmate/internal/log"
)

var (
	// ErrBusy is returned when a send or delete is attempted while another
	// is in flight.
	ErrBusy = errors.New("a request is already in progress")
	// ErrEmptyMessage is returned for blank input.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrUnknownConversation is returned when loading an id that is not in
	// the fetched history.
	ErrUnknownConversation = errors.New("conversation not found in history")
	// ErrDeclined is returned when the user does not confirm a delete.
	ErrDeclined = errors.New("cancelled")
)

// MsgConnectionError is the synthetic assistant reply for transport failures.
const MsgConnectionError = "Error connecting to server"

// Backend is the part of the backend client used by Sync.
type Backend interface {
	Run(ctx context.Context, token string, req backend.RunRequest) (*backend.RunResponse, error)
	ListConversations(ctx context.Context, token string) ([]backend.Conversation, error)
	DeleteConversation(ctx context.Context, token, id string) error
	Upload(ctx context.Context, token, filename string, r io.Reader) (string, error)
}

// TokenSource yields the bearer token for each call. *session.Store
// satisfies it.
type TokenSource interface {
	Token() (string, error)
}

// Cache mirrors the fetched conversation list. *storage.Store satisfies it.
type Cache interface {
	ReplaceConversations(convs []backend.Conversation) error
	ListConversations() ([]backend.Conversation, error)
}

// Confirmer asks the user to confirm a destructive action.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

// Confirm calls f.
func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// Options holds the optional collaborators of Sync.
type Options struct {
	Cache  Cache
	Events log.Recorder
	Logger *zap.Logger
}

// Sync owns the chat state for one signed-in user. Methods are safe to call
// from multiple goroutines; at most one SendMessage or DeleteConversation
// runs at a time.
type Sync struct {
	backend Backend
	tokens  TokenSource
	cache   Cache
	events  log.Recorder
	logger  *zap.Logger

	busy atomic.Bool

	mu            sync.Mutex
	state         State
	messages      []backend.Message
	conversations []backend.Conversation
}

// New creates a Sync in the Draft state.
func New(b Backend, tokens TokenSource, opts Options) *Sync {
	events := opts.Events
	if events == nil {
		events = log.Discard
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sync{
		backend: b,
		tokens:  tokens,
		cache:   opts.Cache,
		events:  events,
		logger:  logger,
		state:   Draft{},
	}
}

// SendMessage appends text optimistically, posts the whole history and
// replaces the visible list with the server's. On failure a synthetic
// assistant error message is appended instead and the error is returned
// alongside the list.
func (s *Sync) SendMessage(ctx context.Context, text string) ([]backend.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return s.Messages(), ErrEmptyMessage
	}

	if !s.busy.CompareAndSwap(false, true) {
		return s.Messages(), ErrBusy
	}
	defer s.busy.Store(false)

	token, err := s.tokens.Token()
	if err != nil {
		return s.Messages(), err
	}

	s.mu.Lock()
	pending := make([]backend.Message, len(s.messages), len(s.messages)+1)
	copy(pending, s.messages)
	pending = append(pending, backend.Message{Role: backend.RoleUser, Content: text})
	s.messages = pending
	convID, _ := ConversationID(s.state)
	s.mu.Unlock()

	start := time.Now()
	res, err := s.backend.Run(ctx, token, backend.RunRequest{
		Messages:       pending,
		ConversationID: convID,
	})
	if err != nil {
		reply := backend.Message{Role: backend.RoleAssistant, Content: errorReply(err)}

		s.mu.Lock()
		s.messages = append(cloneMessages(pending), reply)
		out := cloneMessages(s.messages)
		s.mu.Unlock()

		_ = s.events.Append(log.LogEvent{Event: log.EventSendFailed, ConversationID: convID, Error: reply.Content})
		return out, err
	}

	s.mu.Lock()
	s.messages = cloneMessages(res.Messages)
	s.state = afterSend(s.state, res.ConversationID)
	activeID, _ := ConversationID(s.state)
	out := cloneMessages(s.messages)
	s.mu.Unlock()

	_ = s.events.Append(log.LogEvent{
		Event:          log.EventMessageSent,
		ConversationID: activeID,
		Messages:       len(out),
		DurationMs:     time.Since(start).Milliseconds(),
	})

	if _, err := s.RefreshHistory(ctx); err != nil {
		s.logger.Warn("refreshing history after send", zap.Error(err))
	}

	return out, nil
}

// RefreshHistory fetches every conversation and replaces the cached list.
// On failure the previous list is kept.
func (s *Sync) RefreshHistory(ctx context.Context) ([]Summary, error) {
	token, err := s.tokens.Token()
	if err != nil {
		return nil, err
	}

	convs, err := s.backend.ListConversations(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("refreshing history: %w", err)
	}

	s.mu.Lock()
	s.conversations = convs
	s.state = afterRefresh(s.state)
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.ReplaceConversations(convs); err != nil {
			s.logger.Warn("caching conversations", zap.Error(err))
		}
	}

	_ = s.events.Append(log.LogEvent{Event: log.EventHistoryRefreshed, Conversations: len(convs)})
	return SummarizeAll(convs), nil
}

// LoadCachedHistory fills the conversation list from the local cache without
// touching the network.
func (s *Sync) LoadCachedHistory() ([]Summary, error) {
	if s.cache == nil {
		return []Summary{}, nil
	}
	convs, err := s.cache.ListConversations()
	if err != nil {
		return nil, fmt.Errorf("reading cached history: %w", err)
	}

	s.mu.Lock()
	s.conversations = convs
	s.mu.Unlock()

	return SummarizeAll(convs), nil
}

// LoadConversation replaces the visible list with a fetched conversation and
// makes it the active one.
func (s *Sync) LoadConversation(id string) ([]backend.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.conversations {
		if c.ID == id {
			s.messages = cloneMessages(c.Messages)
			s.state = load(id)
			return cloneMessages(s.messages), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownConversation, id)
}

// StartNew clears the view and returns to Draft.
func (s *Sync) StartNew() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.state = reset()
}

// Forget drops everything held for the signed-in user, including the
// cached conversation list when the cache can be cleared.
func (s *Sync) Forget() error {
	s.mu.Lock()
	s.messages = nil
	s.conversations = nil
	s.state = reset()
	s.mu.Unlock()

	if c, ok := s.cache.(interface{ ClearConversations() error }); ok {
		return c.ClearConversations()
	}
	return nil
}

// DeleteConversation deletes id on the server after confirmation. Deleting
// the active conversation resets the view to Draft. History is refreshed on
// success. On failure the state is left unchanged. While a send is in flight
// it returns ErrBusy without asking, and sends are refused until it returns.
func (s *Sync) DeleteConversation(ctx context.Context, id string, confirm Confirmer) error {
	if s.busy.Load() {
		return ErrBusy
	}
	if confirm == nil || !confirm.Confirm("Delete this conversation?") {
		return ErrDeclined
	}

	// Held for the delete itself so a send cannot land on a deleted id.
	if !s.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer s.busy.Store(false)

	token, err := s.tokens.Token()
	if err != nil {
		return err
	}

	if err := s.backend.DeleteConversation(ctx, token, id); err != nil {
		return err
	}

	s.mu.Lock()
	if activeID, ok := ConversationID(s.state); ok && activeID == id {
		s.messages = nil
		s.state = reset()
	}
	s.mu.Unlock()

	_ = s.events.Append(log.LogEvent{Event: log.EventConversationDeleted, ConversationID: id})

	if _, err := s.RefreshHistory(ctx); err != nil {
		s.logger.Warn("refreshing history after delete", zap.Error(err))
	}
	return nil
}

// Upload sends a local file to the backend and returns its confirmation.
func (s *Sync) Upload(ctx context.Context, path string) (string, error) {
	token, err := s.tokens.Token()
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	msg, err := s.backend.Upload(ctx, token, path, f)
	if err != nil {
		return "", err
	}

	_ = s.events.Append(log.LogEvent{Event: log.EventFileUploaded, File: info.Name(), Bytes: info.Size()})
	return msg, nil
}

// Messages returns a copy of the visible message list.
func (s *Sync) Messages() []backend.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneMessages(s.messages)
}

// Conversations returns a copy of the fetched conversation list.
func (s *Sync) Conversations() []backend.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]backend.Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out
}

// Summaries summarizes the fetched conversation list.
func (s *Sync) Summaries() []Summary {
	return SummarizeAll(s.Conversations())
}

// State returns the current Draft/Active state.
func (s *Sync) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Busy reports whether a send is in flight.
func (s *Sync) Busy() bool {
	return s.busy.Load()
}

func errorReply(err error) string {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		return "Error: " + apiErr.Detail
	}
	return MsgConnectionError
}

func cloneMessages(in []backend.Message) []backend.Message {
	out := make([]backend.Message, len(in))
	copy(out, in)
	return out
}
