package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/devmate-dev/devmate/internal/backend"
	"github.com/devmate-dev/devmate/internal/log"
)

// Authenticator is the part of the backend client used for auth.
type Authenticator interface {
	Login(ctx context.Context, creds backend.Credentials) (*backend.LoginResponse, error)
	Signup(ctx context.Context, account backend.NewAccount) error
}

// Store holds the current session and mirrors it into a Persister.
type Store struct {
	auth    Authenticator
	persist Persister
	events  log.Recorder
	logger  *zap.Logger

	mu      sync.RWMutex
	current Session
}

// NewStore creates a Store. events and logger may be nil.
func NewStore(auth Authenticator, persist Persister, events log.Recorder, logger *zap.Logger) *Store {
	if events == nil {
		events = log.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{auth: auth, persist: persist, events: events, logger: logger}
}

// Login submits credentials. On success the session is persisted and
// returned. Errors are *AuthError with a display message.
func (s *Store) Login(ctx context.Context, creds backend.Credentials) (Session, error) {
	res, err := s.auth.Login(ctx, creds)
	if err != nil {
		authErr := toAuthError(err)
		_ = s.events.Append(log.LogEvent{Event: log.EventLoginFailed, Username: creds.Identifier(), Error: authErr.Message})
		return Session{}, authErr
	}

	sess := Session{Token: res.AccessToken, Username: res.Username}
	if sess.Username == "" {
		// Older backends omit the username.
		sess.Username = creds.Identifier()
	}

	if err := s.persist.Set(map[string]string{KeyToken: sess.Token, KeyUser: sess.Username}); err != nil {
		return Session{}, fmt.Errorf("persisting session: %w", err)
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()

	_ = s.events.Append(log.LogEvent{Event: log.EventLogin, Username: sess.Username})
	return sess, nil
}

// Signup creates an account and returns advisory text. It never logs in.
func (s *Store) Signup(ctx context.Context, account backend.NewAccount) (string, error) {
	if err := s.auth.Signup(ctx, account); err != nil {
		return "", toAuthError(err)
	}
	_ = s.events.Append(log.LogEvent{Event: log.EventSignup, Username: account.Username})
	return MsgSignupSucceeded, nil
}

// Restore rehydrates the session from the Persister. It reports false when
// either key is absent or empty.
func (s *Store) Restore() (Session, bool) {
	token, okToken, err := s.persist.Get(KeyToken)
	if err != nil {
		s.logger.Warn("reading persisted token", zap.Error(err))
		return Session{}, false
	}
	user, okUser, err := s.persist.Get(KeyUser)
	if err != nil {
		s.logger.Warn("reading persisted user", zap.Error(err))
		return Session{}, false
	}

	sess := Session{Token: token, Username: user}
	if !okToken || !okUser || !sess.Valid() {
		return Session{}, false
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()
	return sess, true
}

// Logout clears the persisted keys and the in-memory session. It never
// fails; persistence errors are logged.
func (s *Store) Logout() {
	s.mu.Lock()
	user := s.current.Username
	s.current = Session{}
	s.mu.Unlock()

	if err := s.persist.Delete(KeyToken, KeyUser); err != nil {
		s.logger.Error("clearing persisted session", zap.Error(err))
	}
	_ = s.events.Append(log.LogEvent{Event: log.EventLogout, Username: user})
}

// Current returns the in-memory session.
func (s *Store) Current() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.current.Valid()
}

// Token returns the bearer token, or ErrNotAuthenticated.
func (s *Store) Token() (string, error) {
	sess, ok := s.Current()
	if !ok {
		return "", ErrNotAuthenticated
	}
	return sess.Token, nil
}

func toAuthError(err error) *AuthError {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		return &AuthError{Message: apiErr.Detail, Err: err}
	}
	return &AuthError{Message: MsgServerError, Err: err}
}
