// Package session owns the authenticated identity of the client.
package session

import "errors"

// Persisted keys.
const (
	KeyToken = "dev_token"
	KeyUser  = "dev_user"
)

// User-facing messages.
const (
	MsgSignupSucceeded = "Signup successful! Please Login."
	MsgServerError     = "Server error"
)

// ErrNotAuthenticated is returned when an operation needs a session and
// there is none.
var ErrNotAuthenticated = errors.New("not logged in")

// Session is an authenticated identity. It is valid only with both fields set.
type Session struct {
	Token    string
	Username string
}

// Valid reports whether both fields are present.
func (s Session) Valid() bool {
	return s.Token != "" && s.Username != ""
}

// Persister is the durable load/save boundary for the session keys.
// *storage.Store satisfies it.
type Persister interface {
	Get(key string) (string, bool, error)
	Set(values map[string]string) error
	Delete(keys ...string) error
}

// AuthError is a failed login or signup, carrying the display text.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string { return e.Message }

func (e *AuthError) Unwrap() error { return e.Err }
