package backend

import (
	"encoding/json"
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation is a server-owned thread of messages.
type Conversation struct {
	ID        string    `json:"id"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LastActivity returns UpdatedAt, or CreatedAt when the server never set it.
func (c Conversation) LastActivity() time.Time {
	if !c.UpdatedAt.IsZero() {
		return c.UpdatedAt
	}
	return c.CreatedAt
}

// UnmarshalJSON accepts the Mongo-style "_id" as well as "id", and tolerates
// timestamps without a zone suffix.
func (c *Conversation) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID        string    `json:"id"`
		MongoID   string    `json:"_id"`
		Messages  []Message `json:"messages"`
		CreatedAt string    `json:"created_at"`
		UpdatedAt string    `json:"updated_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.ID = raw.ID
	if c.ID == "" {
		c.ID = raw.MongoID
	}
	c.Messages = raw.Messages
	c.CreatedAt = parseTime(raw.CreatedAt)
	c.UpdatedAt = parseTime(raw.UpdatedAt)
	return nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02T15:04:05",
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Credentials are submitted to /login. The final web client logs in by
// email; older backends take a username.
type Credentials struct {
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password"`
}

// Identifier returns whichever of email or username was supplied.
func (c Credentials) Identifier() string {
	if c.Email != "" {
		return c.Email
	}
	return c.Username
}

// NewAccount is submitted to /signup.
type NewAccount struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

// LoginResponse is the body of a successful /login.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
	Username    string `json:"username"`
}

// RunRequest is the body of /run.
type RunRequest struct {
	Messages       []Message `json:"messages"`
	ConversationID string    `json:"conversation_id,omitempty"`
}

// RunResponse is the body of a successful /run. The server is authoritative
// over Messages.
type RunResponse struct {
	Messages       []Message `json:"messages"`
	ConversationID string    `json:"conversation_id"`
}

type conversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
}

type uploadResponse struct {
	Message string `json:"message"`
}

type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}
