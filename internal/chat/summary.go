package chat

import (
	"time"

	"github.com/devmate-dev/devmate/internal/backend"
)

const previewLength = 40

// Placeholder previews.
const (
	PreviewEmpty       = "Empty conversation"
	PreviewNoUser      = "No user message"
	PreviewNoAssistant = "No AI response"
)

// Summary is the sidebar view of a conversation. It is derived, never stored.
type Summary struct {
	ID               string
	UserPreview      string
	AssistantPreview string
	UserMessages     int
	TotalMessages    int
	LastActivity     time.Time
}

// Summarize derives a Summary from a conversation.
func Summarize(c backend.Conversation) Summary {
	sum := Summary{
		ID:            c.ID,
		TotalMessages: len(c.Messages),
		LastActivity:  c.LastActivity(),
	}

	if len(c.Messages) == 0 {
		sum.UserPreview = PreviewEmpty
		return sum
	}

	var user, assistant string
	var haveUser, haveAssistant bool
	for _, m := range c.Messages {
		switch m.Role {
		case backend.RoleUser:
			sum.UserMessages++
			if !haveUser {
				user, haveUser = m.Content, true
			}
		case backend.RoleAssistant:
			if !haveAssistant {
				assistant, haveAssistant = m.Content, true
			}
		}
	}

	if user == "" {
		user = PreviewNoUser
	}
	if assistant == "" {
		assistant = PreviewNoAssistant
	}
	sum.UserPreview = truncate(user)
	sum.AssistantPreview = truncate(assistant)
	return sum
}

// SummarizeAll keeps the input order.
func SummarizeAll(convs []backend.Conversation) []Summary {
	out := make([]Summary, len(convs))
	for i, c := range convs {
		out[i] = Summarize(c)
	}
	return out
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= previewLength {
		return s
	}
	return string(r[:previewLength]) + "..."
}
