package backend

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeError(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		fallback string
		want     string
	}{
		{name: "string detail", raw: `"Invalid credentials"`, fallback: "Login failed", want: "Invalid credentials"},
		{name: "field errors", raw: `[{"loc":["body","email"],"msg":"field required"},{"msg":"value is not a valid email address"}]`, fallback: "x", want: "field required, value is not a valid email address"},
		{name: "entry without msg", raw: `[{"msg":"a"},{"code": 1}]`, fallback: "x", want: `a, {"code":1}`},
		{name: "missing", raw: ``, fallback: "Login failed", want: "Login failed"},
		{name: "null", raw: `null`, fallback: "Signup failed", want: "Signup failed"},
		{name: "empty list", raw: `[]`, fallback: "Signup failed", want: "Signup failed"},
		{name: "number", raw: `42`, fallback: "Error from server", want: "Error from server"},
		{name: "empty string", raw: `""`, fallback: "Login failed", want: "Login failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeError(json.RawMessage(tt.raw), tt.fallback))
		})
	}
}

func TestConversationUnmarshalAcceptsMongoID(t *testing.T) {
	var c Conversation
	err := json.Unmarshal([]byte(`{"_id":"abc","messages":[{"role":"user","content":"hi"}],"created_at":"2026-03-01T10:00:00.123456"}`), &c)
	assert.NoError(t, err)
	assert.Equal(t, "abc", c.ID)
	assert.Len(t, c.Messages, 1)
	assert.Equal(t, 2026, c.CreatedAt.Year())
	assert.True(t, c.UpdatedAt.IsZero())
	assert.Equal(t, c.CreatedAt, c.LastActivity())
}

func TestConversationUnmarshalPrefersID(t *testing.T) {
	var c Conversation
	err := json.Unmarshal([]byte(`{"id":"x","_id":"y","updated_at":"2026-03-02T10:00:00Z"}`), &c)
	assert.NoError(t, err)
	assert.Equal(t, "x", c.ID)
	assert.Equal(t, c.UpdatedAt, c.LastActivity())
}
