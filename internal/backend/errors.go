package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrTransport wraps failures that never produced a usable response: an
// unreachable server or a body that is not JSON.
var ErrTransport = errors.New("error connecting to server")

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return e.Detail
}

// NormalizeError turns a backend "detail" value into one display string.
// A string detail is returned as is. A list of field errors becomes each
// entry's "msg" (or the entry's JSON when it has none) joined by ", ".
// Anything else, including an empty list, yields fallback.
func NormalizeError(raw json.RawMessage, fallback string) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return fallback
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return fallback
		}
		return s
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || len(items) == 0 {
		return fallback
	}

	parts := make([]string, 0, len(items))
	for _, item := range items {
		var field struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(item, &field); err == nil && field.Msg != "" {
			parts = append(parts, field.Msg)
			continue
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, item); err != nil {
			parts = append(parts, string(item))
			continue
		}
		parts = append(parts, compact.String())
	}
	return strings.Join(parts, ", ")
}

// newAPIError builds an APIError from a response body.
func newAPIError(status int, body []byte, fallback string) *APIError {
	var eb errorBody
	detail := fallback
	if err := json.Unmarshal(body, &eb); err == nil {
		detail = NormalizeError(eb.Detail, fallback)
	}
	return &APIError{StatusCode: status, Detail: detail}
}

func transportError(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrTransport, err)
}
