// Package log provides structured event logging.
// This file appends JSON events to events.jsonl.
package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event type constants.
const (
	EventLogin               = "login"
	EventLoginFailed         = "login_failed"
	EventSignup              = "signup"
	EventLogout              = "logout"
	EventMessageSent         = "message_sent"
	EventSendFailed          = "send_failed"
	EventHistoryRefreshed    = "history_refreshed"
	EventConversationDeleted = "conversation_deleted"
	EventFileUploaded        = "file_uploaded"
	EventVoiceStarted        = "voice_started"
	EventVoiceEnded          = "voice_ended"
)

// LogEvent represents a single structured event written to the log.
type LogEvent struct {
	Time           time.Time              `json:"time"`
	Event          string                 `json:"event"`
	Username       string                 `json:"username,omitempty"`
	ConversationID string                 `json:"conversation_id,omitempty"`
	StreamID       string                 `json:"stream_id,omitempty"`
	Messages       int                    `json:"messages,omitempty"`
	Conversations  int                    `json:"conversations,omitempty"`
	File           string                 `json:"file,omitempty"`
	Bytes          int64                  `json:"bytes,omitempty"`
	Error          string                 `json:"error,omitempty"`
	DurationMs     int64                  `json:"duration_ms,omitempty"`
	Data           map[string]interface{} `json:"data,omitempty"`
}

// Recorder is the subset of Logger used by the session and chat packages.
type Recorder interface {
	Append(event LogEvent) error
}

// Logger writes append-only JSONL events to a log file.
type Logger struct {
	path string
	mu   sync.Mutex
}

// NewLogger creates a Logger that writes to events.jsonl inside dir.
// Creates dir if it does not already exist.
// Does not truncate an existing log file.
func NewLogger(dir string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	return &Logger{
		path: filepath.Join(dir, "events.jsonl"),
	}, nil
}

// Append writes a single LogEvent as one JSON line to the log file.
// If event.Time is the zero value, it is automatically set to time.Now().UTC().
// Thread-safe via mutex.
func (l *Logger) Append(event LogEvent) error {
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal log event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write log event: %w", err)
	}

	return nil
}

// ReadAll reads and parses all events from the log file.
// Returns an empty slice (not an error) if the file does not exist.
func (l *Logger) ReadAll() ([]LogEvent, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []LogEvent{}, nil
		}
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	var events []LogEvent
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event LogEvent
		if err := json.Unmarshal(line, &event); err != nil {
			return nil, fmt.Errorf("parse log line %d: %w", lineNum, err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}

	return events, nil
}

// Discard is a Recorder that drops every event.
var Discard Recorder = discard{}

type discard struct{}

func (discard) Append(LogEvent) error { return nil }
