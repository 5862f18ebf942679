// Package voice is the client for the backend's realtime voice socket.
//
// Audio goes up as binary frames; a text frame {"event":"end"} closes one
// utterance. The server answers with a transcript, the assistant's text
// reply, and the reply spoken as base64 audio, each as a JSON text frame.
package voice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/devmate-dev/devmate/internal/log"
)

// Close codes the server uses to reject a socket.
const (
	CloseNoToken  = 4001
	CloseBadToken = 4002
)

// ErrUnauthorized is returned when the server closes the socket because the
// token is missing or invalid.
var ErrUnauthorized = errors.New("voice: not authorized")

// EventType tags a server message.
type EventType string

const (
	EventTranscript     EventType = "transcript"
	EventAssistantText  EventType = "assistant_text"
	EventAssistantAudio EventType = "assistant_audio"
	EventError          EventType = "error"
)

// Event is one decoded server message.
type Event struct {
	Type  EventType
	Text  string
	Audio []byte
	Error string
}

type wireEvent struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Audio string `json:"audio"`
	Error string `json:"error"`
}

var endFrame = []byte(`{"event":"end"}`)

// Options configures Dial.
type Options struct {
	Dialer *websocket.Dialer
	Events log.Recorder
	Logger *zap.Logger
}

// Stream is one open voice socket. Send, End and Close may be called from any
// goroutine; a single reader goroutine delivers Events.
type Stream struct {
	id     string
	conn   *websocket.Conn
	events chan Event
	logger *zap.Logger
	record log.Recorder
	start  time.Time

	writeMu sync.Mutex
	closeMu sync.Once

	closing chan struct{}
	done    chan struct{}
	err     error
}

// Dial opens wsURL with the token as a query parameter.
func Dial(ctx context.Context, wsURL, token string, opts Options) (*Stream, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("parsing voice url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	record := opts.Events
	if record == nil {
		record = log.Discard
	}

	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dialing voice socket: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dialing voice socket: %w", err)
	}

	s := &Stream{
		id:     uuid.NewString(),
		conn:   conn,
		events: make(chan Event, 8),
		logger: logger,
		record: record,
		start:  time.Now(),

		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	_ = record.Append(log.LogEvent{Event: log.EventVoiceStarted, StreamID: s.id})

	go s.readLoop()
	return s, nil
}

// ID identifies the stream in event logs.
func (s *Stream) ID() string { return s.id }

// Events delivers server messages. It is closed when the socket closes;
// Err then reports why.
func (s *Stream) Events() <-chan Event { return s.events }

// Err returns the error that ended the stream, or nil for a normal close.
// It blocks until the reader has stopped.
func (s *Stream) Err() error {
	<-s.done
	return s.err
}

// Send writes one audio chunk.
func (s *Stream) Send(chunk []byte) error {
	return s.write(websocket.BinaryMessage, chunk)
}

// End marks the end of an utterance. Audio already sent is processed;
// nothing is flushed client-side.
func (s *Stream) End() error {
	return s.write(websocket.TextMessage, endFrame)
}

// StreamReader forwards r as chunks of chunkSize bytes and then sends the end
// marker. It returns the number of audio bytes sent.
func (s *Stream) StreamReader(ctx context.Context, r io.Reader, chunkSize int) (int64, error) {
	if chunkSize <= 0 {
		return 0, fmt.Errorf("invalid chunk size %d", chunkSize)
	}

	buf := make([]byte, chunkSize)
	var sent int64
	for {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		n, readErr := io.ReadFull(r, buf)
		if n > 0 {
			if err := s.Send(buf[:n]); err != nil {
				return sent, err
			}
			sent += int64(n)
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return sent, fmt.Errorf("reading audio: %w", readErr)
		}
	}
	return sent, s.End()
}

// Close closes the socket and waits for the reader to stop.
func (s *Stream) Close() error {
	var err error
	s.closeMu.Do(func() {
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()
		close(s.closing)
		err = s.conn.Close()
		<-s.done

		ev := log.LogEvent{
			Event:      log.EventVoiceEnded,
			StreamID:   s.id,
			DurationMs: time.Since(s.start).Milliseconds(),
		}
		if s.err != nil {
			ev.Error = s.err.Error()
		}
		_ = s.record.Append(ev)
	})
	return err
}

func (s *Stream) write(kind int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(kind, data); err != nil {
		return fmt.Errorf("writing voice frame: %w", err)
	}
	return nil
}

func (s *Stream) readLoop() {
	defer close(s.done)
	defer close(s.events)

	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			s.err = closeError(err)
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		ev, ok := s.decode(data)
		if !ok {
			continue
		}
		select {
		case s.events <- ev:
		case <-s.closing:
			return
		}
	}
}

func (s *Stream) decode(data []byte) (Event, bool) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		s.logger.Warn("ignoring malformed voice message", zap.String("stream_id", s.id), zap.Error(err))
		return Event{}, false
	}

	if w.Error != "" {
		return Event{Type: EventError, Error: w.Error}, true
	}

	switch EventType(w.Type) {
	case EventTranscript, EventAssistantText:
		return Event{Type: EventType(w.Type), Text: w.Text}, true
	case EventAssistantAudio:
		audio, err := base64.StdEncoding.DecodeString(w.Audio)
		if err != nil {
			return Event{Type: EventError, Error: fmt.Sprintf("decoding audio: %v", err)}, true
		}
		return Event{Type: EventAssistantAudio, Audio: audio}, true
	default:
		s.logger.Debug("ignoring voice message", zap.String("stream_id", s.id), zap.String("type", w.Type))
		return Event{}, false
	}
}

func closeError(err error) error {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		switch ce.Code {
		case CloseNoToken, CloseBadToken:
			return ErrUnauthorized
		case websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived:
			return nil
		}
		return fmt.Errorf("voice socket closed: %w", err)
	}
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return fmt.Errorf("reading voice socket: %w", err)
}
