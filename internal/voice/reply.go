package voice

import (
	"context"
	"errors"
)

// ErrNoReply is returned when the socket closes before an utterance is
// answered.
var ErrNoReply = errors.New("voice socket closed before a reply")

// ServerError is an {"error": ...} message from the server.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string { return e.Message }

// Reply collects the answer to one utterance.
type Reply struct {
	Transcript string
	Text       string
	Audio      []byte
}

// Await reads events until the spoken reply arrives, the server reports an
// error, or the socket closes.
func (s *Stream) Await(ctx context.Context) (Reply, error) {
	var reply Reply
	for {
		select {
		case <-ctx.Done():
			return reply, ctx.Err()
		case ev, ok := <-s.events:
			if !ok {
				if err := s.Err(); err != nil {
					return reply, err
				}
				return reply, ErrNoReply
			}
			switch ev.Type {
			case EventTranscript:
				reply.Transcript = ev.Text
			case EventAssistantText:
				reply.Text = ev.Text
			case EventAssistantAudio:
				reply.Audio = ev.Audio
				return reply, nil
			case EventError:
				return reply, &ServerError{Message: ev.Error}
			}
		}
	}
}
