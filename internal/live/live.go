// Package live follows the backend's change feed so an open board can
// reload when someone else edits it.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// Maximum message size allowed from the feed
	maxMessageSize = 64 * 1024

	handshakeTimeout = 10 * time.Second
	defaultBackoff   = 2 * time.Second
	maxBackoff       = time.Minute
)

// TypeChanged is the message type published after a mutation.
const TypeChanged = "task.changed"

// Message is the envelope of every feed message.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
	User string          `json:"user,omitempty"`
}

// Change says something in a project was modified.
type Change struct {
	ProjectID string `json:"projectId"`
	TaskID    string `json:"taskId,omitempty"`
	Op        string `json:"op"`
}

// Encode wraps a change in a feed message.
func Encode(c Change) ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: TypeChanged, Data: data})
}

type Subscriber struct {
	url     string
	token   string
	logger  zerolog.Logger
	dialer  *websocket.Dialer
	Backoff time.Duration
}

func NewSubscriber(url, token string, logger zerolog.Logger) *Subscriber {
	return &Subscriber{
		url:     url,
		token:   token,
		logger:  logger.With().Str("component", "live").Logger(),
		dialer:  &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		Backoff: defaultBackoff,
	}
}

// Run delivers changes for projectID to out until ctx is done, redialing
// with backoff when the connection drops. It always returns ctx.Err().
func (s *Subscriber) Run(ctx context.Context, projectID string, out chan<- Change) error {
	backoff := s.Backoff
	for {
		conn, err := s.dial(ctx)
		if err == nil {
			backoff = s.Backoff
			s.logger.Info().Str("url", s.url).Msg("connected to change feed")
			err = s.readPump(ctx, conn, projectID, out)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn().
			Err(err).
			Dur("retry_in", backoff).
			Msg("change feed unavailable")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (s *Subscriber) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if s.token != "" {
		header.Set("Authorization", "Bearer "+s.token)
	}
	conn, resp, err := s.dialer.DialContext(ctx, s.url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, err
}

// readPump reads until the connection fails or ctx is done.
func (s *Subscriber) readPump(ctx context.Context, conn *websocket.Conn, projectID string, out chan<- Change) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return errors.New("feed closed by server")
			}
			return err
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.logger.Debug().Err(err).Msg("skipping malformed feed message")
			continue
		}
		if msg.Type != TypeChanged {
			continue
		}
		var c Change
		if err := json.Unmarshal(msg.Data, &c); err != nil {
			s.logger.Debug().Err(err).Msg("skipping malformed change")
			continue
		}
		if c.ProjectID != "" && c.ProjectID != projectID {
			continue
		}

		select {
		case out <- c:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
