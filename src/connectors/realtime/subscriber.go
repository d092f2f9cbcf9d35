// Package realtime follows the backend's websocket change feed for the position
// tables and reports which users were affected.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	logger "github.com/sirupsen/logrus"
)

const (
	eventJoin      = "phx_join"
	eventReply     = "phx_reply"
	eventHeartbeat = "heartbeat"
	eventInsert    = "INSERT"
	eventUpdate    = "UPDATE"
	eventDelete    = "DELETE"

	topicPhoenix = "phoenix"
)

// Message is one Phoenix channel frame.
type Message struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref,omitempty"`
}

// Change is the payload of a row change event.
type Change struct {
	Type      string                 `json:"type"`
	Schema    string                 `json:"schema"`
	Table     string                 `json:"table"`
	Record    map[string]interface{} `json:"record"`
	OldRecord map[string]interface{} `json:"old_record"`
}

// UserID returns the owner of the changed row, preferring the new record.
func (c Change) UserID() (uuid.UUID, bool) {
	for _, rec := range []map[string]interface{}{c.Record, c.OldRecord} {
		raw, ok := rec["user_id"].(string)
		if !ok {
			continue
		}
		id, err := uuid.Parse(raw)
		if err == nil {
			return id, true
		}
	}
	return uuid.Nil, false
}

// Handler is called for every change that names a user.
type Handler func(ctx context.Context, userID uuid.UUID, change Change)

type Subscriber struct {
	config  Config
	handler Handler
	dialer  *websocket.Dialer
	ref     atomic.Uint64
}

func NewSubscriber(config Config, handler Handler) *Subscriber {
	return &Subscriber{
		config:  config,
		handler: handler,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

func (s *Subscriber) nextRef() string {
	return strconv.FormatUint(s.ref.Add(1), 10)
}

func (s *Subscriber) endpoint() (string, error) {
	u, err := url.Parse(s.config.URL)
	if err != nil {
		return "", fmt.Errorf("parse realtime url: %w", err)
	}
	q := u.Query()
	if s.config.APIKey != "" {
		q.Set("apikey", s.config.APIKey)
	}
	q.Set("vsn", "1.0.0")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// backoff doubles from MinBackoff and stops at MaxBackoff.
func (s *Subscriber) backoff(retry int) time.Duration {
	d := s.config.MinBackoff
	for i := 0; i < retry && d < s.config.MaxBackoff; i++ {
		d *= 2
	}
	if d > s.config.MaxBackoff {
		d = s.config.MaxBackoff
	}
	return d
}

// Run connects, joins every topic and dispatches changes until ctx is done.
// Dropped connections are retried with capped exponential backoff.
func (s *Subscriber) Run(ctx context.Context) error {
	endpoint, err := s.endpoint()
	if err != nil {
		return err
	}

	retry := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		healthy, err := s.session(ctx, endpoint)
		if ctx.Err() != nil {
			return nil
		}
		if healthy {
			retry = 0
		}

		delay := s.backoff(retry)
		logger.WithFields(map[string]interface{}{
			"component": "realtime",
			"retry":     retry,
			"delay":     delay.String(),
		}).WithError(err).Warn("Realtime connection lost, reconnecting")
		retry++

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// session runs one connection. healthy reports whether the server accepted a join
// or the connection outlived MaxBackoff; only then does the backoff start over.
func (s *Subscriber) session(ctx context.Context, endpoint string) (healthy bool, err error) {
	started := time.Now()
	conn, _, err := s.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		_ = conn.Close()
		wg.Wait()
	}()

	var writeMu sync.Mutex
	send := func(m Message) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(m)
	}

	for _, topic := range s.config.Topics() {
		if err := send(Message{Topic: topic, Event: eventJoin, Payload: json.RawMessage(`{}`), Ref: s.nextRef()}); err != nil {
			return false, fmt.Errorf("join %s: %w", topic, err)
		}
	}
	logger.WithField("topics", s.config.Topics()).Info("Realtime channels joined")

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(s.config.Heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-sessionCtx.Done():
				// unblocks ReadMessage
				_ = conn.Close()
				return
			case <-ticker.C:
				if err := send(Message{Topic: topicPhoenix, Event: eventHeartbeat, Payload: json.RawMessage(`{}`), Ref: s.nextRef()}); err != nil {
					logger.WithError(err).Warn("Realtime heartbeat failed")
					_ = conn.Close()
					return
				}
			}
		}
	}()

	for {
		if s.config.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return healthy || time.Since(started) >= s.config.MaxBackoff, fmt.Errorf("read: %w", err)
		}
		if s.dispatch(sessionCtx, raw) {
			healthy = true
		}
	}
}

// dispatch handles one frame and reports whether it accepted a channel join.
func (s *Subscriber) dispatch(ctx context.Context, raw []byte) bool {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		logger.WithError(err).Warn("Realtime frame is not JSON")
		return false
	}

	switch msg.Event {
	case eventReply:
		var reply struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(msg.Payload, &reply); err != nil {
			return false
		}
		if reply.Status != "ok" {
			logger.WithFields(map[string]interface{}{
				"topic":  msg.Topic,
				"ref":    msg.Ref,
				"status": reply.Status,
			}).Warn("Realtime request rejected")
			return false
		}
		return msg.Topic != topicPhoenix
	case eventInsert, eventUpdate, eventDelete:
	default:
		return false
	}

	var change Change
	if err := json.Unmarshal(msg.Payload, &change); err != nil {
		logger.WithError(err).WithField("topic", msg.Topic).Warn("Realtime change payload invalid")
		return false
	}
	if change.Type == "" {
		change.Type = msg.Event
	}

	userID, ok := change.UserID()
	if !ok {
		logger.WithFields(map[string]interface{}{
			"topic": msg.Topic,
			"type":  change.Type,
		}).Warn("Realtime change without user_id")
		return false
	}
	s.handler(ctx, userID, change)
	return false
}
