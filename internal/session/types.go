package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrSessionNotFound is returned when a session doesn't exist
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidSession is returned when session data is invalid
	ErrInvalidSession = errors.New("invalid session")
)

// Error wraps a store failure with the session key it concerned
type Error struct {
	Op  string
	Key Key
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("session %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Key identifies a session
type Key struct {
	AppID     string
	UserID    string
	SessionID string
}

func (k Key) String() string {
	return k.AppID + ":" + k.UserID + ":" + k.SessionID
}

// Validate rejects keys with empty parts
func (k Key) Validate() error {
	if k.AppID == "" || k.UserID == "" || k.SessionID == "" {
		return fmt.Errorf("%w: incomplete key %q", ErrInvalidSession, k.String())
	}
	return nil
}

// Session is the per-conversation state carried across turns
type Session struct {
	AppID     string                 `json:"app_id"`
	UserID    string                 `json:"user_id"`
	ID        string                 `json:"id"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
	Scratch   map[string]interface{} `json:"scratch"`
	History   []Message              `json:"history"`
	Turns     int                    `json:"turns"`
}

// Message represents a message in the session history
type Message struct {
	ID        string                 `json:"id"`
	Role      string                 `json:"role"` // "user", "assistant"
	Content   string                 `json:"content"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

func newSession(k Key, now time.Time) *Session {
	return &Session{
		AppID:     k.AppID,
		UserID:    k.UserID,
		ID:        k.SessionID,
		CreatedAt: now,
		UpdatedAt: now,
		Scratch:   make(map[string]interface{}),
		History:   make([]Message, 0),
	}
}

// Key returns the session key
func (s *Session) Key() Key {
	return Key{AppID: s.AppID, UserID: s.UserID, SessionID: s.ID}
}

// AddMessage appends to the history
func (s *Session) AddMessage(role, content string, metadata map[string]interface{}) Message {
	msg := Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
	s.History = append(s.History, msg)
	s.UpdatedAt = msg.Timestamp
	return msg
}

// Recent returns up to n most recent messages
func (s *Session) Recent(n int) []Message {
	if n <= 0 || len(s.History) == 0 {
		return nil
	}
	if n > len(s.History) {
		n = len(s.History)
	}
	return s.History[len(s.History)-n:]
}

// GetScratch retrieves a value from the workflow scratch space
func (s *Session) GetScratch(key string) (interface{}, bool) {
	if s.Scratch == nil {
		return nil, false
	}
	val, ok := s.Scratch[key]
	return val, ok
}

// SetScratch sets a value in the workflow scratch space
func (s *Session) SetScratch(key string, value interface{}) {
	if s.Scratch == nil {
		s.Scratch = make(map[string]interface{})
	}
	s.Scratch[key] = value
}

// Clone returns a copy that can be modified without touching s. Scratch
// values are copied shallowly.
func (s *Session) Clone() *Session {
	cp := *s
	cp.History = append([]Message(nil), s.History...)
	cp.Scratch = make(map[string]interface{}, len(s.Scratch))
	for k, v := range s.Scratch {
		cp.Scratch[k] = v
	}
	return &cp
}
