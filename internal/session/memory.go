package session

import (
	"context"
	"sync"
	"time"

	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/metrics"
)

// MemoryStore keeps sessions in process. GetOrCreate returns the same
// pointer for a key for the lifetime of the store.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[Key]*Session
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[Key]*Session)}
}

// GetOrCreate implements Store
func (m *MemoryStore) GetOrCreate(ctx context.Context, appID, userID, sessionID string) (*Session, error) {
	k := Key{AppID: appID, UserID: userID, SessionID: sessionID}
	if err := k.Validate(); err != nil {
		return nil, &Error{Op: "get_or_create", Key: k, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &Error{Op: "get_or_create", Key: k, Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[k]; ok {
		metrics.SessionCacheHits.Inc()
		return s, nil
	}
	metrics.SessionCacheMisses.Inc()
	s := newSession(k, time.Now())
	m.sessions[k] = s
	metrics.SessionsCreated.Inc()
	metrics.SessionsActive.Set(float64(len(m.sessions)))
	return s, nil
}

// Save implements Store. Saving a copy overwrites the stored session in
// place so earlier GetOrCreate callers observe the new state.
func (m *MemoryStore) Save(ctx context.Context, s *Session) error {
	k := s.Key()
	if err := k.Validate(); err != nil {
		return &Error{Op: "save", Key: k, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return &Error{Op: "save", Key: k, Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.sessions[k]
	switch {
	case !ok:
		m.sessions[k] = s
		metrics.SessionsActive.Set(float64(len(m.sessions)))
	case existing != s:
		*existing = *s.Clone()
	}
	return nil
}

// Len returns the number of stored sessions
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close implements Store
func (m *MemoryStore) Close() error { return nil }
