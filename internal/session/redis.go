package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/circuitbreaker"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/metrics"
)

const (
	defaultKeyPrefix = "telecom:session:"
	maxLocalSessions = 1000
)

// RedisStore persists sessions as JSON in Redis and keeps a local cache so
// repeated lookups in one process return the same *Session. Cached entries
// are refreshed from Redis on every lookup, so writes made by other
// processes are picked up.
type RedisStore struct {
	redis  *circuitbreaker.RedisWrapper
	logger *zap.Logger
	prefix string
	ttl    time.Duration // 0 keeps sessions until deleted out of band

	mu    sync.RWMutex
	local map[Key]*Session
}

// RedisOption configures a RedisStore
type RedisOption func(*RedisStore)

// WithTTL expires idle sessions after ttl
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) { s.ttl = ttl }
}

// WithKeyPrefix overrides the Redis key prefix
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

// NewRedisStore connects to addr and verifies the connection
func NewRedisStore(ctx context.Context, addr, password string, logger *zap.Logger, opts ...RedisOption) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	store := NewRedisStoreFromClient(client, logger, opts...)
	if err := store.redis.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	logger.Info("Session store initialized", zap.String("backend", "redis"), zap.String("addr", addr))
	return store, nil
}

// NewRedisStoreFromClient wraps an existing client
func NewRedisStoreFromClient(client *redis.Client, logger *zap.Logger, opts ...RedisOption) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &RedisStore{
		redis:  circuitbreaker.NewRedisWrapper(client, logger),
		logger: logger,
		prefix: defaultKeyPrefix,
		local:  make(map[Key]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreate implements Store
func (s *RedisStore) GetOrCreate(ctx context.Context, appID, userID, sessionID string) (*Session, error) {
	k := Key{AppID: appID, UserID: userID, SessionID: sessionID}
	if err := k.Validate(); err != nil {
		return nil, &Error{Op: "get_or_create", Key: k, Err: err}
	}

	s.mu.RLock()
	cached, ok := s.local[k]
	s.mu.RUnlock()
	if ok {
		metrics.SessionCacheHits.Inc()
		return s.refresh(ctx, k, cached)
	}
	metrics.SessionCacheMisses.Inc()

	sess, err := s.load(ctx, k)
	if errors.Is(err, ErrSessionNotFound) {
		sess, err = s.create(ctx, k)
	}
	if err != nil {
		return nil, err
	}
	return s.remember(k, sess), nil
}

// refresh copies a newer Redis version into the cached session, keeping
// the pointer callers already hold. A key that vanished from Redis (TTL or
// out-of-band delete) starts a new session. If Redis cannot be read the
// cached copy is served.
func (s *RedisStore) refresh(ctx context.Context, k Key, cached *Session) (*Session, error) {
	remote, err := s.load(ctx, k)
	switch {
	case errors.Is(err, ErrSessionNotFound):
		s.forget(k)
		sess, err := s.create(ctx, k)
		if err != nil {
			return nil, err
		}
		return s.remember(k, sess), nil
	case err != nil:
		s.logger.Warn("Serving cached session, refresh from Redis failed",
			zap.String("session", k.String()),
			zap.Error(err))
		return cached, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if remote.UpdatedAt.After(cached.UpdatedAt) {
		*cached = *remote
	}
	return cached, nil
}

func (s *RedisStore) forget(k Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.local, k)
	metrics.SessionsActive.Set(float64(len(s.local)))
}

// create writes a fresh session with SETNX. If another process won the
// race, its copy is loaded instead.
func (s *RedisStore) create(ctx context.Context, k Key) (*Session, error) {
	sess := newSession(k, time.Now())
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, &Error{Op: "create", Key: k, Err: err}
	}
	created, err := s.redis.SetNX(ctx, s.redisKey(k), data, s.ttl)
	if err != nil {
		return nil, &Error{Op: "create", Key: k, Err: err}
	}
	if !created {
		return s.load(ctx, k)
	}
	metrics.SessionsCreated.Inc()
	s.logger.Debug("Created session", zap.String("session", k.String()))
	return sess, nil
}

func (s *RedisStore) load(ctx context.Context, k Key) (*Session, error) {
	data, err := s.redis.Get(ctx, s.redisKey(k))
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, &Error{Op: "load", Key: k, Err: err}
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, &Error{Op: "load", Key: k, Err: fmt.Errorf("%w: %v", ErrInvalidSession, err)}
	}
	if sess.Scratch == nil {
		sess.Scratch = make(map[string]interface{})
	}
	return &sess, nil
}

// remember caches sess unless another goroutine cached the key first
func (s *RedisStore) remember(k Key, sess *Session) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.local[k]; ok {
		return existing
	}
	if len(s.local) >= maxLocalSessions {
		s.evictOldest()
	}
	s.local[k] = sess
	metrics.SessionsActive.Set(float64(len(s.local)))
	return sess
}

// evictOldest drops the least recently updated entry; caller holds s.mu
func (s *RedisStore) evictOldest() {
	var oldestKey Key
	var oldest time.Time
	first := true
	for k, sess := range s.local {
		if first || sess.UpdatedAt.Before(oldest) {
			oldestKey, oldest, first = k, sess.UpdatedAt, false
		}
	}
	delete(s.local, oldestKey)
}

// Save implements Store
func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	k := sess.Key()
	if err := k.Validate(); err != nil {
		return &Error{Op: "save", Key: k, Err: err}
	}
	sess.UpdatedAt = time.Now()
	data, err := json.Marshal(sess)
	if err != nil {
		return &Error{Op: "save", Key: k, Err: err}
	}
	if err := s.redis.Set(ctx, s.redisKey(k), data, s.ttl); err != nil {
		return &Error{Op: "save", Key: k, Err: err}
	}

	s.mu.Lock()
	if existing, ok := s.local[k]; ok && existing != sess {
		*existing = *sess.Clone()
	} else if !ok {
		s.local[k] = sess
		metrics.SessionsActive.Set(float64(len(s.local)))
	}
	s.mu.Unlock()
	return nil
}

// Ping checks the Redis connection
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx)
}

// Close implements Store
func (s *RedisStore) Close() error {
	return s.redis.Close()
}

func (s *RedisStore) redisKey(k Key) string {
	return s.prefix + k.String()
}
