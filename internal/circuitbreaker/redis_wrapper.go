package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisWrapper guards the go-redis client used by the session store
type RedisWrapper struct {
	client *redis.Client
	cb     *Breaker
	logger *zap.Logger
}

// NewRedisWrapper creates a Redis wrapper registered under the session-store component
func NewRedisWrapper(client *redis.Client, logger *zap.Logger) *RedisWrapper {
	cfg := RedisSettings().Config(func(err error) bool {
		return !errors.Is(err, redis.Nil) && !errors.Is(err, context.Canceled)
	})
	return &RedisWrapper{
		client: client,
		cb:     DefaultRegistry.NewBreaker("redis", "session-store", cfg, logger),
		logger: logger,
	}
}

// Ping checks connectivity through the breaker
func (rw *RedisWrapper) Ping(ctx context.Context) error {
	return rw.cb.Execute(ctx, func(ctx context.Context) error {
		return rw.client.Ping(ctx).Err()
	})
}

// Get returns the value at key. A missing key yields redis.Nil and does not
// count against the breaker.
func (rw *RedisWrapper) Get(ctx context.Context, key string) ([]byte, error) {
	var val []byte
	err := rw.cb.Execute(ctx, func(ctx context.Context) error {
		var err error
		val, err = rw.client.Get(ctx, key).Bytes()
		return err
	})
	return val, err
}

// Set stores value at key with the given TTL (0 keeps it forever)
func (rw *RedisWrapper) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return rw.cb.Execute(ctx, func(ctx context.Context) error {
		return rw.client.Set(ctx, key, value, ttl).Err()
	})
}

// SetNX stores value only if key is absent and reports whether it was stored
func (rw *RedisWrapper) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	var ok bool
	err := rw.cb.Execute(ctx, func(ctx context.Context) error {
		var err error
		ok, err = rw.client.SetNX(ctx, key, value, ttl).Result()
		return err
	})
	return ok, err
}

// Close closes the underlying client
func (rw *RedisWrapper) Close() error {
	return rw.client.Close()
}

// Client exposes the raw client for callers that need unguarded access
func (rw *RedisWrapper) Client() *redis.Client {
	return rw.client
}

// IsOpen reports whether the breaker is currently rejecting calls
func (rw *RedisWrapper) IsOpen() bool {
	return rw.cb.State() == StateOpen
}
