// Package session keeps conversation state per (app, user, session) key.
package session

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Store persists sessions. GetOrCreate is idempotent: repeated calls with
// the same key return the same session.
type Store interface {
	GetOrCreate(ctx context.Context, appID, userID, sessionID string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Close() error
}

// Config selects a store backend
type Config struct {
	Backend  string `mapstructure:"backend"` // memory | redis | sqlite | postgres
	RedisURL string `mapstructure:"redis_addr"`
	Password string `mapstructure:"redis_password"`
	DSN      string `mapstructure:"dsn"`
}

// Open builds the configured store
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(ctx, cfg.RedisURL, cfg.Password, logger)
	case "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "file:telecom_sessions.db?_pragma=busy_timeout(5000)"
		}
		return NewSQLStore(ctx, "sqlite", dsn, logger)
	case "postgres":
		return NewSQLStore(ctx, "postgres", cfg.DSN, logger)
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}
