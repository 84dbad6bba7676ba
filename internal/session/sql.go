package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/circuitbreaker"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/metrics"
)

const schema = `CREATE TABLE IF NOT EXISTS telecom_sessions (
	app_id     TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	session_id TEXT NOT NULL,
	state      TEXT NOT NULL,
	created_at BIGINT NOT NULL,
	updated_at BIGINT NOT NULL,
	PRIMARY KEY (app_id, user_id, session_id)
)`

const (
	selectState = `SELECT state FROM telecom_sessions WHERE app_id = ? AND user_id = ? AND session_id = ?`

	insertState = `INSERT INTO telecom_sessions (app_id, user_id, session_id, state, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT (app_id, user_id, session_id) DO NOTHING`

	upsertState = `INSERT INTO telecom_sessions (app_id, user_id, session_id, state, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT (app_id, user_id, session_id)
DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`
)

// SQLStore persists sessions in SQLite or PostgreSQL. Every GetOrCreate
// reads the database, so callers serialize turns with a Locker.
type SQLStore struct {
	db     *sqlx.DB
	cb     *circuitbreaker.Breaker
	logger *zap.Logger
}

// NewSQLStore opens driverName ("sqlite" or "postgres") and creates the
// table if needed.
func NewSQLStore(ctx context.Context, driverName, dsn string, logger *zap.Logger) (*SQLStore, error) {
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	if driverName == "sqlite" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	store := NewSQLStoreFromDB(db, logger)
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	store.logger.Info("Session store initialized", zap.String("backend", driverName))
	return store, nil
}

// NewSQLStoreFromDB wraps an open handle without running migrations
func NewSQLStoreFromDB(db *sqlx.DB, logger *zap.Logger) *SQLStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := circuitbreaker.DatabaseSettings().Config(func(err error) bool {
		return !errors.Is(err, sql.ErrNoRows) && !errors.Is(err, context.Canceled)
	})
	return &SQLStore{
		db:     db,
		cb:     circuitbreaker.DefaultRegistry.NewBreaker("sql", "session-store", cfg, logger),
		logger: logger,
	}
}

// Migrate creates the sessions table
func (s *SQLStore) Migrate(ctx context.Context) error {
	return s.cb.Execute(ctx, func(ctx context.Context) error {
		if _, err := s.db.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("migrate sessions table: %w", err)
		}
		return nil
	})
}

// GetOrCreate implements Store
func (s *SQLStore) GetOrCreate(ctx context.Context, appID, userID, sessionID string) (*Session, error) {
	k := Key{AppID: appID, UserID: userID, SessionID: sessionID}
	if err := k.Validate(); err != nil {
		return nil, &Error{Op: "get_or_create", Key: k, Err: err}
	}

	sess, err := s.load(ctx, k)
	if err == nil {
		metrics.SessionCacheHits.Inc()
		return sess, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return nil, err
	}
	metrics.SessionCacheMisses.Inc()

	fresh := newSession(k, time.Now())
	data, err := json.Marshal(fresh)
	if err != nil {
		return nil, &Error{Op: "create", Key: k, Err: err}
	}
	var inserted int64
	err = s.cb.Execute(ctx, func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, s.db.Rebind(insertState),
			k.AppID, k.UserID, k.SessionID, string(data),
			fresh.CreatedAt.UnixNano(), fresh.UpdatedAt.UnixNano())
		if err != nil {
			return err
		}
		inserted, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return nil, &Error{Op: "create", Key: k, Err: err}
	}
	if inserted == 0 {
		// Lost the insert race; the winner's row is authoritative.
		return s.load(ctx, k)
	}
	metrics.SessionsCreated.Inc()
	return fresh, nil
}

func (s *SQLStore) load(ctx context.Context, k Key) (*Session, error) {
	var state string
	err := s.cb.Execute(ctx, func(ctx context.Context) error {
		return s.db.GetContext(ctx, &state, s.db.Rebind(selectState), k.AppID, k.UserID, k.SessionID)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, &Error{Op: "load", Key: k, Err: err}
	}
	var sess Session
	if err := json.Unmarshal([]byte(state), &sess); err != nil {
		return nil, &Error{Op: "load", Key: k, Err: fmt.Errorf("%w: %v", ErrInvalidSession, err)}
	}
	if sess.Scratch == nil {
		sess.Scratch = make(map[string]interface{})
	}
	return &sess, nil
}

// Save implements Store
func (s *SQLStore) Save(ctx context.Context, sess *Session) error {
	k := sess.Key()
	if err := k.Validate(); err != nil {
		return &Error{Op: "save", Key: k, Err: err}
	}
	sess.UpdatedAt = time.Now()
	data, err := json.Marshal(sess)
	if err != nil {
		return &Error{Op: "save", Key: k, Err: err}
	}
	err = s.cb.Execute(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, s.db.Rebind(upsertState),
			k.AppID, k.UserID, k.SessionID, string(data),
			sess.CreatedAt.UnixNano(), sess.UpdatedAt.UnixNano())
		return err
	})
	if err != nil {
		return &Error{Op: "save", Key: k, Err: err}
	}
	return nil
}

// Ping checks the database connection
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.cb.Execute(ctx, s.db.PingContext)
}

// Close implements Store
func (s *SQLStore) Close() error {
	return s.db.Close()
}
