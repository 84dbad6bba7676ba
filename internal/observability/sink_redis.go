package observability

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultStreamKey is the Redis stream that holds the audit trail
const DefaultStreamKey = "telecom:audit:events"

// RedisStreamSink appends events to a capped Redis stream
type RedisStreamSink struct {
	client *redis.Client
	stream string
	maxLen int64
	owned  bool
}

// NewRedisStreamSink writes to stream, trimming it to roughly maxLen entries.
// The client is not closed by the sink.
func NewRedisStreamSink(client *redis.Client, stream string, maxLen int64) *RedisStreamSink {
	if stream == "" {
		stream = DefaultStreamKey
	}
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &RedisStreamSink{client: client, stream: stream, maxLen: maxLen}
}

// DialRedisStreamSink connects to addr and returns a sink that owns the client
func DialRedisStreamSink(ctx context.Context, addr, password string, db int, stream string, maxLen int64) (*RedisStreamSink, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("audit stream redis ping: %w", err)
	}
	s := NewRedisStreamSink(client, stream, maxLen)
	s.owned = true
	return s, nil
}

// Write implements Sink
func (s *RedisStreamSink) Write(ctx context.Context, ev Event) error {
	details, err := json.Marshal(ev.Details)
	if err != nil {
		return fmt.Errorf("marshal event details: %w", err)
	}
	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"seq":        ev.Seq,
			"source":     ev.Source,
			"event_type": string(ev.Type),
			"details":    string(details),
			"timestamp":  ev.Timestamp.UnixNano(),
		},
	}).Err()
}

// Close implements Sink
func (s *RedisStreamSink) Close() error {
	if s.owned {
		return s.client.Close()
	}
	return nil
}
