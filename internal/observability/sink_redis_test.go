package observability

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRedisStreamSinkAppendsEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	sink := NewRedisStreamSink(client, "test:audit", 100)
	rec := NewRecorder(zaptest.NewLogger(t), WithSink(sink, 16))

	rec.LogEvent("orchestrator", EventStart, map[string]interface{}{"customer_id": "CUST001"})
	rec.LogEvent("orchestrator", EventSuccess, nil)
	require.NoError(t, rec.Close())

	ctx := context.Background()
	entries, err := client.XRange(ctx, "test:audit", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	first := entries[0].Values
	assert.Equal(t, "orchestrator", first["source"])
	assert.Equal(t, "START", first["event_type"])
	assert.Equal(t, "1", first["seq"])
	assert.JSONEq(t, `{"customer_id":"CUST001"}`, first["details"].(string))
}

func TestDialRedisStreamSinkFailsOnBadAddress(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := DialRedisStreamSink(context.Background(), addr, "", 0, "", 0)
	assert.Error(t, err)
}
