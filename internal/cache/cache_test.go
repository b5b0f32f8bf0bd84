package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"SpreadSync/internal/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// closedAddr nothing listens on port 1.
const closedAddr = "127.0.0.1:1"

func quietLogger() (*logrus.Logger, *test.Hook) {
	return test.NewNullLogger()
}

func TestNewWithoutAddressIsNoop(t *testing.T) {
	logger, _ := quietLogger()
	c, closeFn := New(config.RedisConfig{}, logger)
	assert.IsType(t, Noop{}, c)
	assert.NoError(t, closeFn())

	c.Set(context.Background(), "k", "v")
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestNewUnreachableRedisFallsBackToNoop(t *testing.T) {
	logger, hook := quietLogger()
	c, closeFn := New(config.RedisConfig{Addr: closedAddr}, logger)
	assert.IsType(t, Noop{}, c)
	assert.NoError(t, closeFn())

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, closedAddr, hook.LastEntry().Data["addr"])
}

func TestRedisBackendErrorsAreMisses(t *testing.T) {
	logger, hook := quietLogger()
	client := redis.NewClient(&redis.Options{Addr: closedAddr, MaxRetries: -1, DialTimeout: time.Second})
	t.Cleanup(func() { _ = client.Close() })
	r := NewRedis(client, 0, logger)
	assert.Equal(t, 15*time.Minute, r.ttl)

	ctx := context.Background()
	r.Set(ctx, "report:weekly", "text")
	val, ok := r.Get(ctx, "report:weekly")
	assert.False(t, ok)
	assert.Empty(t, val)

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "cache set failed", entries[0].Message)
	assert.Equal(t, "cache get failed", entries[1].Message)
	assert.Equal(t, "report:weekly", entries[1].Data["key"])
}

// REDIS_ADDR points the round trip at a live server.
func TestRedisRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	logger, hook := quietLogger()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()
	require.NoError(t, client.Ping(ctx).Err())

	r := NewRedis(client, time.Minute, logger)
	key := Key("test", uuid.NewString())
	t.Cleanup(func() { client.Del(ctx, keyPrefix+key) })

	_, ok := r.Get(ctx, key)
	assert.False(t, ok)

	r.Set(ctx, key, "SELECT 1")
	val, ok := r.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, "SELECT 1", val)

	raw, err := client.Get(ctx, keyPrefix+key).Result()
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", raw)
	_, err = client.Get(ctx, key).Result()
	assert.ErrorIs(t, err, redis.Nil)

	ttl, err := client.TTL(ctx, keyPrefix+key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)
	assert.LessOrEqual(t, ttl, time.Minute)

	// a plain miss is not logged
	assert.Empty(t, hook.AllEntries())
}

func TestKey(t *testing.T) {
	assert.Equal(t, "report:weekly:2024-09-05:3", Key("report", "weekly", "2024-09-05", 3))
	assert.Equal(t, "", Key())
}
