package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCacheWithClient(client, "test:"), mr
}

func TestRedisCache_GetSet(t *testing.T) {
	c, mr := newTestRedisCache(t)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "instrument:1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetWithTTL(ctx, "instrument:1", "payload", time.Minute))
	assert.True(t, mr.Exists("test:instrument:1"), "keys are namespaced")
	assert.Equal(t, time.Minute, mr.TTL("test:instrument:1"))

	v, ok, err := c.Get(ctx, "instrument:1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "payload", v)

	mr.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx, "instrument:1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_DeleteByPrefix(t *testing.T) {
	c, mr := newTestRedisCache(t)
	ctx := context.Background()

	for i := 0; i < scanBatchSize+50; i++ {
		require.NoError(t, mr.Set(fmt.Sprintf("test:customer:1:debts:p%d", i), "v"))
	}
	require.NoError(t, mr.Set("test:customer:1:summary", "v"))
	require.NoError(t, mr.Set("other:customer:1:debts", "v"))

	require.NoError(t, c.DeleteByPrefix(ctx, "customer:1:debts"))

	for _, k := range mr.Keys() {
		assert.NotContains(t, k, "test:customer:1:debts")
	}
	assert.True(t, mr.Exists("test:customer:1:summary"))
	assert.True(t, mr.Exists("other:customer:1:debts"), "other namespaces are untouched")
}

func TestRedisCache_Delete(t *testing.T) {
	c, mr := newTestRedisCache(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("test:a", "1"))
	require.NoError(t, mr.Set("test:b", "2"))

	require.NoError(t, c.Delete(ctx))
	require.NoError(t, c.Delete(ctx, "a", "missing"))

	assert.False(t, mr.Exists("test:a"))
	assert.True(t, mr.Exists("test:b"))
}

func TestRedisCache_ServerErrors(t *testing.T) {
	c, mr := newTestRedisCache(t)
	ctx := context.Background()

	mr.SetError("LOADING dataset")
	_, _, err := c.Get(ctx, "instrument:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "instrument:1")

	err = c.DeleteByPrefix(ctx, "customer:1:")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "customer:1:")
}
