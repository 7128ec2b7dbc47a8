package redis

import (
	"context"
	"testing"
	"time"

	cache "simflow/internal/cache/iface"
	"simflow/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCache(t *testing.T) cache.Cache {
	if testing.Short() {
		t.Skip("skipping Redis test in short mode")
	}
	c, err := NewRedisCache(Config{Addr: "localhost:6379", KeyPrefix: "simflow:test:"}, logger.NewNopLogger())
	if err != nil {
		t.Skipf("Redis not reachable: %v", err)
	}
	return c
}

func TestBasicOperations(t *testing.T) {
	c := setupCache(t)
	defer c.Close()

	ctx := context.Background()

	t.Run("Set and Get", func(t *testing.T) {
		key := "basic"
		require.NoError(t, c.Set(ctx, key, "value", 0))
		defer c.Delete(ctx, key)

		got, err := c.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "value", got)
	})

	t.Run("Get missing key", func(t *testing.T) {
		_, err := c.Get(ctx, "missing")
		assert.ErrorIs(t, err, cache.ErrKeyNotFound)
	})

	t.Run("Set with TTL", func(t *testing.T) {
		key := "ttl"
		require.NoError(t, c.Set(ctx, key, "v", time.Second))

		time.Sleep(1500 * time.Millisecond)

		_, err := c.Get(ctx, key)
		assert.ErrorIs(t, err, cache.ErrKeyNotFound)
	})
}

func TestSetNXAndCompareAndDelete(t *testing.T) {
	c := setupCache(t)
	defer c.Close()

	ctx := context.Background()
	key := "guard"
	defer c.Delete(ctx, key)

	ok, err := c.SetNX(ctx, key, "owner-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, key, "owner-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	deleted, err := c.CompareAndDelete(ctx, key, "owner-b")
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = c.CompareAndDelete(ctx, key, "owner-a")
	require.NoError(t, err)
	assert.True(t, deleted)

	ok, err = c.SetNX(ctx, key, "owner-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCompareAndExpire(t *testing.T) {
	c := setupCache(t)
	defer c.Close()

	ctx := context.Background()
	key := "renewed"
	defer c.Delete(ctx, key)

	ok, err := c.SetNX(ctx, key, "owner-a", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	renewed, err := c.CompareAndExpire(ctx, key, "owner-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, renewed)

	renewed, err = c.CompareAndExpire(ctx, key, "owner-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, renewed)

	time.Sleep(1500 * time.Millisecond)

	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "owner-a", got)
}
