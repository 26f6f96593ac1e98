package holiday

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisCache(t *testing.T) (*RedisYearCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisYearCache(client, "holidays:", time.Hour), mr
}

func TestLocalYearCache(t *testing.T) {
	ctx := context.Background()
	c := NewLocalYearCache(time.Hour, time.Minute)

	_, ok := c.Get(ctx, "JP", 2026)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "jp", 2026, map[string]string{"2026-10-12": "Sports Day"}))
	got, ok := c.Get(ctx, "JP", 2026)
	assert.True(t, ok)
	assert.Equal(t, "Sports Day", got["2026-10-12"])
}

func TestRedisYearCache(t *testing.T) {
	ctx := context.Background()
	c, mr := setupRedisCache(t)

	_, ok := c.Get(ctx, "JP", 2026)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "JP", 2026, map[string]string{"2026-10-12": "Sports Day"}))
	assert.True(t, mr.Exists("holidays:JP:2026"))

	got, ok := c.Get(ctx, "JP", 2026)
	require.True(t, ok)
	assert.Equal(t, map[string]string{"2026-10-12": "Sports Day"}, got)

	mr.FastForward(2 * time.Hour)
	_, ok = c.Get(ctx, "JP", 2026)
	assert.False(t, ok)
}

func TestTieredYearCachePromotes(t *testing.T) {
	ctx := context.Background()
	l2, _ := setupRedisCache(t)
	l1 := NewLocalYearCache(time.Hour, time.Minute)
	tiered := NewTieredYearCache(l1, l2)

	require.NoError(t, l2.Set(ctx, "DE", 2026, map[string]string{"2026-10-03": "Tag der Deutschen Einheit"}))

	got, ok := tiered.Get(ctx, "DE", 2026)
	require.True(t, ok)
	assert.Equal(t, "Tag der Deutschen Einheit", got["2026-10-03"])

	promoted, ok := l1.Get(ctx, "DE", 2026)
	assert.True(t, ok)
	assert.Equal(t, got, promoted)

	require.NoError(t, tiered.Set(ctx, "US", 2026, map[string]string{"2026-07-04": "Independence Day"}))
	_, ok = l2.Get(ctx, "US", 2026)
	assert.True(t, ok)
}
