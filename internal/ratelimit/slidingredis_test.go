package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestSlidingRedisAllow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	limiter := SlidingRedis{Client: client, Prefix: "test:"}

	ctx := context.Background()
	window := 2 * time.Second
	max := 2

	for i := 0; i < max; i++ {
		allowed, remaining, _, err := limiter.Allow(ctx, "key", window, max)
		require.NoError(t, err)
		require.True(t, allowed, "request %d", i)
		require.Equal(t, max-(i+1), remaining)
	}

	allowed, remaining, _, err := limiter.Allow(ctx, "key", window, max)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Zero(t, remaining)

	mr.FastForward(window)

	allowed, _, _, err = limiter.Allow(ctx, "key", window, max)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestMemoryAllow(t *testing.T) {
	limiter := NewMemory("mem:")
	ctx := context.Background()

	allowed, remaining, reset, err := limiter.Allow(ctx, "ip:1", time.Minute, 2)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 1, remaining)
	require.True(t, reset.After(time.Now()))

	allowed, _, _, err = limiter.Allow(ctx, "ip:1", time.Minute, 2)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, remaining, _, err = limiter.Allow(ctx, "ip:1", time.Minute, 2)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Zero(t, remaining)

	allowed, _, _, err = limiter.Allow(ctx, "ip:2", time.Minute, 2)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestLimiterDisabledWhenMaxZero(t *testing.T) {
	allowed, _, _, err := SlidingRedis{}.Allow(context.Background(), "k", time.Second, 0)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, _, _, err = NewMemory("").Allow(context.Background(), "k", time.Second, 0)
	require.NoError(t, err)
	require.True(t, allowed)
}
