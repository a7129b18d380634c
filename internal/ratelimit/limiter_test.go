package ratelimit

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, capacity, refillPerSec float64) *Limiter {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewLimiter(client, capacity, refillPerSec)
}

func TestLimiter_AllowsWithinCapacity(t *testing.T) {
	l := newTestLimiter(t, 3, 1)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "example.com")
		require.NoError(t, err)
		require.True(t, res.Allowed, "request %d should be allowed", i)
	}
}

func TestLimiter_DeniesOnceExhausted(t *testing.T) {
	l := newTestLimiter(t, 1, 0)
	ctx := context.Background()

	res, err := l.Allow(ctx, "example.com")
	require.NoError(t, err)
	require.True(t, res.Allowed)

	res, err = l.Allow(ctx, "example.com")
	require.NoError(t, err)
	require.False(t, res.Allowed)
}

func TestLimiter_BucketsAreIndependentPerHost(t *testing.T) {
	l := newTestLimiter(t, 1, 0)
	ctx := context.Background()

	res, err := l.Allow(ctx, "a.example.com")
	require.NoError(t, err)
	require.True(t, res.Allowed)

	res, err = l.Allow(ctx, "b.example.com")
	require.NoError(t, err)
	require.True(t, res.Allowed)
}
