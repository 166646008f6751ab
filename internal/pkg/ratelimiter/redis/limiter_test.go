package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewLimiter(client), mr
}

func TestAllowCountsPerKey(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "ingest:lead:5511999990000", 3, time.Hour)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "tentativa %d", i+1)
		assert.Equal(t, 2-i, res.Remaining)
	}

	res, err := l.Allow(ctx, "ingest:lead:5511999990000", 3, time.Hour)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Zero(t, res.Remaining)
}

func TestAllowWindowExpires(t *testing.T) {
	l, mr := newTestLimiter(t)
	ctx := context.Background()

	res, err := l.Allow(ctx, "k", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, res.Allowed)

	res, err = l.Allow(ctx, "k", 1, time.Minute)
	require.NoError(t, err)
	require.False(t, res.Allowed)

	mr.FastForward(2 * time.Minute)

	res, err = l.Allow(ctx, "k", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestAllowKeysAreIsolated(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	res, err := l.Allow(ctx, "ingest:lead:a", 1, time.Hour)
	require.NoError(t, err)
	require.True(t, res.Allowed)

	res, err = l.Allow(ctx, "ingest:lead:b", 1, time.Hour)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}
