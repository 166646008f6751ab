package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zapfesta/zapfesta/internal/config"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	client, err := New(config.RedisConfig{Addr: mr.Addr(), Enabled: true}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestLockAcquireRelease(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	l1 := NewLock(client, "bot:conversa:c1", time.Minute)
	ok, err := l1.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	l2 := NewLock(client, "bot:conversa:c1", time.Minute)
	ok, err = l2.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l1.Release(ctx))

	ok, err = l2.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLockReleaseOnlyByOwner(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	l1 := NewLock(client, "k", 50*time.Millisecond)
	ok, err := l1.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// O TTL expira e outro dono assume a chave.
	mr.FastForward(time.Second)

	l2 := NewLock(client, "k", time.Minute)
	ok, err = l2.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// O release do primeiro dono não derruba o lock do segundo.
	require.NoError(t, l1.Release(ctx))

	l3 := NewLock(client, "k", time.Minute)
	ok, err = l3.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
