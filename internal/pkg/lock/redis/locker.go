package redis

import (
	"context"
	"time"

	"github.com/zapfesta/zapfesta/internal/pkg/lock"
	storageredis "github.com/zapfesta/zapfesta/internal/storage/redis"
)

type RedisLocker struct {
	client *storageredis.Client
}

func NewLocker(client *storageredis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (lock.Lock, bool, error) {
	rl := storageredis.NewLock(l.client, key, ttl)
	acquired, err := rl.Acquire(ctx)
	if err != nil {
		return nil, false, err
	}
	if !acquired {
		return nil, false, nil
	}
	return rl, true, nil
}
