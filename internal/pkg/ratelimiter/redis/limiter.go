// Package redis implementa o limiter de janela fixa sobre Redis, compartilhado
// entre réplicas da API.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zapfesta/zapfesta/internal/pkg/ratelimiter"
)

// INCR + PEXPIRE atômicos: o primeiro hit da janela arma o TTL e os demais só
// incrementam. O retorno traz o contador e o TTL restante em ms.
var fixedWindow = redis.NewScript(`
local hits = redis.call("INCR", KEYS[1])
if hits == 1 then
    redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {hits, redis.call("PTTL", KEYS[1])}
`)

type RedisLimiter struct {
	client *redis.Client
}

func NewLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (*ratelimiter.Result, error) {
	vals, err := fixedWindow.Run(ctx, l.client, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("redis limiter: %w", err)
	}
	if len(vals) != 2 {
		return nil, errors.New("redis limiter: resposta inesperada do script")
	}

	hits, ttlMs := vals[0], vals[1]

	left := window
	if ttlMs >= 0 {
		left = time.Duration(ttlMs) * time.Millisecond
	}

	res := &ratelimiter.Result{
		Allowed:   hits <= int64(limit),
		Remaining: max(limit-int(hits), 0),
		Reset:     time.Now().Add(left),
	}
	if !res.Allowed {
		res.RetryAfter = left
	}
	return res, nil
}
