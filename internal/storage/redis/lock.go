package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Libera a chave apenas se ainda pertence a quem a adquiriu: um lock cujo TTL
// expirou e foi retomado por outro dono não pode ser derrubado pelo antigo.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
end
return 0
`)

// Lock é um lock distribuído simples por SETNX com TTL, usado para serializar
// o processamento de mensagens de uma mesma conversa.
type Lock struct {
	client *Client
	key    string
	owner  string
	ttl    time.Duration
}

func NewLock(client *Client, key string, ttl time.Duration) *Lock {
	return &Lock{client: client, key: key, ttl: ttl}
}

func (l *Lock) Acquire(ctx context.Context) (bool, error) {
	l.owner = uuid.NewString()
	acquired, err := l.client.rdb.SetNX(ctx, l.key, l.owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("lock acquire: %w", err)
	}
	return acquired, nil
}

func (l *Lock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client.rdb, []string{l.key}, l.owner).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("lock release: %w", err)
	}
	return nil
}
