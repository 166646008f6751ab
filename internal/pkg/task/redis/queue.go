package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zapfesta/zapfesta/internal/pkg/task"
	storageredis "github.com/zapfesta/zapfesta/internal/storage/redis"
)

// RedisQueue mantém as tarefas em uma lista Redis, sobrevivendo a reinícios.
type RedisQueue struct {
	client *storageredis.Client
	key    string
}

func NewQueue(client *storageredis.Client, key string) *RedisQueue {
	if key == "" {
		key = "zapfesta:tasks"
	}
	return &RedisQueue{client: client, key: key}
}

func (q *RedisQueue) Enqueue(ctx context.Context, t task.Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("queue enqueue: marshal: %w", err)
	}

	if err := q.client.RDB().LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}

	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*task.Task, error) {
	result, err := q.client.RDB().BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Timeout, sem tarefas
		}
		return nil, fmt.Errorf("queue dequeue: %w", err)
	}

	if len(result) < 2 {
		return nil, fmt.Errorf("queue dequeue: resultado inválido")
	}

	var t task.Task
	if err := json.Unmarshal([]byte(result[1]), &t); err != nil {
		return nil, fmt.Errorf("queue dequeue: unmarshal: %w", err)
	}

	return &t, nil
}

func (q *RedisQueue) Size(ctx context.Context) (int64, error) {
	return q.client.RDB().LLen(ctx, q.key).Result()
}
