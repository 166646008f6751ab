package memory

import (
	"context"
	"time"

	"github.com/zapfesta/zapfesta/internal/pkg/task"
)

// MemoryQueue é uma fila em canal, usada quando o Redis não está configurado.
type MemoryQueue struct {
	ch chan task.Task
}

func NewQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &MemoryQueue{
		ch: make(chan task.Task, capacity),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, t task.Task) error {
	select {
	case q.ch <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context, timeout time.Duration) (*task.Task, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case t := <-q.ch:
		return &t, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *MemoryQueue) Size(ctx context.Context) (int64, error) {
	return int64(len(q.ch)), nil
}
