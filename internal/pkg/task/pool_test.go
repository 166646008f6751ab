package task_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zapfesta/zapfesta/internal/pkg/task"
	"github.com/zapfesta/zapfesta/internal/pkg/task/memory"
)

func TestPoolDispatchesByType(t *testing.T) {
	queue := memory.NewQueue(8)

	var mu sync.Mutex
	var handled []string
	done := make(chan struct{}, 8)

	pool := task.NewPool(queue, 2, zap.NewNop())
	pool.Register(task.TypeSendMaterials, func(ctx context.Context, tk task.Task) error {
		mu.Lock()
		handled = append(handled, tk.Payload["conversationId"])
		mu.Unlock()
		done <- struct{}{}
		return nil
	})
	pool.Start(context.Background())
	defer pool.Stop()

	for _, conv := range []string{"c1", "c2", "c3"} {
		require.NoError(t, queue.Enqueue(context.Background(), task.New(task.TypeSendMaterials, "inst-1", map[string]string{"conversationId": conv})))
	}

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timeout esperando tarefas")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"c1", "c2", "c3"}, handled)
}

func TestPoolIgnoresUnknownType(t *testing.T) {
	queue := memory.NewQueue(8)
	done := make(chan struct{}, 1)

	pool := task.NewPool(queue, 1, zap.NewNop())
	pool.Register(task.TypeSendMaterials, func(ctx context.Context, tk task.Task) error {
		done <- struct{}{}
		return nil
	})
	pool.Start(context.Background())
	defer pool.Stop()

	require.NoError(t, queue.Enqueue(context.Background(), task.New("tipo_desconhecido", "inst-1", nil)))
	require.NoError(t, queue.Enqueue(context.Background(), task.New(task.TypeSendMaterials, "inst-1", nil)))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tarefa conhecida não processada")
	}
}

func TestMemoryQueueTimeout(t *testing.T) {
	queue := memory.NewQueue(1)

	tk, err := queue.Dequeue(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, tk)
}

func TestMemoryQueueSize(t *testing.T) {
	queue := memory.NewQueue(4)

	require.NoError(t, queue.Enqueue(context.Background(), task.New(task.TypeSendMaterials, "inst-1", nil)))
	size, err := queue.Size(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, size)
}
