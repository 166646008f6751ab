package task

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Tipos de tarefa processados em segundo plano.
const (
	TypeSendMaterials = "send_materials"
	TypePersistMedia  = "persist_media"
	TypeNotifyFanout  = "notify_fanout"
)

// Task é uma unidade de trabalho enfileirada para processamento assíncrono.
type Task struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	InstanceID string            `json:"instanceId"`
	Payload    map[string]string `json:"payload"`
	CreatedAt  time.Time         `json:"createdAt"`
}

func New(taskType, instanceID string, payload map[string]string) Task {
	return Task{
		ID:         uuid.New().String(),
		Type:       taskType,
		InstanceID: instanceID,
		Payload:    payload,
		CreatedAt:  time.Now(),
	}
}

// Queue abstrai a fila de tarefas (memória ou Redis).
type Queue interface {
	Enqueue(ctx context.Context, t Task) error
	// Dequeue bloqueia até timeout; retorna nil quando não há tarefas.
	Dequeue(ctx context.Context, timeout time.Duration) (*Task, error)
	Size(ctx context.Context) (int64, error)
}

// Handler processa uma tarefa de um tipo registrado.
type Handler func(ctx context.Context, t Task) error
