package task

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const dequeueTimeout = 5 * time.Second

// Pool consome a fila com N workers e despacha para o handler registrado
// pelo tipo da tarefa.
type Pool struct {
	queue    Queue
	handlers map[string]Handler
	workers  int
	log      *zap.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewPool(queue Queue, workers int, log *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		queue:    queue,
		handlers: make(map[string]Handler),
		workers:  workers,
		log:      log,
	}
}

// Register associa um handler a um tipo de tarefa. Deve ser chamado antes de Start.
func (p *Pool) Register(taskType string, h Handler) {
	p.handlers[taskType] = h
}

func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	ctx, p.cancel = context.WithCancel(ctx)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	p.log.Info("task pool: workers iniciados", zap.Int("workers", p.workers))
}

func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
	p.log.Info("task pool: workers encerrados")
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		t, err := p.queue.Dequeue(ctx, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.Error("task pool: erro ao consumir fila", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if t == nil {
			continue
		}

		p.dispatch(ctx, *t)
	}
}

func (p *Pool) dispatch(ctx context.Context, t Task) {
	h, ok := p.handlers[t.Type]
	if !ok {
		p.log.Warn("task pool: tipo de tarefa sem handler",
			zap.String("type", t.Type),
			zap.String("taskId", t.ID),
		)
		return
	}

	if err := h(ctx, t); err != nil {
		p.log.Error("task pool: falha ao processar tarefa",
			zap.String("type", t.Type),
			zap.String("taskId", t.ID),
			zap.String("instanceId", t.InstanceID),
			zap.Error(err),
		)
		return
	}

	p.log.Debug("task pool: tarefa concluída",
		zap.String("type", t.Type),
		zap.String("taskId", t.ID),
	)
}
