package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zapfesta/zapfesta/internal/pkg/lock"
)

type entry struct {
	owner     string
	expiresAt time.Time
}

type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]entry
}

func NewLocker() *MemoryLocker {
	return &MemoryLocker{
		locks: make(map[string]entry),
	}
}

func (l *MemoryLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (lock.Lock, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if cur, ok := l.locks[key]; ok && now.Before(cur.expiresAt) {
		return nil, false, nil
	}

	owner := uuid.New().String()
	l.locks[key] = entry{owner: owner, expiresAt: now.Add(ttl)}

	return &memoryLock{locker: l, key: key, owner: owner}, true, nil
}

type memoryLock struct {
	locker *MemoryLocker
	key    string
	owner  string
}

func (m *memoryLock) Release(ctx context.Context) error {
	m.locker.mu.Lock()
	defer m.locker.mu.Unlock()

	// Só remove se ainda formos o dono (o TTL pode ter expirado no meio).
	if cur, ok := m.locker.locks[m.key]; ok && cur.owner == m.owner {
		delete(m.locker.locks, m.key)
	}
	return nil
}
