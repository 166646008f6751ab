// Package memory implementa o limiter de janela fixa em memória de processo,
// usado quando o Redis está desabilitado. Os contadores não sobrevivem a
// restart nem valem entre réplicas.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/zapfesta/zapfesta/internal/pkg/ratelimiter"
)

type counter struct {
	hits  int
	reset time.Time
}

type MemoryLimiter struct {
	mu       sync.Mutex
	counters map[string]*counter
}

func NewLimiter() *MemoryLimiter {
	l := &MemoryLimiter{counters: make(map[string]*counter)}
	go l.janitor()
	return l
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (*ratelimiter.Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	c := l.counters[key]
	if c == nil || now.After(c.reset) {
		c = &counter{reset: now.Add(window)}
		l.counters[key] = c
	}
	c.hits++

	res := &ratelimiter.Result{
		Allowed:   c.hits <= limit,
		Remaining: max(limit-c.hits, 0),
		Reset:     c.reset,
	}
	if !res.Allowed {
		res.RetryAfter = c.reset.Sub(now)
	}
	return res, nil
}

func (l *MemoryLimiter) janitor() {
	for range time.Tick(time.Minute) {
		now := time.Now()
		l.mu.Lock()
		for k, c := range l.counters {
			if now.After(c.reset) {
				delete(l.counters, k)
			}
		}
		l.mu.Unlock()
	}
}
