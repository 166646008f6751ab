// Package ratelimiter define o contrato de janela fixa usado pela captação
// pública (por telefone, e-mail e IP) e pelas rotas autenticadas.
package ratelimiter

import (
	"context"
	"time"
)

// Result descreve o estado da janela após contar a requisição. RetryAfter só
// é preenchido quando a requisição foi negada.
type Result struct {
	Allowed    bool
	Remaining  int
	Reset      time.Time
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}
