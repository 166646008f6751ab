package lock

import (
	"context"
	"time"
)

// Lock é um lock de exclusão mútua com expiração, usado para serializar
// o processamento de mensagens de uma mesma conversa.
type Lock interface {
	Release(ctx context.Context) error
}

// Locker cria locks nomeados. TryAcquire retorna acquired=false quando a
// chave já está em posse de outro dono.
type Locker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (Lock, bool, error)
}
