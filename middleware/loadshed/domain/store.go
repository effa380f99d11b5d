package domain

import (
	"context"
	"time"
)

// Portas do store compartilhado. Todas as instâncias falam com o mesmo backend
// por aqui, nunca por estado em processo: sinal de saturação, snapshot e fila
// precisam ser consistentes entre instâncias.

// CounterStore guarda contadores que expiram sozinhos.
type CounterStore interface {
	// Incr incrementa key e (re)aplica window como TTL no mesmo passo atômico.
	// Devolve o valor após o incremento.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
	// Count lê key sem efeitos colaterais. Chave ausente vale 0.
	Count(ctx context.Context, key string) (int64, error)
}

// SnapshotStore guarda valores serializados com TTL próprio.
type SnapshotStore interface {
	// Load devolve ok=false quando não há valor válido.
	Load(ctx context.Context, key string) (val []byte, ok bool, err error)
	Save(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// QueueStore é uma lista compartilhada com operações atômicas nas pontas.
type QueueStore interface {
	PushTail(ctx context.Context, key string, payload []byte) error
	// PopHead remove e devolve atomicamente o payload mais antigo. Chamadas
	// concorrentes nunca recebem o mesmo payload.
	PopHead(ctx context.Context, key string) (payload []byte, ok bool, err error)
	Len(ctx context.Context, key string) (int64, error)
}

// Chaves do store compartilhado.
const (
	KeyHotRequestCount = "available_request_count"
	KeyInventoryCache  = "available_equipment"
	KeyPendingLoans    = "pending_loan_queue"
	KeyTotalRequests   = "total_requests"
)
