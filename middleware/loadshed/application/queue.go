package application

import (
	"context"
	"errors"
	"fmt"

	"equipment-loans/middleware/loadshed/domain"
)

// WriteQueue é a fila de escritas adiadas: push no fim, pop atômico no início,
// então drenagens concorrentes entre instâncias nunca dividem uma entrada.
// Não existe peek.
type WriteQueue struct {
	Store domain.QueueStore
	Key   string
}

func (q WriteQueue) key() string {
	if q.Key == "" {
		return domain.KeyPendingLoans
	}
	return q.Key
}

func (q WriteQueue) Enqueue(ctx context.Context, e domain.QueueEntry) error {
	if q.Store == nil {
		return errors.New("write queue: no store")
	}
	payload, err := domain.EncodeQueueEntry(e)
	if err != nil {
		return fmt.Errorf("encode queue entry: %w", err)
	}
	return q.Store.PushTail(ctx, q.key(), payload)
}

// DequeueOne remove a entrada mais antiga e devolve o payload cru.
// ok é false quando a fila está vazia.
func (q WriteQueue) DequeueOne(ctx context.Context) (payload []byte, ok bool, err error) {
	if q.Store == nil {
		return nil, false, errors.New("write queue: no store")
	}
	return q.Store.PopHead(ctx, q.key())
}

func (q WriteQueue) Depth(ctx context.Context) (int64, error) {
	if q.Store == nil {
		return 0, nil
	}
	return q.Store.Len(ctx, q.key())
}
