package application

import (
	"context"
	"errors"
	"time"

	"equipment-loans/middleware/loadshed/domain"
)

// ErrNoSlot é retornado quando nenhuma vaga foi obtida dentro do prazo.
var ErrNoSlot = errors.New("no in-flight slot available")

// SlotGate limita as requisições em voo de uma instância, sem saber nada
// sobre HTTP.
type SlotGate struct {
	Pool domain.SlotPool
	// Wait <= 0 espera até o ctx cancelar.
	Wait time.Duration
}

// Enter tenta ocupar uma vaga. Em caso de sucesso, leave deve ser chamado
// exatamente uma vez.
func (g SlotGate) Enter(ctx context.Context) (leave func(), err error) {
	if g.Pool == nil {
		return func() {}, nil
	}

	if g.Wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Wait)
		defer cancel()
	}
	release, ok := g.Pool.Acquire(ctx)
	if !ok {
		return nil, ErrNoSlot
	}
	return release, nil
}
