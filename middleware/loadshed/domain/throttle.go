package domain

import (
	"context"
	"time"
)

// Key identifica quem está fazendo a requisição (e-mail do solicitante, IP...).
type Key string

// Throttle decide se uma ação de um solicitante é permitida agora.
//
// Diferente de um Allow() simples, devolve também quanto tempo falta até a
// próxima ficha, para o Retry-After refletir o bucket de verdade.
type Throttle interface {
	Admit(now time.Time) (ok bool, wait time.Duration)
}

// ThrottleStore obtém um Throttle por chave.
// A implementação pode manter cache, TTL, etc.
type ThrottleStore interface {
	For(Key) Throttle
}

type Decision struct {
	Allowed bool
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}

// SlotPool representa um recurso com capacidade finita (requisições em voo).
//
// Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar. Ao adquirir,
// retorna uma função de release que deve ser chamada exatamente uma vez.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}
