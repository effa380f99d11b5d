package domain

import (
	"context"
	"time"
)

// Outcome classifica o resultado de uma requisição para as estatísticas.
type Outcome string

const (
	OutcomeOK        Outcome = "ok"
	OutcomeQueued    Outcome = "queued"
	OutcomeRejected  Outcome = "rejected"
	OutcomeThrottled Outcome = "throttled"
	OutcomeError     Outcome = "error"
)

// StatsEvent representa uma requisição atendida pela API.
//
// Cuidado com cardinalidade: Path deve ser o padrão da rota
// (ex.: /api/loans/return/{loanId}), nunca a URL crua.
type StatsEvent struct {
	Key     Key
	Outcome Outcome

	Method string
	Path   string

	At time.Time
}

// StatsStore persiste as estatísticas da API.
//
// O middleware trata erro como best-effort (não derruba request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
	// TotalRequests devolve o contador cumulativo de requisições, compartilhado
	// entre instâncias.
	TotalRequests(ctx context.Context) (int64, error)
}
