// Package retry envolve cenkalti/backoff para os poucos pontos que podem
// repetir: conexões na inicialização. Caminhos de requisição nunca repetem.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// IsRetryable diz se vale tentar de novo.
type IsRetryable func(error) bool

// Func executa um trabalho que pode ser repetido.
type Func func(ctx context.Context) error

// ExponentialPolicy repete até maxAttempts vezes com espera exponencial.
type ExponentialPolicy struct {
	InitialInterval time.Duration
	MaxAttempts     int
}

func (p ExponentialPolicy) newBackOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		eb.InitialInterval = p.InitialInterval
	}
	var bf backoff.BackOff = eb
	if p.MaxAttempts > 0 {
		bf = backoff.WithMaxRetries(eb, uint64(p.MaxAttempts))
	}
	bf.Reset()
	return bf
}

// Do executa fn até dar certo, a política desistir ou ctx terminar.
// notify pode ser nil.
func Do(ctx context.Context, p ExponentialPolicy, isRetryable IsRetryable, notify backoff.Notify, fn Func) error {
	bctx := backoff.WithContext(p.newBackOff(), ctx)
	op := func() error {
		err := fn(bctx.Context())
		if err != nil && isRetryable != nil && !isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.RetryNotify(op, bctx, notify)
}
