package application

import (
	"time"

	"equipment-loans/middleware/loadshed/domain"
)

// RequesterThrottle concentra a regra de limite por solicitante.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type RequesterThrottle struct {
	Store domain.ThrottleStore
	// RetryAfter é o mínimo recomendado quando bloquear.
	RetryAfter time.Duration
	Now        func() time.Time
}

func (s RequesterThrottle) Decide(key domain.Key) domain.Decision {
	if s.Store == nil {
		return domain.Decision{Allowed: true}
	}
	if s.RetryAfter <= 0 {
		s.RetryAfter = 1 * time.Second
	}
	if s.Now == nil {
		s.Now = time.Now
	}

	th := s.Store.For(key)
	if th == nil {
		return domain.Decision{Allowed: true}
	}
	ok, wait := th.Admit(s.Now())
	if ok {
		return domain.Decision{Allowed: true}
	}
	if wait < s.RetryAfter {
		wait = s.RetryAfter
	}
	return domain.Decision{Allowed: false, RetryAfter: wait}
}
