package loadshed

import (
	"net/http"
	"time"

	"equipment-loans/middleware/loadshed/application"
	"equipment-loans/middleware/loadshed/domain"
)

type ThrottleOptions struct {
	Store              domain.ThrottleStore
	KeyFn              KeyFunc
	KeyHeader          string
	TrustXForwardedFor bool
	RejectStatus       int
	RetryAfter         time.Duration
	AddThrottleHeaders bool
}

type rateInfo interface {
	RPS() float64
	Burst() int
}

// ThrottleMiddleware limita a taxa por solicitante. Sem Store, é um no-op.
func ThrottleMiddleware(opts ThrottleOptions) func(next http.Handler) http.Handler {
	if opts.Store == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.KeyFn == nil {
		opts.KeyFn = RequesterKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}

	svc := application.RequesterThrottle{
		Store:      opts.Store,
		RetryAfter: opts.RetryAfter,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)

			if opts.AddThrottleHeaders {
				w.Header().Set("X-RateLimit-Key", key)
				if ri, ok := opts.Store.(rateInfo); ok {
					w.Header().Set("X-RateLimit-RPS", formatFloat(ri.RPS()))
					w.Header().Set("X-RateLimit-Burst", formatInt(ri.Burst()))
				}
			}

			dec := svc.Decide(domain.Key(key))
			if !dec.Allowed {
				w.Header().Set("Retry-After", retryAfterSeconds(dec.RetryAfter.Seconds()))
				respondError(w, opts.RejectStatus, http.StatusText(opts.RejectStatus), nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
