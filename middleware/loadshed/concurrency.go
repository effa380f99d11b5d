package loadshed

import (
	"net/http"
	"time"

	"equipment-loans/middleware/loadshed/application"
	"equipment-loans/middleware/loadshed/infra"
)

type InFlightOptions struct {
	Max          int
	RejectStatus int
	Wait         time.Duration
}

// InFlightMiddleware limita as requisições simultâneas da instância.
// Max <= 0 desliga o limite.
func InFlightMiddleware(opts InFlightOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}

	gate := application.SlotGate{
		Pool: infra.NewChanPool(opts.Max),
		Wait: opts.Wait,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			leave, err := gate.Enter(r.Context())
			if err != nil {
				respondError(w, opts.RejectStatus, http.StatusText(opts.RejectStatus), nil)
				return
			}
			defer leave()

			next.ServeHTTP(w, r)
		})
	}
}
