package loadshed

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"equipment-loans/internal/log"
	"equipment-loans/middleware/loadshed/domain"
)

type StatsOptions struct {
	Store  domain.StatsStore
	KeyFn  KeyFunc
	Logger log.FieldLogger
}

// StatsMiddleware registra cada requisição no StatsStore depois da resposta.
// Erros do store são apenas logados.
func StatsMiddleware(opts StatsOptions) func(next http.Handler) http.Handler {
	if opts.Store == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.KeyFn == nil {
		opts.KeyFn = RequesterKeyFunc(HeaderRequester, false)
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			ev := domain.StatsEvent{
				Key:     domain.Key(opts.KeyFn(r)),
				Outcome: outcomeOf(sw.status),
				Method:  r.Method,
				Path:    routePattern(r),
				At:      time.Now(),
			}
			if err := opts.Store.Record(r.Context(), ev); err != nil {
				opts.Logger.Debug("stats record failed", log.Error(err))
			}
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func outcomeOf(status int) domain.Outcome {
	switch {
	case status == http.StatusAccepted:
		return domain.OutcomeQueued
	case status == http.StatusTooManyRequests:
		return domain.OutcomeThrottled
	case status >= 500:
		return domain.OutcomeError
	case status >= 400:
		return domain.OutcomeRejected
	}
	return domain.OutcomeOK
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
