package loadshed

import (
	"context"
	"net/http"

	"equipment-loans/middleware/loadshed/application"
)

type saturationKey struct{}

// Saturation é o sinal calculado para a requisição corrente.
type Saturation struct {
	Load      int64
	Saturated bool
}

// SaturationFromContext devolve o sinal gravado pelo SaturationMiddleware.
// Sem middleware, ok é false.
func SaturationFromContext(ctx context.Context) (s Saturation, ok bool) {
	s, ok = ctx.Value(saturationKey{}).(Saturation)
	return s, ok
}

// SaturationMiddleware conta a requisição no medidor compartilhado e guarda o
// sinal no contexto. Vai apenas nas rotas da classe quente.
func SaturationMiddleware(meter application.SaturationMeter) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			load := meter.RecordRequest(r.Context())
			sig := Saturation{Load: load, Saturated: meter.Saturated(load)}
			w.Header().Set("X-Saturation-Load", formatInt64(load))

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), saturationKey{}, sig)))
		})
	}
}
