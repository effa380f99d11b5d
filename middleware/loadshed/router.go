package loadshed

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterOptions struct {
	API *API

	Throttle ThrottleOptions
	InFlight InFlightOptions
	Stats    StatsOptions

	// Metrics é servido em /metrics quando não nulo (ex.: promhttp.Handler()).
	Metrics http.Handler
}

// NewRouter monta as rotas da API.
//
// Ordem: stats envolve tudo em /api (inclusive 429/503), o limite de requisições
// em voo vem antes do throttle, e só as leituras de inventário contam para a
// saturação.
func NewRouter(opts RouterOptions) http.Handler {
	api := opts.API

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", api.Healthz)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(StatsMiddleware(opts.Stats))
		r.Use(InFlightMiddleware(opts.InFlight))

		r.Get("/system-report", api.SystemReport)

		r.With(ThrottleMiddleware(opts.Throttle)).Post("/loans", api.SubmitLoan)
		r.With(SaturationMiddleware(api.Meter)).Get("/loans/available", api.AvailableInventory)
		r.Put("/loans/return/{loanId}", api.ReturnLoan)
	})

	return r
}
