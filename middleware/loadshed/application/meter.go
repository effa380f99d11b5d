package application

import (
	"context"
	"time"

	"equipment-loans/internal/log"
	"equipment-loans/middleware/loadshed/domain"
)

const (
	DefaultSaturationThreshold = 50
	DefaultSaturationWindow    = 60 * time.Second
)

// SaturationMeter conta as requisições recentes à classe quente de endpoints em
// um contador compartilhado que expira sozinho.
//
// Toda falha do store é tratada como "sem carga": o medidor nunca trava o
// processamento normal porque o backend do contador caiu.
type SaturationMeter struct {
	Counters  domain.CounterStore
	Key       string
	Window    time.Duration
	Threshold int64
	Observer  domain.Observer
	Logger    log.FieldLogger
}

func (m SaturationMeter) withDefaults() SaturationMeter {
	if m.Key == "" {
		m.Key = domain.KeyHotRequestCount
	}
	if m.Window <= 0 {
		m.Window = DefaultSaturationWindow
	}
	if m.Threshold <= 0 {
		m.Threshold = DefaultSaturationThreshold
	}
	if m.Observer == nil {
		m.Observer = domain.NopObserver{}
	}
	if m.Logger == nil {
		m.Logger = log.NewDisabledLogger()
	}
	return m
}

// RecordRequest conta uma requisição e devolve a contagem dentro da janela.
func (m SaturationMeter) RecordRequest(ctx context.Context) int64 {
	m = m.withDefaults()
	if m.Counters == nil {
		return 0
	}
	n, err := m.Counters.Incr(ctx, m.Key, m.Window)
	if err != nil {
		m.Logger.Warn("saturation counter unavailable, assuming no load", log.Error(err))
		return 0
	}
	m.Observer.ObserveLoad(n)
	return n
}

// Load lê a contagem atual sem incrementar.
func (m SaturationMeter) Load(ctx context.Context) int64 {
	m = m.withDefaults()
	if m.Counters == nil {
		return 0
	}
	n, err := m.Counters.Count(ctx, m.Key)
	if err != nil {
		m.Logger.Warn("saturation counter unavailable, assuming no load", log.Error(err))
		return 0
	}
	return n
}

// Saturated aplica o limiar a uma contagem já lida.
func (m SaturationMeter) Saturated(load int64) bool {
	return load > m.withDefaults().Threshold
}

func (m SaturationMeter) IsSaturated(ctx context.Context) bool {
	return m.Saturated(m.Load(ctx))
}
