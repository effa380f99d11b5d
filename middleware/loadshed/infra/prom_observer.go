package infra

import (
	"github.com/prometheus/client_golang/prometheus"

	"equipment-loans/middleware/loadshed/domain"
)

// PromObserver exporta os eventos de load-shedding como métricas Prometheus.
type PromObserver struct {
	Load          prometheus.Gauge
	VerdictsTotal *prometheus.CounterVec
	ReadsTotal    *prometheus.CounterVec
	DrainsTotal   *prometheus.CounterVec
}

var _ domain.Observer = (*PromObserver)(nil)

// NewPromObserver cria os coletores; namespace é prefixado em todos os nomes.
func NewPromObserver(namespace string, constLabels prometheus.Labels) *PromObserver {
	return &PromObserver{
		Load: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "saturation_load",
			Help:        "Hot requests counted in the current saturation window, as last seen by this instance.",
			ConstLabels: constLabels,
		}),
		VerdictsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "admission_verdicts_total",
			Help:        "Loan admission verdicts by source and result.",
			ConstLabels: constLabels,
		}, []string{"source", "result"}),
		ReadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "inventory_reads_total",
			Help:        "Inventory reads by data source.",
			ConstLabels: constLabels,
		}, []string{"source"}),
		DrainsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "drain_ticks_total",
			Help:        "Drain worker ticks by result.",
			ConstLabels: constLabels,
		}, []string{"result"}),
	}
}

// MustRegister registra os coletores e entra em pânico em caso de erro.
func (o *PromObserver) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(o.Load, o.VerdictsTotal, o.ReadsTotal, o.DrainsTotal)
}

func (o *PromObserver) ObserveLoad(load int64) {
	o.Load.Set(float64(load))
}

func (o *PromObserver) ObserveVerdict(v domain.AdmissionVerdict, rejected bool) {
	result := "accepted"
	switch {
	case rejected:
		result = "rejected"
	case v.Queued:
		result = "queued"
	}
	o.VerdictsTotal.WithLabelValues(string(v.Source), result).Inc()
}

func (o *PromObserver) ObserveRead(src domain.Source) {
	o.ReadsTotal.WithLabelValues(string(src)).Inc()
}

func (o *PromObserver) ObserveDrain(r domain.DrainResult) {
	o.DrainsTotal.WithLabelValues(string(r)).Inc()
}
