package domain

// Source indica onde a resposta foi produzida.
type Source string

const (
	SourceCache    Source = "cache"
	SourceDatabase Source = "database"
	SourceQueue    Source = "queue"
)

// AdmissionVerdict é devolvido por pedido e nunca persistido.
type AdmissionVerdict struct {
	Accepted   bool
	Queued     bool
	InstanceID string
	Source     Source
	// EntryID só é preenchido para pedidos enfileirados.
	EntryID string
}

// DrainResult é o resultado de um tick de drenagem.
type DrainResult string

const (
	DrainBusy        DrainResult = "busy"
	DrainEmpty       DrainResult = "empty"
	DrainApplied     DrainResult = "applied"
	DrainDropped     DrainResult = "dropped"
	DrainUnavailable DrainResult = "unavailable"
)

// Observer recebe eventos de alívio de carga para métricas. Implementações
// devem ser baratas e seguras para uso concorrente.
type Observer interface {
	ObserveLoad(load int64)
	ObserveVerdict(v AdmissionVerdict, rejected bool)
	ObserveRead(src Source)
	ObserveDrain(r DrainResult)
}

// NopObserver descarta todos os eventos.
type NopObserver struct{}

func (NopObserver) ObserveLoad(int64)                     {}
func (NopObserver) ObserveVerdict(AdmissionVerdict, bool) {}
func (NopObserver) ObserveRead(Source)                    {}
func (NopObserver) ObserveDrain(DrainResult)              {}
