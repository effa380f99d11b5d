package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"equipment-loans/internal/log"
	"equipment-loans/middleware/loadshed/domain"
)

// SaturationSignal informa se o sistema está saturado agora.
type SaturationSignal interface {
	IsSaturated(ctx context.Context) bool
}

// Admission encaminha cada pedido para o commit síncrono ou, enquanto saturado,
// para a fila de escritas adiadas.
//
// A leitura da saturação e o enqueue/commit seguinte não são atômicos: um pedido
// que cruza o limiar pode cair de qualquer lado. A fonte da verdade revalida
// todo commit, então isso só muda quando a escrita acontece.
type Admission struct {
	Signal     SaturationSignal
	Queue      WriteQueue
	Loans      domain.LoanStore
	InstanceID string

	Now      func() time.Time
	NewID    func() string
	Observer domain.Observer
	Logger   log.FieldLogger
}

func (a Admission) withDefaults() Admission {
	if a.Now == nil {
		a.Now = time.Now
	}
	if a.NewID == nil {
		a.NewID = uuid.NewString
	}
	if a.Observer == nil {
		a.Observer = domain.NopObserver{}
	}
	if a.Logger == nil {
		a.Logger = log.NewDisabledLogger()
	}
	return a
}

// Admit decide e executa um pedido. O erro é não nulo para rejeições
// (domain.IsRejection) e para falhas da fonte da verdade.
// Pedidos saturados não são pré-validados; a validação ocorre na drenagem.
func (a Admission) Admit(ctx context.Context, req domain.LoanRequest) (domain.AdmissionVerdict, error) {
	a = a.withDefaults()
	logger := a.Logger.With(log.String("requester", req.RequesterEmail), log.Int64("equipment_id", req.EquipmentID))

	if a.Signal != nil && a.Signal.IsSaturated(ctx) {
		entry := domain.QueueEntry{
			ID:             a.NewID(),
			RequesterEmail: req.RequesterEmail,
			EquipmentID:    req.EquipmentID,
			Quantity:       req.Quantity,
			SubmittedAt:    a.Now().UTC(),
			OriginInstance: a.InstanceID,
		}
		err := a.Queue.Enqueue(ctx, entry)
		if err == nil {
			v := domain.AdmissionVerdict{
				Accepted:   true,
				Queued:     true,
				InstanceID: a.InstanceID,
				Source:     domain.SourceQueue,
				EntryID:    entry.ID,
			}
			logger.Warn("instance saturated, loan request queued", log.String("entry_id", entry.ID))
			a.Observer.ObserveVerdict(v, false)
			return v, nil
		}
		logger.Warn("deferred queue unavailable, processing synchronously", log.Error(err))
	}

	if err := a.Commit(ctx, req); err != nil {
		v := domain.AdmissionVerdict{InstanceID: a.InstanceID, Source: domain.SourceDatabase}
		if domain.IsRejection(err) {
			a.Observer.ObserveVerdict(v, true)
			logger.Info("loan request rejected", log.Error(err))
		}
		return v, err
	}

	v := domain.AdmissionVerdict{Accepted: true, InstanceID: a.InstanceID, Source: domain.SourceDatabase}
	a.Observer.ObserveVerdict(v, false)
	return v, nil
}

// Commit é o caminho síncrono comum à admissão normal e à drenagem. Valida o
// empréstimo ativo contra a fonte da verdade e faz o commit; o store confere as
// invariantes de novo dentro da transação.
func (a Admission) Commit(ctx context.Context, req domain.LoanRequest) error {
	if a.Loans == nil {
		return errors.New("admission: no loan store")
	}
	has, err := a.Loans.HasActiveLoan(ctx, req.RequesterEmail)
	if err != nil {
		return fmt.Errorf("check active loan: %w", err)
	}
	if has {
		return domain.ErrActiveLoan
	}
	if err := a.Loans.CommitLoan(ctx, req); err != nil {
		return fmt.Errorf("commit loan: %w", err)
	}
	return nil
}
