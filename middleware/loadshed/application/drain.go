package application

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"equipment-loans/internal/log"
	"equipment-loans/middleware/loadshed/domain"
)

const (
	DefaultLowWaterMark  = 20
	DefaultDrainInterval = 3 * time.Second
)

// LoadReader lê a carga atual sem registrar requisição.
type LoadReader interface {
	Load(ctx context.Context) int64
}

// Committer aplica um pedido de forma síncrona.
type Committer interface {
	Commit(ctx context.Context, req domain.LoanRequest) error
}

// Drainer reaplica no máximo um pedido enfileirado por tick, e só enquanto a
// carga está abaixo da marca baixa (menor que o limiar de admissão, para o
// sistema não oscilar entre enfileirar e drenar).
//
// Falha na reaplicação descarta a entrada: o cliente já recebeu QUEUED e não
// há canal para um resultado posterior.
type Drainer struct {
	Meter    LoadReader
	Queue    WriteQueue
	Commit   Committer
	LowWater int64
	Observer domain.Observer
	Logger   log.FieldLogger
}

func (d Drainer) withDefaults() Drainer {
	if d.LowWater <= 0 {
		d.LowWater = DefaultLowWaterMark
	}
	if d.Observer == nil {
		d.Observer = domain.NopObserver{}
	}
	if d.Logger == nil {
		d.Logger = log.NewDisabledLogger()
	}
	return d
}

func (d Drainer) Tick(ctx context.Context) domain.DrainResult {
	d = d.withDefaults()
	res := d.tick(ctx)
	d.Observer.ObserveDrain(res)
	return res
}

func (d Drainer) tick(ctx context.Context) domain.DrainResult {
	if d.Meter != nil {
		if load := d.Meter.Load(ctx); load >= d.LowWater {
			d.Logger.Debug("drain skipped, load above low-water mark", log.Int64("load", load))
			return domain.DrainBusy
		}
	}

	payload, ok, err := d.Queue.DequeueOne(ctx)
	if err != nil {
		d.Logger.Warn("deferred queue unavailable", log.Error(err))
		return domain.DrainUnavailable
	}
	if !ok {
		return domain.DrainEmpty
	}

	entry, err := domain.DecodeQueueEntry(payload)
	if err != nil {
		d.Logger.Error("dropping undecodable queue entry", log.Error(err), log.String("payload", string(payload)))
		return domain.DrainDropped
	}
	logger := d.Logger.With(
		log.String("entry_id", entry.ID),
		log.String("requester", entry.RequesterEmail),
		log.Int64("equipment_id", entry.EquipmentID),
		log.String("origin_instance", entry.OriginInstance),
	)

	req, err := entry.Request()
	if err == nil {
		err = d.Commit.Commit(ctx, req)
	}
	if err != nil {
		logger.Error("replay failed, queued loan request dropped", log.Error(err))
		return domain.DrainDropped
	}
	logger.Info("queued loan request applied", log.Duration("queued_for", time.Since(entry.SubmittedAt)))
	return domain.DrainApplied
}

// DrainWorker roda um Drainer em intervalo fixo até ctx terminar. Cada instância
// roda o seu; o pop atômico impede que dividam entradas.
type DrainWorker struct {
	Drainer  Drainer
	Interval time.Duration
	Logger   log.FieldLogger
}

func (w DrainWorker) Run(ctx context.Context) (err error) {
	if w.Interval <= 0 {
		w.Interval = DefaultDrainInterval
	}
	if w.Logger == nil {
		w.Logger = log.NewDisabledLogger()
	}

	defer func() {
		if p := recover(); p != nil {
			const stackSize = 8192
			stack := make([]byte, stackSize)
			stack = stack[:runtime.Stack(stack, false)]
			w.Logger.Error(fmt.Sprintf("drain worker panic: %+v", p), log.String("stack", string(stack)))
			panic(p)
		}
		w.Logger.Info("drain worker stopped")
	}()

	w.Logger.Infof("running drain worker (interval=%s)...", w.Interval)

	t := time.NewTicker(w.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			w.Drainer.Tick(ctx)
		}
	}
}
