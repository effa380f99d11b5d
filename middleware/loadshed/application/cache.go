package application

import (
	"context"
	"encoding/json"
	"time"

	"equipment-loans/internal/log"
	"equipment-loans/middleware/loadshed/domain"
)

const DefaultCacheTTL = 30 * time.Second

// ReadThroughCache serve um valor de leitura frequente a partir de um snapshot
// compartilhado quando o chamador pede, e renova o snapshot a cada leitura da
// fonte. Quem decide usar o snapshot é o chamador (em geral pelo sinal de
// saturação).
type ReadThroughCache[T any] struct {
	Snapshots domain.SnapshotStore
	Key       string
	TTL       time.Duration
	Observer  domain.Observer
	Logger    log.FieldLogger
}

// Resolve devolve o valor e sua origem. Falhas do snapshot são logadas e nunca
// devolvidas; só erros do fetch chegam ao chamador.
func (c ReadThroughCache[T]) Resolve(
	ctx context.Context, useCache bool, fetch func(context.Context) (T, error),
) (T, domain.Source, error) {
	if c.TTL <= 0 {
		c.TTL = DefaultCacheTTL
	}
	if c.Key == "" {
		c.Key = domain.KeyInventoryCache
	}
	if c.Observer == nil {
		c.Observer = domain.NopObserver{}
	}
	if c.Logger == nil {
		c.Logger = log.NewDisabledLogger()
	}

	storeDown := c.Snapshots == nil
	if useCache && !storeDown {
		raw, ok, err := c.Snapshots.Load(ctx, c.Key)
		switch {
		case err != nil:
			storeDown = true
			c.Logger.Warn("snapshot store unavailable, reading source", log.Error(err))
		case ok:
			var v T
			if err := json.Unmarshal(raw, &v); err == nil {
				c.Observer.ObserveRead(domain.SourceCache)
				return v, domain.SourceCache, nil
			}
			c.Logger.Warn("discarding unreadable snapshot", log.String("key", c.Key), log.Error(err))
		}
	}

	v, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, domain.SourceDatabase, err
	}
	if !storeDown {
		c.store(ctx, v)
	}
	c.Observer.ObserveRead(domain.SourceDatabase)
	return v, domain.SourceDatabase, nil
}

func (c ReadThroughCache[T]) store(ctx context.Context, v T) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.Logger.Error("snapshot encode failed", log.Error(err))
		return
	}
	if err := c.Snapshots.Save(ctx, c.Key, raw, c.TTL); err != nil {
		c.Logger.Warn("snapshot store unavailable, skipping refresh", log.Error(err))
	}
}
