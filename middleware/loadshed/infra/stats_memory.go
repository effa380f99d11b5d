package infra

import (
	"context"
	"sync"

	"equipment-loans/middleware/loadshed/domain"
)

// Counters agrupa contagens por resultado.
type Counters map[domain.Outcome]int64

// MemoryStatsStore é uma implementação simples em memória.
// Útil para testes e desenvolvimento.
//
// Não faz expiração e não é compartilhada entre instâncias.
type MemoryStatsStore struct {
	mu      sync.Mutex
	total   int64
	byRoute map[string]Counters
	byKey   map[string]Counters

	trackKeys bool
}

var _ domain.StatsStore = (*MemoryStatsStore)(nil)

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byRoute: make(map[string]Counters),
		byKey:   make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	outcome := ev.Outcome
	if outcome == "" {
		outcome = domain.OutcomeOK
	}
	route := ev.Method + " " + ev.Path

	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	bump(s.byRoute, route, outcome)
	if s.trackKeys {
		bump(s.byKey, string(ev.Key), outcome)
	}
	return nil
}

func bump(m map[string]Counters, k string, o domain.Outcome) {
	c, ok := m[k]
	if !ok {
		c = make(Counters)
		m[k] = c
	}
	c[o]++
}

func (s *MemoryStatsStore) TotalRequests(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total, nil
}

func (s *MemoryStatsStore) ByRoute() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneCounters(s.byRoute)
}

func (s *MemoryStatsStore) ByKey() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneCounters(s.byKey)
}

func cloneCounters(in map[string]Counters) map[string]Counters {
	out := make(map[string]Counters, len(in))
	for k, v := range in {
		c := make(Counters, len(v))
		for o, n := range v {
			c[o] = n
		}
		out[k] = c
	}
	return out
}
