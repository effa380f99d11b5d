package infra

import (
	"context"
	"sync"
	"time"

	"equipment-loans/middleware/loadshed/domain"
)

// MemoryStore é uma implementação em memória dos contratos de store
// compartilhado. Útil para testes e para rodar uma instância única sem Redis.
//
// Só é "compartilhada" dentro do processo: com mais de uma instância, use RedisStore.
type MemoryStore struct {
	mu     sync.Mutex
	now    func() time.Time
	values map[string]memoryValue
	lists  map[string][][]byte
	down   bool
}

type memoryValue struct {
	data      []byte
	counter   int64
	expiresAt time.Time
}

var (
	_ domain.CounterStore  = (*MemoryStore)(nil)
	_ domain.SnapshotStore = (*MemoryStore)(nil)
	_ domain.QueueStore    = (*MemoryStore)(nil)
)

type MemoryStoreOption func(*MemoryStore)

// WithClock troca o relógio usado para expirar chaves.
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) { s.now = now }
}

func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		now:    time.Now,
		values: make(map[string]memoryValue),
		lists:  make(map[string][][]byte),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetUnavailable simula a queda do store: todas as operações passam a falhar.
func (s *MemoryStore) SetUnavailable(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

// get devolve o valor vivo; chaves expiradas são removidas. Chamar com mu.
func (s *MemoryStore) get(key string) (memoryValue, bool) {
	v, ok := s.values[key]
	if !ok {
		return memoryValue{}, false
	}
	if !v.expiresAt.IsZero() && !s.now().Before(v.expiresAt) {
		delete(s.values, key)
		return memoryValue{}, false
	}
	return v, true
}

func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return 0, domain.ErrStoreUnavailable
	}

	v, _ := s.get(key)
	v.counter++
	if window > 0 {
		v.expiresAt = s.now().Add(window)
	}
	s.values[key] = v
	return v.counter, nil
}

func (s *MemoryStore) Count(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return 0, domain.ErrStoreUnavailable
	}

	v, _ := s.get(key)
	return v.counter, nil
}

func (s *MemoryStore) Load(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return nil, false, domain.ErrStoreUnavailable
	}

	v, ok := s.get(key)
	if !ok || v.data == nil {
		return nil, false, nil
	}
	return append([]byte(nil), v.data...), true, nil
}

func (s *MemoryStore) Save(_ context.Context, key string, val []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return domain.ErrStoreUnavailable
	}

	v := memoryValue{data: append([]byte(nil), val...)}
	if ttl > 0 {
		v.expiresAt = s.now().Add(ttl)
	}
	s.values[key] = v
	return nil
}

func (s *MemoryStore) PushTail(_ context.Context, key string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return domain.ErrStoreUnavailable
	}

	s.lists[key] = append(s.lists[key], append([]byte(nil), payload...))
	return nil
}

func (s *MemoryStore) PopHead(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return nil, false, domain.ErrStoreUnavailable
	}

	l := s.lists[key]
	if len(l) == 0 {
		return nil, false, nil
	}
	head := l[0]
	l[0] = nil
	s.lists[key] = l[1:]
	return head, true, nil
}

func (s *MemoryStore) Len(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return 0, domain.ErrStoreUnavailable
	}
	return int64(len(s.lists[key])), nil
}
