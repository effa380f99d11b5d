package infra

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"equipment-loans/middleware/loadshed/domain"
)

// RedisStore implementa os três contratos de store compartilhado do domain
// (contador, snapshot e fila) sobre um único client Redis.
//
// Cada operação roda com um timeout curto próprio: o caminho de escrita não
// pode ficar pendurado esperando o Redis.
type RedisStore struct {
	rdb       *redis.Client
	prefix    string
	opTimeout time.Duration
}

var (
	_ domain.CounterStore  = (*RedisStore)(nil)
	_ domain.SnapshotStore = (*RedisStore)(nil)
	_ domain.QueueStore    = (*RedisStore)(nil)
)

type RedisStoreOption func(*RedisStore)

// WithKeyPrefix prefixa todas as chaves (ex.: "loans" -> "loans:pending_loan_queue").
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) { s.prefix = strings.Trim(prefix, ":") }
}

func WithOpTimeout(d time.Duration) RedisStoreOption {
	return func(s *RedisStore) { s.opTimeout = d }
}

func NewRedisStore(rdb *redis.Client, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		rdb:       rdb,
		opTimeout: 300 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

func (s *RedisStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("redis %s: %w: %w", op, domain.ErrStoreUnavailable, err)
}

// Incr incrementa e renova o TTL na mesma transação (MULTI/EXEC), então a
// janela desliza: ela expira `window` depois da última requisição.
func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	k := s.key(key)
	var incr *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		if window > 0 {
			pipe.Expire(ctx, k, window)
		}
		return nil
	})
	if err != nil {
		return 0, unavailable("incr", err)
	}
	return incr.Val(), nil
}

func (s *RedisStore) Count(ctx context.Context, key string) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	n, err := s.rdb.Get(ctx, s.key(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, unavailable("get", err)
	}
	return n, nil
}

func (s *RedisStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	val, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, unavailable("get", err)
	}
	return val, true, nil
}

func (s *RedisStore) Save(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.rdb.Set(ctx, s.key(key), val, ttl).Err(); err != nil {
		return unavailable("set", err)
	}
	return nil
}

func (s *RedisStore) PushTail(ctx context.Context, key string, payload []byte) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.rdb.RPush(ctx, s.key(key), payload).Err(); err != nil {
		return unavailable("rpush", err)
	}
	return nil
}

// PopHead usa LPOP, que é atômico no servidor: dois workers nunca recebem a
// mesma entrada.
func (s *RedisStore) PopHead(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	val, err := s.rdb.LPop(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, unavailable("lpop", err)
	}
	return val, true, nil
}

func (s *RedisStore) Len(ctx context.Context, key string) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	n, err := s.rdb.LLen(ctx, s.key(key)).Result()
	if err != nil {
		return 0, unavailable("llen", err)
	}
	return n, nil
}
