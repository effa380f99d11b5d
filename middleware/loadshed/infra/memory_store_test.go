package infra

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equipment-loans/middleware/loadshed/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryStore_CounterExpiresAfterWindow(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := NewMemoryStore(WithClock(clock.Now))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.Incr(ctx, "hot", time.Minute)
		require.NoError(t, err)
	}
	n, err := s.Count(ctx, "hot")
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)

	clock.Advance(59 * time.Second)
	n, _ = s.Count(ctx, "hot")
	assert.EqualValues(t, 5, n)

	clock.Advance(time.Second)
	n, _ = s.Count(ctx, "hot")
	assert.EqualValues(t, 0, n)

	n, err = s.Incr(ctx, "hot", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "a new window starts from zero")
}

func TestMemoryStore_SnapshotExpires(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := NewMemoryStore(WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "snap", []byte("v1"), 30*time.Second))
	v, ok, err := s.Load(ctx, "snap")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v1", string(v))

	clock.Advance(30 * time.Second)
	_, ok, err = s.Load(ctx, "snap")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_QueueFIFO(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.PushTail(ctx, "q", []byte("1")))
	require.NoError(t, s.PushTail(ctx, "q", []byte("2")))

	p, ok, err := s.PopHead(ctx, "q")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", string(p))

	n, _ := s.Len(ctx, "q")
	assert.EqualValues(t, 1, n)

	p, ok, _ = s.PopHead(ctx, "q")
	require.True(t, ok)
	assert.Equal(t, "2", string(p))

	_, ok, err = s.PopHead(ctx, "q")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_Unavailable(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.SetUnavailable(true)

	_, err := s.Incr(ctx, "hot", time.Minute)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	_, _, err = s.Load(ctx, "snap")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.ErrorIs(t, s.PushTail(ctx, "q", nil), domain.ErrStoreUnavailable)

	s.SetUnavailable(false)
	_, err = s.Incr(ctx, "hot", time.Minute)
	assert.NoError(t, err)
}
