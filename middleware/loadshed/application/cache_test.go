package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equipment-loans/middleware/loadshed/domain"
	"equipment-loans/middleware/loadshed/infra"
)

type countingSource struct {
	calls int
	items []domain.Equipment
	err   error
}

func (s *countingSource) fetch(context.Context) ([]domain.Equipment, error) {
	s.calls++
	return s.items, s.err
}

func testInventory() []domain.Equipment {
	return []domain.Equipment{
		{ID: 1, Name: "ThinkPad T14", Type: "Laptop", TotalQty: 5, AvailableQty: 3},
		{ID: 2, Name: "USB Mouse", Type: "Mouse", TotalQty: 10, AvailableQty: 10},
	}
}

func TestReadThroughCache_SourceReadRefreshesSnapshot(t *testing.T) {
	ctx := context.Background()
	store := infra.NewMemoryStore()
	src := &countingSource{items: testInventory()}
	c := ReadThroughCache[[]domain.Equipment]{Snapshots: store}

	v, from, err := c.Resolve(ctx, false, src.fetch)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceDatabase, from)
	assert.Equal(t, testInventory(), v)

	raw, ok, err := store.Load(ctx, domain.KeyInventoryCache)
	require.NoError(t, err)
	require.True(t, ok, "a database read always refreshes the snapshot")
	assert.Contains(t, string(raw), `"available_quantity":3`)
}

func TestReadThroughCache_ServesSnapshotWhenAsked(t *testing.T) {
	ctx := context.Background()
	store := infra.NewMemoryStore()
	src := &countingSource{items: testInventory()}
	c := ReadThroughCache[[]domain.Equipment]{Snapshots: store}

	_, _, err := c.Resolve(ctx, false, src.fetch)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		v, from, err := c.Resolve(ctx, true, src.fetch)
		require.NoError(t, err)
		assert.Equal(t, domain.SourceCache, from)
		assert.Equal(t, testInventory(), v)
	}
	assert.Equal(t, 1, src.calls, "cached reads never touch the source")
}

func TestReadThroughCache_MissFallsThroughAndPopulates(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	store := infra.NewMemoryStore(infra.WithClock(clock.Now))
	src := &countingSource{items: testInventory()}
	c := ReadThroughCache[[]domain.Equipment]{Snapshots: store, TTL: 30 * time.Second}

	_, from, err := c.Resolve(ctx, true, src.fetch)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceDatabase, from)

	_, from, _ = c.Resolve(ctx, true, src.fetch)
	assert.Equal(t, domain.SourceCache, from)

	clock.Advance(30 * time.Second)
	_, from, _ = c.Resolve(ctx, true, src.fetch)
	assert.Equal(t, domain.SourceDatabase, from, "an expired snapshot is a miss")
	assert.Equal(t, 2, src.calls)
}

func TestReadThroughCache_StoreDownReadsSource(t *testing.T) {
	ctx := context.Background()
	store := infra.NewMemoryStore()
	store.SetUnavailable(true)
	src := &countingSource{items: testInventory()}
	c := ReadThroughCache[[]domain.Equipment]{Snapshots: store}

	v, from, err := c.Resolve(ctx, true, src.fetch)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceDatabase, from)
	assert.Equal(t, testInventory(), v)
}

func TestReadThroughCache_UnreadableSnapshotIsAMiss(t *testing.T) {
	ctx := context.Background()
	store := infra.NewMemoryStore()
	require.NoError(t, store.Save(ctx, domain.KeyInventoryCache, []byte("{not json"), time.Minute))
	src := &countingSource{items: testInventory()}
	c := ReadThroughCache[[]domain.Equipment]{Snapshots: store}

	_, from, err := c.Resolve(ctx, true, src.fetch)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceDatabase, from)

	_, from, _ = c.Resolve(ctx, true, src.fetch)
	assert.Equal(t, domain.SourceCache, from, "the source read replaced the bad snapshot")
}

func TestReadThroughCache_SourceErrorIsReturned(t *testing.T) {
	boom := errors.New("db down")
	src := &countingSource{err: boom}
	c := ReadThroughCache[[]domain.Equipment]{Snapshots: infra.NewMemoryStore()}

	_, _, err := c.Resolve(context.Background(), false, src.fetch)
	assert.ErrorIs(t, err, boom)
}
