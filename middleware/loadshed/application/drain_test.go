package application

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"equipment-loans/internal/log/logtest"
	"equipment-loans/middleware/loadshed/domain"
	"equipment-loans/middleware/loadshed/infra"
)

type fixedLoad int64

func (l fixedLoad) Load(context.Context) int64 { return int64(l) }

func enqueue(t *testing.T, q WriteQueue, email string, equipmentID int64) {
	t.Helper()
	require.NoError(t, q.Enqueue(context.Background(), domain.QueueEntry{
		ID:             email,
		RequesterEmail: email,
		EquipmentID:    equipmentID,
		Quantity:       1,
		SubmittedAt:    time.Now(),
		OriginInstance: "api-1",
	}))
}

func TestDrainer_AppliesOneEntryPerTickWhenIdle(t *testing.T) {
	f := newAdmissionFixture(t)
	ctx := context.Background()
	enqueue(t, f.queue, "a@uni.edu", 1)
	enqueue(t, f.queue, "b@uni.edu", 1)

	d := Drainer{Meter: fixedLoad(5), Queue: f.queue, Commit: f.adm, Logger: f.log}

	assert.Equal(t, domain.DrainApplied, d.Tick(ctx))
	assert.Equal(t, 1, f.loans.Commits())
	depth, _ := f.queue.Depth(ctx)
	assert.EqualValues(t, 1, depth)

	assert.Equal(t, domain.DrainApplied, d.Tick(ctx))
	assert.Equal(t, domain.DrainEmpty, d.Tick(ctx))
	assert.Equal(t, 2, f.loans.Commits())
}

func TestDrainer_SkipsWhileLoadAtOrAboveLowWater(t *testing.T) {
	f := newAdmissionFixture(t)
	ctx := context.Background()
	enqueue(t, f.queue, "a@uni.edu", 1)

	for _, load := range []int64{DefaultLowWaterMark, 35, 80} {
		d := Drainer{Meter: fixedLoad(load), Queue: f.queue, Commit: f.adm}
		assert.Equal(t, domain.DrainBusy, d.Tick(ctx), "load %d", load)
	}
	depth, _ := f.queue.Depth(ctx)
	assert.EqualValues(t, 1, depth)
	assert.Zero(t, f.loans.Commits())
}

func TestDrainer_SaturationThenRecovery(t *testing.T) {
	f := newAdmissionFixture(t)
	ctx := context.Background()
	clock := newTestClock()
	shared := infra.NewMemoryStore(infra.WithClock(clock.Now))
	f.meter = SaturationMeter{Counters: shared}
	f.queue = WriteQueue{Store: shared}
	f.adm.Signal = f.meter
	f.adm.Queue = f.queue

	f.saturate(t)
	for i := 0; i < 5; i++ {
		v, err := f.adm.Admit(ctx, loanReq(fmt.Sprintf("user%d@uni.edu", i), 1))
		require.NoError(t, err)
		require.True(t, v.Queued)
	}

	d := Drainer{Meter: f.meter, Queue: f.queue, Commit: f.adm, Logger: f.log}
	assert.Equal(t, domain.DrainBusy, d.Tick(ctx))

	clock.Advance(DefaultSaturationWindow)
	for i := 0; i < 5; i++ {
		assert.Equal(t, domain.DrainApplied, d.Tick(ctx))
	}
	assert.Equal(t, domain.DrainEmpty, d.Tick(ctx))
	assert.Equal(t, 5, f.loans.Commits())
}

func TestDrainer_ReplayRejectionDropsEntry(t *testing.T) {
	f := newAdmissionFixture(t)
	ctx := context.Background()
	require.NoError(t, f.loans.CommitLoan(ctx, loanReq("a@uni.edu", 1)))
	enqueue(t, f.queue, "a@uni.edu", 1)

	d := Drainer{Queue: f.queue, Commit: f.adm, Logger: f.log}
	assert.Equal(t, domain.DrainDropped, d.Tick(ctx))
	assert.Equal(t, domain.DrainEmpty, d.Tick(ctx), "a rejected entry is not re-queued")
	assert.Contains(t, f.log.Messages(), "replay failed, queued loan request dropped")
}

func TestDrainer_UndecodableEntryIsDropped(t *testing.T) {
	f := newAdmissionFixture(t)
	ctx := context.Background()
	require.NoError(t, f.shared.PushTail(ctx, domain.KeyPendingLoans, []byte("garbage")))

	d := Drainer{Queue: f.queue, Commit: f.adm, Logger: f.log}
	assert.Equal(t, domain.DrainDropped, d.Tick(ctx))
	assert.Zero(t, f.loans.Commits())
}

func TestDrainer_QueueDownIsUnavailable(t *testing.T) {
	f := newAdmissionFixture(t)
	f.shared.SetUnavailable(true)

	d := Drainer{Queue: f.queue, Commit: f.adm}
	assert.Equal(t, domain.DrainUnavailable, d.Tick(context.Background()))
}

func TestDrainer_ConcurrentWorkersApplyEachEntryOnce(t *testing.T) {
	f := newAdmissionFixture(t)
	ctx := context.Background()

	const entries = 60
	for i := 0; i < entries; i++ {
		enqueue(t, f.queue, fmt.Sprintf("user%d@uni.edu", i), 1)
	}

	var (
		mu      sync.Mutex
		applied int
		wg      sync.WaitGroup
	)
	for w := 0; w < 6; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d := Drainer{Queue: f.queue, Commit: f.adm}
			for {
				r := d.Tick(ctx)
				if r == domain.DrainEmpty {
					return
				}
				if r == domain.DrainApplied {
					mu.Lock()
					applied++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, entries, applied)
	assert.Equal(t, entries, f.loans.Commits())
}

func TestDrainWorker_RunsUntilContextDone(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newAdmissionFixture(t)
	enqueue(t, f.queue, "a@uni.edu", 1)
	rec := logtest.NewRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	w := DrainWorker{
		Drainer:  Drainer{Queue: f.queue, Commit: f.adm},
		Interval: 5 * time.Millisecond,
		Logger:   rec,
	}
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return f.loans.Commits() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("drain worker did not stop")
	}
	assert.Contains(t, rec.Messages(), "drain worker stopped")
}
