package application

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equipment-loans/internal/log/logtest"
	"equipment-loans/middleware/loadshed/domain"
	"equipment-loans/middleware/loadshed/infra"
)

type admissionFixture struct {
	shared *infra.MemoryStore
	loans  *infra.MemoryLoans
	meter  SaturationMeter
	queue  WriteQueue
	adm    Admission
	log    *logtest.Recorder
}

func newAdmissionFixture(t *testing.T) *admissionFixture {
	t.Helper()
	f := &admissionFixture{
		shared: infra.NewMemoryStore(),
		loans:  infra.NewMemoryLoans(),
		log:    logtest.NewRecorder(),
	}
	f.loans.SetEquipment(domain.Equipment{ID: 1, Name: "ThinkPad T14", Type: "Laptop", TotalQty: 100, AvailableQty: 100})
	f.loans.SetEquipment(domain.Equipment{ID: 2, Name: "USB Mouse", Type: "Mouse", TotalQty: 1, AvailableQty: 1})
	f.meter = SaturationMeter{Counters: f.shared}
	f.queue = WriteQueue{Store: f.shared}
	f.adm = Admission{
		Signal:     f.meter,
		Queue:      f.queue,
		Loans:      f.loans,
		InstanceID: "api-1",
		Now:        func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
		Logger:     f.log,
	}
	return f
}

func (f *admissionFixture) saturate(t *testing.T) {
	t.Helper()
	for i := 0; i <= DefaultSaturationThreshold; i++ {
		f.meter.RecordRequest(context.Background())
	}
	require.True(t, f.meter.IsSaturated(context.Background()))
}

func loanReq(email string, equipmentID int64) domain.LoanRequest {
	return domain.LoanRequest{RequesterEmail: email, EquipmentID: equipmentID, Quantity: 1}
}

func TestAdmission_NormalLoadCommitsImmediately(t *testing.T) {
	f := newAdmissionFixture(t)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		f.meter.RecordRequest(ctx)
	}

	v, err := f.adm.Admit(ctx, loanReq("a@uni.edu", 1))
	require.NoError(t, err)
	assert.Equal(t, domain.AdmissionVerdict{Accepted: true, InstanceID: "api-1", Source: domain.SourceDatabase}, v)

	has, _ := f.loans.HasActiveLoan(ctx, "a@uni.edu")
	assert.True(t, has)
	depth, _ := f.queue.Depth(ctx)
	assert.Zero(t, depth)
}

func TestAdmission_SaturatedRequestIsQueued(t *testing.T) {
	f := newAdmissionFixture(t)
	ctx := context.Background()
	f.saturate(t)
	f.adm.NewID = func() string { return "entry-1" }

	v, err := f.adm.Admit(ctx, loanReq("a@uni.edu", 1))
	require.NoError(t, err)
	assert.True(t, v.Accepted)
	assert.True(t, v.Queued)
	assert.Equal(t, domain.SourceQueue, v.Source)
	assert.Equal(t, "entry-1", v.EntryID)

	assert.Zero(t, f.loans.Commits(), "nothing is written to the source of truth while saturated")
	depth, _ := f.queue.Depth(ctx)
	assert.EqualValues(t, 1, depth)

	payload, ok, err := f.queue.DequeueOne(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	entry, err := domain.DecodeQueueEntry(payload)
	require.NoError(t, err)
	assert.Equal(t, "entry-1", entry.ID)
	assert.Equal(t, "a@uni.edu", entry.RequesterEmail)
	assert.Equal(t, "api-1", entry.OriginInstance)
}

func TestAdmission_SaturatedRequestIsNotPrevalidated(t *testing.T) {
	f := newAdmissionFixture(t)
	ctx := context.Background()
	require.NoError(t, f.loans.CommitLoan(ctx, loanReq("a@uni.edu", 1)))
	f.saturate(t)

	v, err := f.adm.Admit(ctx, loanReq("a@uni.edu", 1))
	require.NoError(t, err)
	assert.True(t, v.Queued, "the active-loan check happens when the entry is drained")
}

func TestAdmission_RejectsSecondActiveLoan(t *testing.T) {
	f := newAdmissionFixture(t)
	ctx := context.Background()

	_, err := f.adm.Admit(ctx, loanReq("a@uni.edu", 1))
	require.NoError(t, err)

	v, err := f.adm.Admit(ctx, loanReq("a@uni.edu", 1))
	assert.ErrorIs(t, err, domain.ErrActiveLoan)
	assert.False(t, v.Accepted)
	assert.Equal(t, domain.SourceDatabase, v.Source)
	assert.Equal(t, 1, f.loans.Commits())
}

func TestAdmission_RejectsWhenNoUnitsLeft(t *testing.T) {
	f := newAdmissionFixture(t)
	ctx := context.Background()

	_, err := f.adm.Admit(ctx, loanReq("a@uni.edu", 2))
	require.NoError(t, err)
	_, err = f.adm.Admit(ctx, loanReq("b@uni.edu", 2))
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.True(t, domain.IsRejection(err))
}

func TestAdmission_QueueDownFallsBackToSynchronousCommit(t *testing.T) {
	f := newAdmissionFixture(t)
	ctx := context.Background()
	f.saturate(t)
	down := infra.NewMemoryStore()
	down.SetUnavailable(true)
	f.adm.Queue = WriteQueue{Store: down}

	v, err := f.adm.Admit(ctx, loanReq("a@uni.edu", 1))
	require.NoError(t, err)
	assert.False(t, v.Queued)
	assert.Equal(t, domain.SourceDatabase, v.Source)
	assert.Equal(t, 1, f.loans.Commits())
	assert.Contains(t, f.log.Messages(), "deferred queue unavailable, processing synchronously")
}

func TestAdmission_SharedStoreDownProcessesNormally(t *testing.T) {
	f := newAdmissionFixture(t)
	ctx := context.Background()
	f.saturate(t)
	f.shared.SetUnavailable(true)

	v, err := f.adm.Admit(ctx, loanReq("a@uni.edu", 1))
	require.NoError(t, err)
	assert.Equal(t, domain.SourceDatabase, v.Source)
	assert.Equal(t, 1, f.loans.Commits())
}

func TestAdmission_SourceFailureIsNotARejection(t *testing.T) {
	f := newAdmissionFixture(t)
	f.loans.SetShouldFail(true)

	_, err := f.adm.Admit(context.Background(), loanReq("a@uni.edu", 1))
	require.Error(t, err)
	assert.False(t, domain.IsRejection(err))
}

func TestAdmission_DuplicateQueuedRequestsCommitOnce(t *testing.T) {
	f := newAdmissionFixture(t)
	ctx := context.Background()
	f.saturate(t)

	for i := 0; i < 3; i++ {
		v, err := f.adm.Admit(ctx, loanReq("a@uni.edu", 1))
		require.NoError(t, err)
		require.True(t, v.Queued, fmt.Sprintf("request %d", i))
	}

	d := Drainer{Queue: f.queue, Commit: f.adm, Logger: f.log}
	results := map[domain.DrainResult]int{}
	for {
		r := d.Tick(ctx)
		if r == domain.DrainEmpty {
			break
		}
		results[r]++
	}
	assert.Equal(t, 1, results[domain.DrainApplied])
	assert.Equal(t, 2, results[domain.DrainDropped])
	assert.Equal(t, 1, f.loans.Commits())
}
