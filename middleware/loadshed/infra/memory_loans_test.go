package infra

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equipment-loans/middleware/loadshed/domain"
)

func newTestLoans() *MemoryLoans {
	s := NewMemoryLoans()
	s.SetEquipment(domain.Equipment{ID: 1, Name: "ThinkPad T14", Type: "Laptop", TotalQty: 2, AvailableQty: 2})
	s.SetEquipment(domain.Equipment{ID: 2, Name: "USB Mouse", Type: "Mouse", TotalQty: 1, AvailableQty: 1})
	return s
}

func TestMemoryLoans_CommitReservesUnits(t *testing.T) {
	s := newTestLoans()
	ctx := context.Background()

	require.NoError(t, s.CommitLoan(ctx, domain.LoanRequest{RequesterEmail: "a@uni.edu", EquipmentID: 1, Quantity: 1}))

	has, err := s.HasActiveLoan(ctx, "a@uni.edu")
	require.NoError(t, err)
	assert.True(t, has)

	inv, err := s.ListAvailableInventory(ctx)
	require.NoError(t, err)
	require.Len(t, inv, 2)
	assert.Equal(t, 1, inv[0].AvailableQty)
	assert.Equal(t, 1, s.Commits())
}

func TestMemoryLoans_CommitEnforcesInvariants(t *testing.T) {
	s := newTestLoans()
	ctx := context.Background()

	require.NoError(t, s.CommitLoan(ctx, domain.LoanRequest{RequesterEmail: "a@uni.edu", EquipmentID: 2, Quantity: 1}))

	err := s.CommitLoan(ctx, domain.LoanRequest{RequesterEmail: "a@uni.edu", EquipmentID: 1, Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrActiveLoan)

	err = s.CommitLoan(ctx, domain.LoanRequest{RequesterEmail: "b@uni.edu", EquipmentID: 2, Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrConflict, "no units left")

	err = s.CommitLoan(ctx, domain.LoanRequest{RequesterEmail: "b@uni.edu", EquipmentID: 99, Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrConflict, "unknown equipment")

	assert.Equal(t, 1, s.Commits())
}

func TestMemoryLoans_CloseRestocks(t *testing.T) {
	s := newTestLoans()
	ctx := context.Background()
	require.NoError(t, s.CommitLoan(ctx, domain.LoanRequest{RequesterEmail: "a@uni.edu", EquipmentID: 1, Quantity: 2}))

	loan, err := s.ActiveLoan(ctx, 1, "a@uni.edu")
	require.NoError(t, err)
	assert.Equal(t, "Laptop", loan.TypeName)

	_, err = s.ActiveLoan(ctx, 1, "someone@else.edu")
	assert.ErrorIs(t, err, domain.ErrLoanNotFound)

	require.NoError(t, s.CloseLoan(ctx, 1, "a@uni.edu"))
	assert.ErrorIs(t, s.CloseLoan(ctx, 1, "a@uni.edu"), domain.ErrLoanNotFound)

	has, _ := s.HasActiveLoan(ctx, "a@uni.edu")
	assert.False(t, has)
	inv, _ := s.ListAvailableInventory(ctx)
	assert.Equal(t, 2, inv[0].AvailableQty)
}

func TestMemoryLoans_ShouldFail(t *testing.T) {
	s := newTestLoans()
	s.SetShouldFail(true)

	_, err := s.HasActiveLoan(context.Background(), "a@uni.edu")
	assert.Error(t, err)
	assert.False(t, domain.IsRejection(err))
}
