package infra

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"equipment-loans/middleware/loadshed/domain"
)

// MemoryLoans é uma fonte de verdade em memória com as mesmas invariantes
// transacionais da PostgresLoans. Útil para testes e desenvolvimento.
type MemoryLoans struct {
	mu         sync.RWMutex
	equipment  map[int64]*domain.Equipment
	loans      map[int64]*memoryLoan
	nextLoanID int64
	commits    int
	shouldFail bool
	now        func() time.Time
}

type memoryLoan struct {
	domain.ActiveLoan
	returned bool
}

var _ domain.LoanStore = (*MemoryLoans)(nil)

func NewMemoryLoans() *MemoryLoans {
	return &MemoryLoans{
		equipment: make(map[int64]*domain.Equipment),
		loans:     make(map[int64]*memoryLoan),
		now:       time.Now,
	}
}

// SetEquipment cadastra (ou substitui) um item de inventário.
func (s *MemoryLoans) SetEquipment(e domain.Equipment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := e
	s.equipment[e.ID] = &cp
}

// SetShouldFail faz todas as operações falharem como se o banco estivesse fora.
func (s *MemoryLoans) SetShouldFail(shouldFail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shouldFail = shouldFail
}

// Commits devolve quantos empréstimos foram efetivados.
func (s *MemoryLoans) Commits() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.commits
}

func (s *MemoryLoans) failure() error {
	if s.shouldFail {
		return errors.New("loan store unavailable")
	}
	return nil
}

func (s *MemoryLoans) hasActive(requester string) bool {
	for _, l := range s.loans {
		if !l.returned && l.Requester == requester {
			return true
		}
	}
	return false
}

func (s *MemoryLoans) HasActiveLoan(_ context.Context, requester string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure(); err != nil {
		return false, err
	}
	return s.hasActive(requester), nil
}

func (s *MemoryLoans) CommitLoan(_ context.Context, req domain.LoanRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(); err != nil {
		return err
	}

	if s.hasActive(req.RequesterEmail) {
		return domain.ErrActiveLoan
	}
	eq, ok := s.equipment[req.EquipmentID]
	if !ok {
		return fmt.Errorf("%w: equipment %d not found", domain.ErrConflict, req.EquipmentID)
	}
	if eq.AvailableQty < req.Quantity {
		return fmt.Errorf("%w: requested %d, available %d", domain.ErrConflict, req.Quantity, eq.AvailableQty)
	}

	eq.AvailableQty -= req.Quantity
	s.nextLoanID++
	s.loans[s.nextLoanID] = &memoryLoan{ActiveLoan: domain.ActiveLoan{
		LoanID:        s.nextLoanID,
		Requester:     req.RequesterEmail,
		EquipmentID:   eq.ID,
		EquipmentName: eq.Name,
		TypeName:      eq.Type,
		Quantity:      req.Quantity,
		LoanedAt:      s.now(),
	}}
	s.commits++
	return nil
}

func (s *MemoryLoans) ListAvailableInventory(_ context.Context) ([]domain.Equipment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure(); err != nil {
		return nil, err
	}

	out := make([]domain.Equipment, 0, len(s.equipment))
	for _, e := range s.equipment {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryLoans) ActiveLoan(_ context.Context, loanID int64, requester string) (domain.ActiveLoan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure(); err != nil {
		return domain.ActiveLoan{}, err
	}

	l, ok := s.loans[loanID]
	if !ok || l.returned || l.Requester != requester {
		return domain.ActiveLoan{}, domain.ErrLoanNotFound
	}
	return l.ActiveLoan, nil
}

func (s *MemoryLoans) CloseLoan(_ context.Context, loanID int64, requester string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(); err != nil {
		return err
	}

	l, ok := s.loans[loanID]
	if !ok || l.returned || l.Requester != requester {
		return domain.ErrLoanNotFound
	}
	l.returned = true
	if eq, ok := s.equipment[l.EquipmentID]; ok {
		eq.AvailableQty += l.Quantity
	}
	return nil
}
