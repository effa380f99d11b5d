package domain

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrActiveLoan: o solicitante já possui um empréstimo ativo.
	ErrActiveLoan = errors.New("requester already has an active loan")
	// ErrConflict: a fonte da verdade recusou o commit (equipamento
	// inexistente, unidades insuficientes ou duplicata concorrente).
	ErrConflict = errors.New("loan conflicts with current inventory")
	// ErrLoanNotFound: nenhum empréstimo ativo corresponde à devolução.
	ErrLoanNotFound = errors.New("active loan not found")
	// ErrInvalidRequest marca pedidos rejeitados na borda.
	ErrInvalidRequest = errors.New("invalid loan request")
	// ErrStoreUnavailable marca falha do store compartilhado. Nunca chega ao cliente.
	ErrStoreUnavailable = errors.New("shared store unavailable")
)

// IsRejection informa se err é violação de regra de negócio, a única classe de
// falha devolvida ao solicitante.
func IsRejection(err error) bool {
	return errors.Is(err, ErrActiveLoan) || errors.Is(err, ErrConflict)
}

// LoanRequest é a forma tipada única de um pedido de empréstimo. Os
// identificadores são resolvidos antes de construí-lo.
type LoanRequest struct {
	RequesterEmail string
	EquipmentID    int64
	Quantity       int
}

// NewLoanRequest normaliza e valida o pedido. Quantidade zero vale 1.
func NewLoanRequest(email string, equipmentID int64, quantity int) (LoanRequest, error) {
	email = strings.TrimSpace(email)
	if quantity == 0 {
		quantity = 1
	}
	switch {
	case email == "":
		return LoanRequest{}, errors.Join(ErrInvalidRequest, errors.New("email is required"))
	case equipmentID <= 0:
		return LoanRequest{}, errors.Join(ErrInvalidRequest, errors.New("equipment_id must be positive"))
	case quantity < 0:
		return LoanRequest{}, errors.Join(ErrInvalidRequest, errors.New("quantity must be positive"))
	}
	return LoanRequest{RequesterEmail: email, EquipmentID: equipmentID, Quantity: quantity}, nil
}

// Equipment é uma linha da visão de inventário.
type Equipment struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	TotalQty     int    `json:"total_quantity"`
	AvailableQty int    `json:"available_quantity"`
}

// ActiveLoan descreve um empréstimo que pode ser devolvido.
type ActiveLoan struct {
	LoanID        int64
	Requester     string
	EquipmentID   int64
	EquipmentName string
	TypeName      string
	Quantity      int
	LoanedAt      time.Time
}

// LoanStore é a fonte da verdade: garante suas invariantes de forma
// transacional e dá a palavra final em todo commit.
type LoanStore interface {
	HasActiveLoan(ctx context.Context, requester string) (bool, error)
	// CommitLoan devolve erro envolvendo ErrActiveLoan ou ErrConflict quando
	// as invariantes não valem no momento do commit.
	CommitLoan(ctx context.Context, req LoanRequest) error
	ListAvailableInventory(ctx context.Context) ([]Equipment, error)

	ActiveLoan(ctx context.Context, loanID int64, requester string) (ActiveLoan, error)
	CloseLoan(ctx context.Context, loanID int64, requester string) error
}
