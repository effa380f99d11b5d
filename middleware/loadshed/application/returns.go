package application

import (
	"context"
	"errors"
	"fmt"

	"equipment-loans/internal/log"
	"equipment-loans/middleware/loadshed/domain"
)

// ReturnService encerra empréstimos ativos aplicando o tratamento de devolução
// da categoria do equipamento.
type ReturnService struct {
	Loans  domain.LoanStore
	Logger log.FieldLogger
}

func (s ReturnService) Return(ctx context.Context, loanID int64, requester string) (domain.ReturnOutcome, error) {
	if s.Loans == nil {
		return domain.ReturnOutcome{}, errors.New("returns: no loan store")
	}
	if s.Logger == nil {
		s.Logger = log.NewDisabledLogger()
	}

	loan, err := s.Loans.ActiveLoan(ctx, loanID, requester)
	if err != nil {
		return domain.ReturnOutcome{}, fmt.Errorf("find active loan %d: %w", loanID, err)
	}
	out := domain.ProcessReturn(domain.ClassifyCategory(loan.TypeName), domain.ReturnContext{
		LoanID:   loan.LoanID,
		Quantity: loan.Quantity,
	})
	if err := s.Loans.CloseLoan(ctx, loanID, requester); err != nil {
		return domain.ReturnOutcome{}, fmt.Errorf("close loan %d: %w", loanID, err)
	}
	s.Logger.Info("equipment returned",
		log.Int64("loan_id", loanID),
		log.String("category", out.CategoryName),
		log.Bool("requires_inspection", out.RequiresInspection),
	)
	return out, nil
}
