package infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"equipment-loans/middleware/loadshed/domain"
)

// PostgresLoans é a fonte de verdade em PostgreSQL.
//
// CommitLoan revalida tudo dentro da transação: trava a linha do equipamento
// (FOR UPDATE) e conta com o índice único parcial de empréstimos ativos por
// solicitante para barrar duplicatas concorrentes.
type PostgresLoans struct {
	pool *pgxpool.Pool
}

var _ domain.LoanStore = (*PostgresLoans)(nil)

// PoolConfig ajusta o pool de conexões.
type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

func NewPostgresLoans(ctx context.Context, connString string, pc PoolConfig) (*PostgresLoans, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	if pc.MaxConns > 0 {
		config.MaxConns = pc.MaxConns
	}
	if pc.MinConns > 0 {
		config.MinConns = pc.MinConns
	}
	if pc.MaxConnLifetime > 0 {
		config.MaxConnLifetime = pc.MaxConnLifetime
	}
	if pc.MaxConnIdleTime > 0 {
		config.MaxConnIdleTime = pc.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresLoans{pool: pool}, nil
}

func (s *PostgresLoans) Close() {
	s.pool.Close()
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS equipment_types (
		id SERIAL PRIMARY KEY,
		name VARCHAR(100) NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS equipments (
		id SERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL UNIQUE,
		type_id INTEGER NOT NULL REFERENCES equipment_types(id),
		total_quantity INTEGER NOT NULL CHECK (total_quantity >= 0),
		available_quantity INTEGER NOT NULL CHECK (available_quantity >= 0),
		active BOOLEAN NOT NULL DEFAULT true,
		CHECK (available_quantity <= total_quantity)
	)`,
	`CREATE TABLE IF NOT EXISTS loans (
		id SERIAL PRIMARY KEY,
		student_email VARCHAR(255) NOT NULL,
		equipment_id INTEGER NOT NULL REFERENCES equipments(id),
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		loan_date TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		return_date TIMESTAMP WITH TIME ZONE,
		status VARCHAR(20) NOT NULL DEFAULT 'ACTIVE'
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_loans_one_active_per_student
		ON loans(student_email) WHERE status = 'ACTIVE'`,
	`CREATE INDEX IF NOT EXISTS idx_loans_equipment_id ON loans(equipment_id)`,
}

func (s *PostgresLoans) Migrate(ctx context.Context) error {
	for _, migration := range migrations {
		if _, err := s.pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}

func (s *PostgresLoans) HasActiveLoan(ctx context.Context, requester string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM loans WHERE student_email = $1 AND status = 'ACTIVE')`

	var has bool
	if err := s.pool.QueryRow(ctx, query, requester).Scan(&has); err != nil {
		return false, fmt.Errorf("query active loan: %w", err)
	}
	return has, nil
}

func (s *PostgresLoans) CommitLoan(ctx context.Context, req domain.LoanRequest) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var has bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM loans WHERE student_email = $1 AND status = 'ACTIVE')`,
			req.RequesterEmail,
		).Scan(&has)
		if err != nil {
			return fmt.Errorf("query active loan: %w", err)
		}
		if has {
			return domain.ErrActiveLoan
		}

		var available int
		err = tx.QueryRow(ctx,
			`SELECT available_quantity FROM equipments WHERE id = $1 AND active FOR UPDATE`,
			req.EquipmentID,
		).Scan(&available)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: equipment %d not found", domain.ErrConflict, req.EquipmentID)
		}
		if err != nil {
			return fmt.Errorf("lock equipment: %w", err)
		}
		if available < req.Quantity {
			return fmt.Errorf("%w: requested %d, available %d", domain.ErrConflict, req.Quantity, available)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE equipments SET available_quantity = available_quantity - $1 WHERE id = $2`,
			req.Quantity, req.EquipmentID,
		); err != nil {
			return fmt.Errorf("reserve equipment: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO loans (student_email, equipment_id, quantity) VALUES ($1, $2, $3)`,
			req.RequesterEmail, req.EquipmentID, req.Quantity,
		); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return domain.ErrActiveLoan
			}
			return fmt.Errorf("insert loan: %w", err)
		}
		return nil
	})
}

func (s *PostgresLoans) ListAvailableInventory(ctx context.Context) ([]domain.Equipment, error) {
	const query = `
		SELECT e.id, e.name, t.name, e.total_quantity, e.available_quantity
		FROM equipments e
		JOIN equipment_types t ON e.type_id = t.id
		WHERE e.active
		ORDER BY e.id
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	defer rows.Close()

	var out []domain.Equipment
	for rows.Next() {
		var e domain.Equipment
		if err := rows.Scan(&e.ID, &e.Name, &e.Type, &e.TotalQty, &e.AvailableQty); err != nil {
			return nil, fmt.Errorf("scan inventory: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresLoans) ActiveLoan(ctx context.Context, loanID int64, requester string) (domain.ActiveLoan, error) {
	const query = `
		SELECT l.id, l.student_email, l.equipment_id, e.name, t.name, l.quantity, l.loan_date
		FROM loans l
		JOIN equipments e ON e.id = l.equipment_id
		JOIN equipment_types t ON t.id = e.type_id
		WHERE l.id = $1 AND l.student_email = $2 AND l.status = 'ACTIVE'
	`
	var l domain.ActiveLoan
	err := s.pool.QueryRow(ctx, query, loanID, requester).Scan(
		&l.LoanID, &l.Requester, &l.EquipmentID, &l.EquipmentName, &l.TypeName, &l.Quantity, &l.LoanedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ActiveLoan{}, domain.ErrLoanNotFound
	}
	if err != nil {
		return domain.ActiveLoan{}, fmt.Errorf("query loan: %w", err)
	}
	return l, nil
}

func (s *PostgresLoans) CloseLoan(ctx context.Context, loanID int64, requester string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var equipmentID int64
		var quantity int
		err := tx.QueryRow(ctx,
			`UPDATE loans SET status = 'RETURNED', return_date = NOW()
			 WHERE id = $1 AND student_email = $2 AND status = 'ACTIVE'
			 RETURNING equipment_id, quantity`,
			loanID, requester,
		).Scan(&equipmentID, &quantity)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrLoanNotFound
		}
		if err != nil {
			return fmt.Errorf("close loan: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE equipments SET available_quantity = available_quantity + $1 WHERE id = $2`,
			quantity, equipmentID,
		); err != nil {
			return fmt.Errorf("restock equipment: %w", err)
		}
		return nil
	})
}
