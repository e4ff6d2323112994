package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NumberService allocates sequential, human-readable document numbers.
// Allocation runs against a per-scope counter row updated atomically, so two
// concurrent invoice creations can never observe the same number. The
// alternative count-then-format scheme races under concurrency.
type NumberService interface {
	// NextInvoiceNumberTx allocates the next invoice number inside the
	// caller's transaction. The number is only consumed if the caller commits.
	NextInvoiceNumberTx(ctx context.Context, tx pgx.Tx) (string, error)
	// NextJobNumberTx allocates the next repair-job number.
	NextJobNumberTx(ctx context.Context, tx pgx.Tx) (string, error)
}

type numberService struct {
	pool *pgxpool.Pool
}

func NewNumberService(pool *pgxpool.Pool) NumberService {
	return &numberService{pool: pool}
}

const (
	scopeInvoice = "invoice"
	scopeJob     = "job"
)

func (s *numberService) NextInvoiceNumberTx(ctx context.Context, tx pgx.Tx) (string, error) {
	n, err := nextInScope(ctx, tx, scopeInvoice)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("INV-%04d", n), nil
}

func (s *numberService) NextJobNumberTx(ctx context.Context, tx pgx.Tx) (string, error) {
	n, err := nextInScope(ctx, tx, scopeJob)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("JOB-%04d", n), nil
}

// nextInScope bumps the scope's counter row. The upsert takes a row lock, so
// concurrent allocators serialize here and each sees a distinct value.
func nextInScope(ctx context.Context, tx pgx.Tx, scope string) (int64, error) {
	var last int64
	err := tx.QueryRow(ctx, `
		INSERT INTO invoice_sequences (scope, last_number)
		VALUES ($1, 1)
		ON CONFLICT (scope)
		DO UPDATE SET last_number = invoice_sequences.last_number + 1
		RETURNING last_number
	`, scope).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate %s number: %w", scope, err)
	}
	return last, nil
}
