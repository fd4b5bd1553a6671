package payment

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/finledger/internal/accounting"
	"github.com/odyssey-erp/finledger/internal/debt"
	"github.com/odyssey-erp/finledger/internal/platform/db"
	"github.com/odyssey-erp/finledger/internal/shared"
)

// Repository persists payments.
type Repository struct {
	pool  *pgxpool.Pool
	retry db.RetryPolicy
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool, retry db.RetryPolicy) *Repository {
	return &Repository{pool: pool, retry: retry}
}

// TxRepository spans payments, debts, installments and ledger entries in one
// transaction.
type TxRepository interface {
	debt.TxRepository
	accounting.TxRepository
	InsertPayment(ctx context.Context, p Payment) error
}

type (
	debtTx   = debt.TxRepository
	ledgerTx = accounting.TxRepository
)

type txRepository struct {
	debtTx
	ledgerTx
	tx pgx.Tx
}

// WithTx executes fn within a repeatable-read transaction, replaying it on
// serialization failures and deadlocks.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("payment repository not initialised")
	}
	return db.WithTxRetry(ctx, r.pool, r.retry, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{
			debtTx:   debt.NewTxRepository(tx),
			ledgerTx: accounting.NewTxRepository(tx),
			tx:       tx,
		})
	})
}

func (r *txRepository) InsertPayment(ctx context.Context, p Payment) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO payments (id, debt_id, amount, method, reference_number, notes, recorded_by, paid_at, status, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		p.ID, p.DebtID, shared.Numeric(p.Amount), p.Method, p.ReferenceNumber, p.Notes, p.RecordedBy, p.Date, p.Status, p.CreatedAt)
	return err
}

// ListByDebt returns completed payments of a debt, newest first.
func (r *Repository) ListByDebt(ctx context.Context, debtID uuid.UUID) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, debt_id, amount::float8, method, reference_number, notes, recorded_by, paid_at, status, created_at
FROM payments WHERE debt_id=$1 AND status=$2 ORDER BY paid_at DESC, created_at DESC`, debtID, StatusCompleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.DebtID, &p.Amount, &p.Method, &p.ReferenceNumber, &p.Notes, &p.RecordedBy,
			&p.Date, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
