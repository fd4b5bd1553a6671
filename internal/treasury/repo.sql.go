package treasury

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/finledger/internal/accounting"
	"github.com/odyssey-erp/finledger/internal/platform/db"
	"github.com/odyssey-erp/finledger/internal/shared"
)

// Repository persists cashbox days and treasury transactions.
type Repository struct {
	pool  *pgxpool.Pool
	retry db.RetryPolicy
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool, retry db.RetryPolicy) *Repository {
	return &Repository{pool: pool, retry: retry}
}

// TxRepository exposes row-locked cashbox operations and ledger writes on the
// same transaction.
type TxRepository interface {
	accounting.TxRepository
	GetDayForUpdate(ctx context.Context, day time.Time) (CashboxDaily, error)
	ClosingOf(ctx context.Context, day time.Time) (float64, bool, error)
	CreateDay(ctx context.Context, day time.Time, opening float64, at time.Time) error
	SaveDay(ctx context.Context, c CashboxDaily) error
	InsertManual(ctx context.Context, e ManualEntry) error
	// InsertTransaction reports false when a source document already has a
	// journal row.
	InsertTransaction(ctx context.Context, t Transaction) (bool, error)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type ledgerTx = accounting.TxRepository

type txRepository struct {
	ledgerTx
	tx pgx.Tx
}

// WithTx executes fn within a repeatable-read transaction, replaying it on
// serialization failures.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("treasury repository not initialised")
	}
	return db.WithTxRetry(ctx, r.pool, r.retry, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{ledgerTx: accounting.NewTxRepository(tx), tx: tx})
	})
}

const dayColumns = `day, opening_balance::float8, sales_income::float8, purchase_expenses::float8, closing_balance::float8,
difference::float8, is_reconciled, reconciled_by, reconciled_at, reconciliation_notes, updated_at`

func scanDay(row pgx.Row) (CashboxDaily, error) {
	var c CashboxDaily
	err := row.Scan(&c.Date, &c.OpeningBalance, &c.SalesIncome, &c.PurchaseExpenses, &c.ClosingBalance,
		&c.Difference, &c.IsReconciled, &c.ReconciledBy, &c.ReconciledAt, &c.Notes, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CashboxDaily{}, ErrDayNotFound
		}
		return CashboxDaily{}, err
	}
	c.Date = Day(c.Date)
	return c, nil
}

// loadDay reads a day with its manual entries and recomputes totals.
func loadDay(ctx context.Context, q querier, day time.Time, lock bool) (CashboxDaily, error) {
	query := `SELECT ` + dayColumns + ` FROM cashbox_daily WHERE day=$1`
	if lock {
		query += ` FOR UPDATE`
	}
	c, err := scanDay(q.QueryRow(ctx, query, day))
	if err != nil {
		return CashboxDaily{}, err
	}
	rows, err := q.Query(ctx, `SELECT id, day, direction, amount::float8, reason, category, created_by, created_at
FROM cashbox_manual_entries WHERE day=$1 ORDER BY created_at ASC`, day)
	if err != nil {
		return CashboxDaily{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var e ManualEntry
		if err := rows.Scan(&e.ID, &e.Day, &e.Direction, &e.Amount, &e.Reason, &e.Category, &e.CreatedBy, &e.CreatedAt); err != nil {
			return CashboxDaily{}, err
		}
		if e.Direction == DirectionIncome {
			c.ManualIncome = append(c.ManualIncome, e)
		} else {
			c.ManualExpenses = append(c.ManualExpenses, e)
		}
	}
	if err := rows.Err(); err != nil {
		return CashboxDaily{}, err
	}
	c.Recalculate()
	return c, nil
}

func (r *txRepository) GetDayForUpdate(ctx context.Context, day time.Time) (CashboxDaily, error) {
	return loadDay(ctx, r.tx, day, true)
}

func (r *txRepository) ClosingOf(ctx context.Context, day time.Time) (float64, bool, error) {
	var closing float64
	err := r.tx.QueryRow(ctx, `SELECT closing_balance::float8 FROM cashbox_daily WHERE day=$1`, day).Scan(&closing)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return closing, true, nil
}

func (r *txRepository) CreateDay(ctx context.Context, day time.Time, opening float64, at time.Time) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO cashbox_daily (day, opening_balance, closing_balance, created_at, updated_at)
VALUES ($1,$2,$2,$3,$3) ON CONFLICT (day) DO NOTHING`, day, shared.Numeric(opening), at)
	return err
}

func (r *txRepository) SaveDay(ctx context.Context, c CashboxDaily) error {
	_, err := r.tx.Exec(ctx, `UPDATE cashbox_daily SET sales_income=$2, purchase_expenses=$3, closing_balance=$4, difference=$5,
is_reconciled=$6, reconciled_by=$7, reconciled_at=$8, reconciliation_notes=$9, updated_at=$10 WHERE day=$1`,
		c.Date, shared.Numeric(c.SalesIncome), shared.Numeric(c.PurchaseExpenses), shared.Numeric(c.ClosingBalance),
		shared.Numeric(c.Difference), c.IsReconciled, c.ReconciledBy, c.ReconciledAt, c.Notes, c.UpdatedAt)
	return err
}

func (r *txRepository) InsertManual(ctx context.Context, e ManualEntry) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO cashbox_manual_entries (id, day, direction, amount, reason, category, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		e.ID, e.Day, e.Direction, shared.Numeric(e.Amount), e.Reason, e.Category, e.CreatedBy, e.CreatedAt)
	return err
}

func (r *txRepository) InsertTransaction(ctx context.Context, t Transaction) (bool, error) {
	tag, err := r.tx.Exec(ctx, `INSERT INTO treasury_transactions (id, tx_type, amount, description, reference_type, reference_id, occurred_at, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (reference_type, reference_id) WHERE reference_type <> 'Manual' DO NOTHING`,
		t.ID, t.Type, shared.Numeric(t.Amount), t.Description, t.ReferenceType, t.ReferenceID, t.Date, t.CreatedBy, t.CreatedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// GetDay loads a day with its manual entries.
func (r *Repository) GetDay(ctx context.Context, day time.Time) (CashboxDaily, error) {
	return loadDay(ctx, r.pool, day, false)
}

// LatestDay loads the most recent cashbox day.
func (r *Repository) LatestDay(ctx context.Context) (CashboxDaily, error) {
	var day time.Time
	if err := r.pool.QueryRow(ctx, `SELECT day FROM cashbox_daily ORDER BY day DESC LIMIT 1`).Scan(&day); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CashboxDaily{}, ErrDayNotFound
		}
		return CashboxDaily{}, err
	}
	return loadDay(ctx, r.pool, day, false)
}

// ListDays returns days in range newest first, manual entries included.
func (r *Repository) ListDays(ctx context.Context, from, to time.Time) ([]CashboxDaily, error) {
	var (
		clauses []string
		args    []any
	)
	if !from.IsZero() {
		args = append(args, from)
		clauses = append(clauses, fmt.Sprintf("day >= $%d", len(args)))
	}
	if !to.IsZero() {
		args = append(args, to)
		clauses = append(clauses, fmt.Sprintf("day <= $%d", len(args)))
	}
	query := `SELECT day FROM cashbox_daily`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.pool.Query(ctx, query+` ORDER BY day DESC`, args...)
	if err != nil {
		return nil, err
	}
	var days []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			rows.Close()
			return nil, err
		}
		days = append(days, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]CashboxDaily, 0, len(days))
	for _, d := range days {
		c, err := loadDay(ctx, r.pool, d, false)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// ListTransactions returns filtered transactions newest first.
func (r *Repository) ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if !filter.From.IsZero() {
		add("occurred_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("occurred_at <= $%d", filter.To)
	}
	if filter.Type != "" {
		add("tx_type = $%d", filter.Type)
	}
	query := `SELECT id, tx_type, amount::float8, description, reference_type, reference_id, occurred_at, created_by, created_at
FROM treasury_transactions`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.pool.Query(ctx, query+` ORDER BY occurred_at DESC, created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.Type, &t.Amount, &t.Description, &t.ReferenceType, &t.ReferenceID,
			&t.Date, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
