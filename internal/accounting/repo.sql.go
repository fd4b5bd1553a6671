package accounting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/finledger/internal/platform/db"
	"github.com/odyssey-erp/finledger/internal/shared"
)

const sourceConstraint = "uq_accounting_entries_source"

// Repository persists accounting entries.
type Repository struct {
	pool  *pgxpool.Pool
	retry db.RetryPolicy
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool, retry db.RetryPolicy) *Repository {
	return &Repository{pool: pool, retry: retry}
}

// TxRepository exposes transactional operations. Other packages compose it
// into their own transactions through NewTxRepository.
type TxRepository interface {
	InsertEntries(ctx context.Context, entries []Entry) error
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds ledger writes to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes fn within a repeatable-read transaction, replaying it on
// serialization failures.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("accounting repository not initialised")
	}
	return db.WithTxRetry(ctx, r.pool, r.retry, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *txRepository) InsertEntries(ctx context.Context, entries []Entry) error {
	for _, e := range entries {
		_, err := r.tx.Exec(ctx, `INSERT INTO accounting_entries (id, entry_type, debit_account, credit_account, amount, description,
ref_type, ref_id, source_key, entry_date, created_by, is_system_generated, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
			e.ID, e.Type, e.DebitAccount, e.CreditAccount, shared.Numeric(e.Amount), e.Description,
			e.Reference.Type, e.Reference.ID, nullString(e.SourceKey), e.Date, e.CreatedBy, e.IsSystemGenerated, e.CreatedAt)
		if err != nil {
			if db.IsUniqueViolation(err, sourceConstraint) || db.IsUniqueViolation(err, "accounting_entries_pkey") {
				return fmt.Errorf("%w: ledger source %s", shared.ErrDuplicateReference, e.SourceKey)
			}
			return err
		}
	}
	return nil
}

const entryColumns = `id, entry_type, debit_account, credit_account, amount::float8, description, ref_type, ref_id,
COALESCE(source_key, ''), entry_date, created_by, is_system_generated, created_at`

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Type, &e.DebitAccount, &e.CreditAccount, &e.Amount, &e.Description,
			&e.Reference.Type, &e.Reference.ID, &e.SourceKey, &e.Date, &e.CreatedBy, &e.IsSystemGenerated, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListEntries returns filtered entries newest first.
func (r *Repository) ListEntries(ctx context.Context, filter EntryFilter) ([]Entry, error) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if !filter.From.IsZero() {
		add("entry_date >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("entry_date <= $%d", filter.To)
	}
	if filter.Type != "" {
		add("entry_type = $%d", filter.Type)
	}
	if filter.Account != "" {
		args = append(args, filter.Account)
		clauses = append(clauses, fmt.Sprintf("(debit_account = $%d OR credit_account = $%d)", len(args), len(args)))
	}
	query := `SELECT ` + entryColumns + ` FROM accounting_entries`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	args = append(args, filter.Limit)
	query += fmt.Sprintf(" ORDER BY entry_date DESC, created_at DESC LIMIT $%d", len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

// AccountEntries returns every entry touching account within the range in chronological order.
func (r *Repository) AccountEntries(ctx context.Context, account Account, dr DateRange) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM accounting_entries
WHERE (debit_account = $1 OR credit_account = $1)
  AND ($2::timestamptz IS NULL OR entry_date >= $2)
  AND ($3::timestamptz IS NULL OR entry_date <= $3)
ORDER BY entry_date ASC, created_at ASC`, account, nullTime(dr.From), nullTime(dr.To))
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

// AccountTotals sums both sides per account for entries dated up to asOf.
func (r *Repository) AccountTotals(ctx context.Context, asOf time.Time) ([]AccountTotal, error) {
	rows, err := r.pool.Query(ctx, `SELECT account, SUM(debit)::float8, SUM(credit)::float8 FROM (
    SELECT debit_account AS account, amount AS debit, 0::numeric AS credit FROM accounting_entries WHERE entry_date <= $1
    UNION ALL
    SELECT credit_account AS account, 0::numeric AS debit, amount AS credit FROM accounting_entries WHERE entry_date <= $1
) sides GROUP BY account`, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var totals []AccountTotal
	for rows.Next() {
		var t AccountTotal
		if err := rows.Scan(&t.Account, &t.Debit, &t.Credit); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
