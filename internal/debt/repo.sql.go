package debt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/finledger/internal/platform/db"
	"github.com/odyssey-erp/finledger/internal/shared"
)

const referenceConstraint = "uq_debts_reference"

// Repository persists debts and installment schedules.
type Repository struct {
	pool  *pgxpool.Pool
	retry db.RetryPolicy
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool, retry db.RetryPolicy) *Repository {
	return &Repository{pool: pool, retry: retry}
}

// TxRepository exposes row-locked debt operations. Payment processing
// composes it with ledger writes through NewTxRepository.
type TxRepository interface {
	GetDebtForUpdate(ctx context.Context, id uuid.UUID) (Debt, error)
	UpdateDebt(ctx context.Context, d Debt) error
	DeleteUnpaidInstallments(ctx context.Context, debtID uuid.UUID) (int64, error)
	InsertSchedules(ctx context.Context, schedules []Schedule) error
	OpenInstallmentsForUpdate(ctx context.Context, debtID uuid.UUID) ([]Schedule, error)
	UpdateSchedule(ctx context.Context, s Schedule) error
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds debt writes to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes fn within a repeatable-read transaction, replaying it on
// serialization failures.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("debt repository not initialised")
	}
	return db.WithTxRetry(ctx, r.pool, r.retry, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const debtColumns = `id, debtor_type, debtor_id, original_amount::float8, remaining_amount::float8, due_date,
reference_type, reference_id, description, status, meta, created_by, created_at, updated_at`

func scanDebt(row pgx.Row) (Debt, error) {
	var (
		d    Debt
		meta []byte
	)
	err := row.Scan(&d.ID, &d.DebtorType, &d.DebtorID, &d.OriginalAmount, &d.RemainingAmount, &d.DueDate,
		&d.ReferenceType, &d.ReferenceID, &d.Description, &d.Status, &meta, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Debt{}, ErrDebtNotFound
		}
		return Debt{}, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &d.Meta); err != nil {
			return Debt{}, fmt.Errorf("debt: decode meta: %w", err)
		}
	}
	return d, nil
}

func scanDebts(rows pgx.Rows) ([]Debt, error) {
	defer rows.Close()
	var debts []Debt
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, err
		}
		debts = append(debts, d)
	}
	return debts, rows.Err()
}

func (r *txRepository) GetDebtForUpdate(ctx context.Context, id uuid.UUID) (Debt, error) {
	return scanDebt(r.tx.QueryRow(ctx, `SELECT `+debtColumns+` FROM debts WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) UpdateDebt(ctx context.Context, d Debt) error {
	meta, err := json.Marshal(d.Meta)
	if err != nil {
		return err
	}
	tag, err := r.tx.Exec(ctx, `UPDATE debts SET remaining_amount=$2, status=$3, meta=$4, updated_at=$5 WHERE id=$1`,
		d.ID, shared.Numeric(d.RemainingAmount), d.Status, meta, d.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDebtNotFound
	}
	return nil
}

func (r *txRepository) DeleteUnpaidInstallments(ctx context.Context, debtID uuid.UUID) (int64, error) {
	tag, err := r.tx.Exec(ctx, `DELETE FROM payment_schedules WHERE debt_id=$1 AND status IN ($2, $3)`,
		debtID, SchedulePending, ScheduleOverdue)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *txRepository) InsertSchedules(ctx context.Context, schedules []Schedule) error {
	return insertSchedules(ctx, r.tx, schedules)
}

const scheduleColumns = `id, entity_type, entity_id, debt_id, amount::float8, due_date, status, notes, created_by, created_at, updated_at`

func (r *txRepository) OpenInstallmentsForUpdate(ctx context.Context, debtID uuid.UUID) ([]Schedule, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+scheduleColumns+` FROM payment_schedules
WHERE debt_id=$1 AND status IN ('PENDING','OVERDUE') ORDER BY due_date ASC, created_at ASC FOR UPDATE`, debtID)
	if err != nil {
		return nil, err
	}
	return scanSchedules(rows)
}

func (r *txRepository) UpdateSchedule(ctx context.Context, s Schedule) error {
	_, err := r.tx.Exec(ctx, `UPDATE payment_schedules SET amount=$2, status=$3, notes=$4, updated_at=$5 WHERE id=$1`,
		s.ID, shared.Numeric(s.Amount), s.Status, s.Notes, s.UpdatedAt)
	return err
}

func insertSchedules(ctx context.Context, tx pgx.Tx, schedules []Schedule) error {
	if len(schedules) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, s := range schedules {
		batch.Queue(`INSERT INTO payment_schedules (id, entity_type, entity_id, debt_id, amount, due_date, status, notes, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			s.ID, s.EntityType, s.EntityID, s.DebtID, shared.Numeric(s.Amount), s.DueDate, s.Status, s.Notes, s.CreatedBy, s.CreatedAt, s.UpdatedAt)
	}
	return tx.SendBatch(ctx, batch).Close()
}

func scanSchedules(rows pgx.Rows) ([]Schedule, error) {
	defer rows.Close()
	var out []Schedule
	for rows.Next() {
		var s Schedule
		if err := rows.Scan(&s.ID, &s.EntityType, &s.EntityID, &s.DebtID, &s.Amount, &s.DueDate, &s.Status,
			&s.Notes, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// InsertDebt stores a new debt. A second debt for the same source document
// and debtor yields ErrDuplicateReference.
func (r *Repository) InsertDebt(ctx context.Context, d Debt) error {
	meta, err := json.Marshal(d.Meta)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO debts (id, debtor_type, debtor_id, original_amount, remaining_amount, due_date,
reference_type, reference_id, description, status, meta, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		d.ID, d.DebtorType, d.DebtorID, shared.Numeric(d.OriginalAmount), shared.Numeric(d.RemainingAmount), d.DueDate,
		d.ReferenceType, d.ReferenceID, d.Description, d.Status, meta, d.CreatedBy, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, referenceConstraint) {
			return fmt.Errorf("%w: debt for %s:%s", shared.ErrDuplicateReference, d.ReferenceType, d.ReferenceID)
		}
		return err
	}
	return nil
}

// FindByReference loads the debt created for a source document, oldest first
// when DebtorID is empty.
func (r *Repository) FindByReference(ctx context.Context, ref ReferenceKey) (Debt, error) {
	query := `SELECT ` + debtColumns + ` FROM debts WHERE reference_type=$1 AND reference_id=$2 AND debtor_type=$3`
	args := []any{ref.ReferenceType, ref.ReferenceID, ref.DebtorType}
	if ref.DebtorID != "" {
		query += ` AND debtor_id=$4`
		args = append(args, ref.DebtorID)
	}
	query += ` ORDER BY created_at ASC LIMIT 1`
	return scanDebt(r.pool.QueryRow(ctx, query, args...))
}

// GetDebt loads a debt by id.
func (r *Repository) GetDebt(ctx context.Context, id uuid.UUID) (Debt, error) {
	return scanDebt(r.pool.QueryRow(ctx, `SELECT `+debtColumns+` FROM debts WHERE id=$1`, id))
}

// ListDebts returns a filtered page ordered by due date and the total count.
func (r *Repository) ListDebts(ctx context.Context, filter Filter, page shared.Page) ([]Debt, int, error) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.DebtorID != "" {
		add("debtor_id = $%d", filter.DebtorID)
	}
	if filter.DebtorType != "" {
		add("debtor_type = $%d", filter.DebtorType)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if !filter.DueFrom.IsZero() {
		add("due_date >= $%d", filter.DueFrom)
	}
	if !filter.DueTo.IsZero() {
		add("due_date <= $%d", filter.DueTo)
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM debts`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page = page.Normalize()
	args = append(args, page.Limit, page.Offset())
	query := fmt.Sprintf(`SELECT %s FROM debts%s ORDER BY due_date ASC, created_at ASC LIMIT $%d OFFSET $%d`,
		debtColumns, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	debts, err := scanDebts(rows)
	return debts, total, err
}

// ListOpen returns active and overdue debts of one side of the book.
func (r *Repository) ListOpen(ctx context.Context, debtorType DebtorType) ([]Debt, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+debtColumns+` FROM debts
WHERE debtor_type=$1 AND status IN ('active','overdue') AND remaining_amount > 0 ORDER BY due_date ASC`, debtorType)
	if err != nil {
		return nil, err
	}
	return scanDebts(rows)
}

// InsertSchedules stores free-standing installments in one transaction.
func (r *Repository) InsertSchedules(ctx context.Context, schedules []Schedule) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return insertSchedules(ctx, tx, schedules)
	})
}

// ListSchedules returns the pending and overdue installments of a counterparty.
func (r *Repository) ListSchedules(ctx context.Context, entityType DebtorType, entityID string) ([]Schedule, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+scheduleColumns+` FROM payment_schedules
WHERE entity_type=$1 AND entity_id=$2 AND status IN ('PENDING','OVERDUE') ORDER BY due_date ASC`, entityType, entityID)
	if err != nil {
		return nil, err
	}
	return scanSchedules(rows)
}

// ListInstallments returns every installment of a debt.
func (r *Repository) ListInstallments(ctx context.Context, debtID uuid.UUID) ([]Schedule, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+scheduleColumns+` FROM payment_schedules
WHERE debt_id=$1 ORDER BY due_date ASC, created_at ASC`, debtID)
	if err != nil {
		return nil, err
	}
	return scanSchedules(rows)
}

// MarkOverdue flips past-due active debts and pending installments.
func (r *Repository) MarkOverdue(ctx context.Context, asOf time.Time) (SweepResult, error) {
	var res SweepResult
	err := db.WithTxRetry(ctx, r.pool, r.retry, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE debts SET status='overdue', updated_at=$1
WHERE status='active' AND remaining_amount > 0 AND due_date < $1`, asOf)
		if err != nil {
			return err
		}
		res.Debts = tag.RowsAffected()
		tag, err = tx.Exec(ctx, `UPDATE payment_schedules SET status='OVERDUE', updated_at=$1
WHERE status='PENDING' AND due_date < $1`, asOf)
		if err != nil {
			return err
		}
		res.Schedules = tag.RowsAffected()
		return nil
	})
	return res, err
}
