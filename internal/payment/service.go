package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/finledger/internal/accounting"
	"github.com/odyssey-erp/finledger/internal/debt"
	"github.com/odyssey-erp/finledger/internal/shared"
)

// RepositoryPort abstracts payment persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListByDebt(ctx context.Context, debtID uuid.UUID) ([]Payment, error)
}

// LedgerPoster posts ledger entries inside a caller-owned transaction.
type LedgerPoster interface {
	PostWith(ctx context.Context, tx accounting.TxRepository, entries ...accounting.Entry) ([]accounting.Entry, error)
	Committed(ctx context.Context, entries []accounting.Entry)
}

// DebtDirectory resolves debts and refreshes derived views after payments.
type DebtDirectory interface {
	GetDebt(ctx context.Context, id uuid.UUID) (debt.Debt, error)
	ResolveByReference(ctx context.Context, referenceType, referenceID string, debtorType debt.DebtorType) (debt.Debt, error)
	Invalidate(ctx context.Context)
}

// AuditPort records payment events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards settle requests carrying a client key.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

const idempotencyModule = "payment.settle"

// Observer receives applied payments, typically for metrics.
type Observer interface {
	ObservePayment(debtorType string, amount float64)
}

// Service applies payments to debts.
type Service struct {
	repo        RepositoryPort
	debts       DebtDirectory
	ledger      LedgerPoster
	audit       AuditPort
	idempotency IdempotencyPort
	observer    Observer
	logger      *slog.Logger
	now         func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, debts DebtDirectory, ledger LedgerPoster, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, debts: debts, ledger: ledger, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithIdempotency enables Idempotency-Key handling on Settle.
func (s *Service) WithIdempotency(store IdempotencyPort) *Service {
	s.idempotency = store
	return s
}

// WithObserver attaches a payment observer.
func (s *Service) WithObserver(o Observer) *Service {
	s.observer = o
	return s
}

// RecordPayment applies a payment to a debt. The payment row, the debt
// balance, the touched installments and the ledger entry commit together or
// not at all.
func (s *Service) RecordPayment(ctx context.Context, in RecordInput) (Receipt, error) {
	amount := shared.Round2(in.Amount)
	if !(amount > 0) {
		return Receipt{}, fmt.Errorf("payment: %w: amount must be greater than zero", shared.ErrInvalidAmount)
	}
	if in.Method == "" {
		in.Method = MethodCash
	}
	if in.UserID == "" {
		in.UserID = shared.ActorFromContext(ctx)
	}
	now := s.now()
	if in.Date.IsZero() {
		in.Date = now
	}
	paymentID := uuid.New()

	var receipt Receipt
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		d, err := tx.GetDebtForUpdate(ctx, in.DebtID)
		if err != nil {
			return err
		}
		if d.Status == debt.StatusWrittenOff {
			return fmt.Errorf("payment: %w: debt is written off", shared.ErrInvalidState)
		}
		if amount > shared.Add(d.RemainingAmount, shared.Epsilon) {
			return fmt.Errorf("payment: %w: amount %s, remaining %s",
				shared.ErrAmountExceedsBalance, shared.Numeric(amount), shared.Numeric(d.RemainingAmount))
		}
		if d.RemainingAmount <= 0 {
			return fmt.Errorf("payment: %w: debt is already settled", shared.ErrInvalidState)
		}
		// Overpayment within tolerance settles the remaining balance only.
		applied := amount
		if applied > d.RemainingAmount {
			applied = d.RemainingAmount
		}

		p := Payment{
			ID:              paymentID,
			DebtID:          d.ID,
			Amount:          applied,
			Method:          in.Method,
			ReferenceNumber: in.ReferenceNumber,
			Notes:           in.Notes,
			RecordedBy:      in.UserID,
			Date:            in.Date,
			Status:          StatusCompleted,
			CreatedAt:       now,
		}
		if err := tx.InsertPayment(ctx, p); err != nil {
			return err
		}

		d.RemainingAmount = shared.Sub(d.RemainingAmount, applied)
		if d.RemainingAmount < shared.Epsilon {
			d.RemainingAmount = 0
		}
		d.Status = debt.DeriveStatus(d.RemainingAmount, d.DueDate, now)
		d.UpdatedAt = now
		if err := tx.UpdateDebt(ctx, d); err != nil {
			return err
		}

		open, err := tx.OpenInstallmentsForUpdate(ctx, d.ID)
		if err != nil {
			return err
		}
		touched := debt.ApplyToInstallments(open, applied, p.ID.String(), now)
		installments := make([]debt.Schedule, 0, len(touched))
		for _, a := range touched {
			if err := tx.UpdateSchedule(ctx, a.Schedule); err != nil {
				return err
			}
			installments = append(installments, a.Schedule)
		}

		entry, err := postingFor(d, p)
		if err != nil {
			return err
		}
		posted, err := s.ledger.PostWith(ctx, tx, entry)
		if err != nil {
			return err
		}
		receipt = Receipt{Payment: p, Debt: d, Installments: installments, Entry: posted[0]}
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}

	s.ledger.Committed(ctx, []accounting.Entry{receipt.Entry})
	if s.debts != nil {
		s.debts.Invalidate(ctx)
	}
	if s.observer != nil {
		s.observer.ObservePayment(string(receipt.Debt.DebtorType), receipt.Payment.Amount)
	}
	s.record(ctx, in.UserID, receipt)
	s.logger.Info("payment recorded",
		slog.String("payment_id", receipt.Payment.ID.String()),
		slog.String("debt_id", receipt.Debt.ID.String()),
		slog.Float64("amount", receipt.Payment.Amount),
		slog.Float64("remaining", receipt.Debt.RemainingAmount),
		slog.String("status", string(receipt.Debt.Status)))
	return receipt, nil
}

func postingFor(d debt.Debt, p Payment) (accounting.Entry, error) {
	posting := accounting.PaymentPosting{
		PaymentID:    p.ID,
		Amount:       p.Amount,
		Method:       p.Method,
		Reference:    accounting.Reference{Type: d.ReferenceType, ID: d.ReferenceID},
		Counterparty: d.DebtorID,
		Date:         p.Date,
		UserID:       p.RecordedBy,
	}
	if d.DebtorType == debt.DebtorSupplier {
		return accounting.SupplierPaymentEntry(posting)
	}
	return accounting.CustomerPaymentEntry(posting)
}

// GetDebtPayments lists completed payments of a debt, newest first.
func (s *Service) GetDebtPayments(ctx context.Context, debtID uuid.UUID) ([]Payment, error) {
	if s.debts != nil {
		if _, err := s.debts.GetDebt(ctx, debtID); err != nil {
			return nil, err
		}
	}
	payments, err := s.repo.ListByDebt(ctx, debtID)
	if err != nil {
		return nil, err
	}
	if payments == nil {
		payments = []Payment{}
	}
	return payments, nil
}

// Settle resolves the debt behind a receivable or payable and records the payment.
// ID may be a debt id or the id of the source invoice or purchase order.
func (s *Service) Settle(ctx context.Context, in SettleInput) (Receipt, error) {
	debtorType, refType, err := in.Type.debtor()
	if err != nil {
		return Receipt{}, err
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return Receipt{}, fmt.Errorf("payment: %w: id required", shared.ErrInvalidInput)
	}
	if in.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, in.IdempotencyKey, idempotencyModule); err != nil {
			return Receipt{}, err
		}
	}
	receipt, err := s.settle(ctx, in, id, refType, debtorType)
	if err != nil && in.IdempotencyKey != "" && s.idempotency != nil {
		if derr := s.idempotency.Delete(ctx, in.IdempotencyKey, idempotencyModule); derr != nil {
			s.logger.Warn("release idempotency key", slog.String("key", in.IdempotencyKey), slog.Any("error", derr))
		}
	}
	return receipt, err
}

func (s *Service) settle(ctx context.Context, in SettleInput, id, refType string, debtorType debt.DebtorType) (Receipt, error) {
	d, err := s.resolve(ctx, id, refType, debtorType)
	if err != nil {
		return Receipt{}, err
	}
	return s.RecordPayment(ctx, RecordInput{
		DebtID: d.ID,
		Amount: in.Amount,
		Method: in.Method,
		Notes:  in.Note,
		UserID: in.UserID,
	})
}

func (s *Service) resolve(ctx context.Context, id, refType string, debtorType debt.DebtorType) (debt.Debt, error) {
	if s.debts == nil {
		return debt.Debt{}, errors.New("payment: debt directory not configured")
	}
	if debtID, perr := uuid.Parse(id); perr == nil {
		d, err := s.debts.GetDebt(ctx, debtID)
		switch {
		case err == nil && d.DebtorType == debtorType:
			return d, nil
		case err == nil:
			return debt.Debt{}, fmt.Errorf("payment: %w: debt %s is not a %s debt", shared.ErrInvalidInput, id, debtorType)
		case !errors.Is(err, shared.ErrNotFound):
			return debt.Debt{}, err
		}
	}
	return s.debts.ResolveByReference(ctx, refType, id, debtorType)
}

func (s *Service) record(ctx context.Context, actor string, r Receipt) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   "payment.record",
		Entity:   "debt",
		EntityID: r.Debt.ID.String(),
		Meta: map[string]any{
			"payment_id": r.Payment.ID.String(),
			"amount":     r.Payment.Amount,
			"method":     r.Payment.Method,
			"remaining":  r.Debt.RemainingAmount,
		},
	}); err != nil {
		s.logger.Warn("audit payment", slog.Any("error", err))
	}
}
