package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/odyssey-erp/finledger/internal/accounting"
	"github.com/odyssey-erp/finledger/internal/debt"
	"github.com/odyssey-erp/finledger/internal/inventory"
	"github.com/odyssey-erp/finledger/internal/shared"
	"github.com/odyssey-erp/finledger/internal/treasury"
)

// Ledger exposes the posting operations required by integrations.
type Ledger interface {
	PostIdempotent(ctx context.Context, entries ...accounting.Entry) ([]accounting.Entry, error)
}

// Stock receives purchased goods at weighted average cost.
type Stock interface {
	ReceivePurchase(ctx context.Context, in inventory.ReceiptInput) (inventory.ReceiptResult, error)
}

// Debts registers receivables and payables.
type Debts interface {
	CreateDebt(ctx context.Context, in debt.CreateInput) (debt.Debt, error)
}

// Cashbox rolls cash movements into the daily treasury. Source movements are
// recorded once per document; manual entries are booked together with their
// ledger entry.
type Cashbox interface {
	RecordSaleIncome(ctx context.Context, in treasury.SourceInput) (treasury.Transaction, error)
	RecordPurchaseExpense(ctx context.Context, in treasury.SourceInput) (treasury.Transaction, error)
	BookManualIncome(ctx context.Context, in treasury.ManualInput, entry accounting.Entry) (treasury.CashboxDaily, accounting.Entry, error)
	BookManualExpense(ctx context.Context, in treasury.ManualInput, entry accounting.Entry) (treasury.CashboxDaily, accounting.Entry, error)
}

// Terms are the default credit periods applied when an event carries no due date.
type Terms struct {
	CustomerDays int
	SupplierDays int
}

// SaleFinalized is emitted when an invoice is finalized.
type SaleFinalized struct {
	Sale       accounting.SaleInput
	CustomerID string
	DueDate    time.Time
}

// PurchaseReceived is emitted when a purchase order is received into stock.
type PurchaseReceived struct {
	Receipt    inventory.ReceiptInput
	SupplierID string
	DueDate    time.Time
}

// Outcome reports what a hook did. Replayed is set when the source document
// had already been processed.
type Outcome struct {
	Entries  []accounting.Entry `json:"entries"`
	Debt     *debt.Debt         `json:"debt,omitempty"`
	Replayed bool               `json:"replayed"`
}

// Hooks wires operational events into the ledger, debts and treasury.
type Hooks struct {
	ledger  Ledger
	stock   Stock
	debts   Debts
	cashbox Cashbox
	terms   Terms
	logger  *slog.Logger
	now     func() time.Time
}

// NewHooks constructs integration hooks.
func NewHooks(ledger Ledger, stock Stock, debts Debts, cashbox Cashbox, terms Terms, logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{ledger: ledger, stock: stock, debts: debts, cashbox: cashbox, terms: terms, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (h *Hooks) WithNow(now func() time.Time) {
	if now != nil {
		h.now = now
	}
}

func (h *Hooks) dueDate(explicit, from time.Time, days int) time.Time {
	if !explicit.IsZero() {
		return explicit
	}
	if from.IsZero() {
		from = h.now()
	}
	return from.AddDate(0, 0, days)
}

// HandleSaleFinalized posts revenue and COGS, opens a receivable for credit
// sales and rolls cash sales into the cashbox.
func (h *Hooks) HandleSaleFinalized(ctx context.Context, evt SaleFinalized) (Outcome, error) {
	if evt.Sale.InvoiceID == "" {
		return Outcome{}, fmt.Errorf("integration: %w: invoice id required", shared.ErrInvalidInput)
	}
	if evt.Sale.IsCredit() && evt.CustomerID == "" {
		return Outcome{}, fmt.Errorf("integration: %w: credit sale requires a customer", shared.ErrInvalidInput)
	}
	if evt.Sale.Date.IsZero() {
		evt.Sale.Date = h.now()
	}
	entries, err := accounting.SaleEntries(evt.Sale)
	if err != nil {
		return Outcome{}, err
	}
	posted, err := h.ledger.PostIdempotent(ctx, entries...)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Entries: posted, Replayed: len(posted) == 0}

	switch {
	case evt.Sale.IsCredit():
		d, err := h.debts.CreateDebt(ctx, debt.CreateInput{
			DebtorType:    debt.DebtorCustomer,
			DebtorID:      evt.CustomerID,
			Amount:        evt.Sale.Total,
			DueDate:       h.dueDate(evt.DueDate, evt.Sale.Date, h.terms.CustomerDays),
			ReferenceType: accounting.RefInvoice,
			ReferenceID:   evt.Sale.InvoiceID,
			Description:   "Invoice " + evt.Sale.InvoiceNumber,
			CreatedBy:     evt.Sale.UserID,
		})
		if err != nil {
			return out, err
		}
		out.Debt = &d
	case strings.EqualFold(evt.Sale.PaymentType, "cash"):
		if _, err := h.cashbox.RecordSaleIncome(ctx, treasury.SourceInput{
			ReferenceID: evt.Sale.InvoiceID,
			Number:      evt.Sale.InvoiceNumber,
			Amount:      evt.Sale.Total,
			Date:        evt.Sale.Date,
			UserID:      evt.Sale.UserID,
		}); err != nil {
			return out, err
		}
	}
	return out, nil
}

// HandlePurchaseReceived updates stock valuation and posts the purchase,
// then opens a payable for credit terms or pays cash from the cashbox.
func (h *Hooks) HandlePurchaseReceived(ctx context.Context, evt PurchaseReceived) (Outcome, error) {
	p := evt.Receipt.Purchase
	if p.IsCredit() && evt.SupplierID == "" {
		return Outcome{}, fmt.Errorf("integration: %w: credit purchase requires a supplier", shared.ErrInvalidInput)
	}
	if p.Date.IsZero() {
		evt.Receipt.Purchase.Date = h.now()
		p = evt.Receipt.Purchase
	}
	var out Outcome
	res, err := h.stock.ReceivePurchase(ctx, evt.Receipt)
	switch {
	case errors.Is(err, shared.ErrDuplicateReference):
		h.logger.Info("purchase already received", slog.String("order_id", p.OrderID))
		out.Replayed = true
	case err != nil:
		return Outcome{}, err
	default:
		out.Entries = res.Entries
	}

	total := p.Total
	if total == 0 {
		for _, e := range res.Entries {
			total = shared.Add(total, e.Amount)
		}
	}
	if total == 0 {
		for _, l := range evt.Receipt.Lines {
			total = shared.Add(total, shared.Round2(l.Qty*l.UnitCost))
		}
	}

	switch {
	case p.IsCredit():
		d, err := h.debts.CreateDebt(ctx, debt.CreateInput{
			DebtorType:    debt.DebtorSupplier,
			DebtorID:      evt.SupplierID,
			Amount:        total,
			DueDate:       h.dueDate(evt.DueDate, p.Date, h.terms.SupplierDays),
			ReferenceType: accounting.RefPurchaseOrder,
			ReferenceID:   p.OrderID,
			Description:   "Purchase order " + p.OrderNumber,
			CreatedBy:     p.UserID,
		})
		if err != nil {
			return out, err
		}
		out.Debt = &d
	case strings.EqualFold(p.PaymentType, "cash") && total > 0:
		if _, err := h.cashbox.RecordPurchaseExpense(ctx, treasury.SourceInput{
			ReferenceID: p.OrderID,
			Number:      p.OrderNumber,
			Amount:      total,
			Date:        p.Date,
			UserID:      p.UserID,
		}); err != nil {
			return out, err
		}
	}
	return out, nil
}

// HandleSalesReturn posts the contra-revenue of a return note.
func (h *Hooks) HandleSalesReturn(ctx context.Context, in accounting.ReturnInput) (Outcome, error) {
	if in.ReturnID == "" {
		return Outcome{}, fmt.Errorf("integration: %w: return id required", shared.ErrInvalidInput)
	}
	entries, err := accounting.ReturnEntries(in)
	if err != nil {
		return Outcome{}, err
	}
	return h.post(ctx, entries)
}

// HandleInventoryAdjustment posts the valuation impact of an approved count.
func (h *Hooks) HandleInventoryAdjustment(ctx context.Context, in accounting.AdjustmentInput) (Outcome, error) {
	if in.AdjustmentID == "" {
		return Outcome{}, fmt.Errorf("integration: %w: adjustment id required", shared.ErrInvalidInput)
	}
	entries, err := accounting.AdjustmentEntries(in)
	if err != nil {
		return Outcome{}, err
	}
	if len(entries) == 0 {
		return Outcome{Entries: []accounting.Entry{}}, nil
	}
	return h.post(ctx, entries)
}

func (h *Hooks) post(ctx context.Context, entries []accounting.Entry) (Outcome, error) {
	posted, err := h.ledger.PostIdempotent(ctx, entries...)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Entries: posted, Replayed: len(posted) == 0}, nil
}

// HandleManualExpense pays an operating expense from the cashbox and books it.
func (h *Hooks) HandleManualExpense(ctx context.Context, in accounting.ManualInput) (Outcome, error) {
	in, err := h.manualInput(ctx, in)
	if err != nil {
		return Outcome{}, err
	}
	entry, err := accounting.ExpenseEntry(in)
	if err != nil {
		return Outcome{}, err
	}
	_, posted, err := h.cashbox.BookManualExpense(ctx, treasury.ManualInput{
		Date: in.Date, Amount: in.Amount, Reason: in.Description, Category: in.Category, UserID: in.UserID,
	}, entry)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Entries: []accounting.Entry{posted}}, nil
}

// HandleManualIncome takes other income into the cashbox and books it.
func (h *Hooks) HandleManualIncome(ctx context.Context, in accounting.ManualInput) (Outcome, error) {
	in, err := h.manualInput(ctx, in)
	if err != nil {
		return Outcome{}, err
	}
	entry, err := accounting.IncomeEntry(in)
	if err != nil {
		return Outcome{}, err
	}
	_, posted, err := h.cashbox.BookManualIncome(ctx, treasury.ManualInput{
		Date: in.Date, Amount: in.Amount, Reason: in.Description, UserID: in.UserID,
	}, entry)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Entries: []accounting.Entry{posted}}, nil
}

func (h *Hooks) manualInput(ctx context.Context, in accounting.ManualInput) (accounting.ManualInput, error) {
	if !(in.Amount > 0) {
		return in, fmt.Errorf("integration: %w: amount must be greater than zero", shared.ErrInvalidAmount)
	}
	if in.Date.IsZero() {
		in.Date = h.now()
	}
	if in.UserID == "" {
		in.UserID = shared.ActorFromContext(ctx)
	}
	return in, nil
}
