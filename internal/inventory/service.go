package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/finledger/internal/accounting"
	"github.com/odyssey-erp/finledger/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetStock(ctx context.Context, productID string) (Stock, error)
	Valuation(ctx context.Context) (float64, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// LedgerPoster posts entries inside a transaction owned by the caller.
type LedgerPoster interface {
	PostWith(ctx context.Context, tx accounting.TxRepository, entries ...accounting.Entry) ([]accounting.Entry, error)
	Committed(ctx context.Context, entries []accounting.Entry)
}

// Service is the costing engine: it keeps per-product quantities and the
// weighted-average buy price in step with the purchase postings.
type Service struct {
	repo   RepositoryPort
	ledger LedgerPoster
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, ledger LedgerPoster, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ledger: ledger, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// ReceivePurchase applies every receipt line under a row lock and posts the
// purchase entry in the same transaction. A purchase order that was already
// posted fails with shared.ErrDuplicateReference and leaves stock untouched.
func (s *Service) ReceivePurchase(ctx context.Context, in ReceiptInput) (ReceiptResult, error) {
	if len(in.Lines) == 0 {
		return ReceiptResult{}, errNoLines
	}
	if in.Purchase.OrderID == "" {
		return ReceiptResult{}, fmt.Errorf("inventory: %w: purchase order id required", shared.ErrInvalidInput)
	}
	total := decimal.Zero
	for _, line := range in.Lines {
		if line.ProductID == "" {
			return ReceiptResult{}, fmt.Errorf("inventory: %w: product id required", shared.ErrInvalidInput)
		}
		if line.Qty < 0 || line.UnitCost < 0 {
			return ReceiptResult{}, ErrInvalidQuantity
		}
		total = total.Add(decimal.NewFromFloat(line.Qty).Mul(decimal.NewFromFloat(line.UnitCost)))
	}
	purchase := in.Purchase
	if purchase.Total == 0 {
		purchase.Total = total.Round(2).InexactFloat64()
	}
	if purchase.Date.IsZero() {
		purchase.Date = s.now()
	}
	if purchase.UserID == "" {
		purchase.UserID = shared.ActorFromContext(ctx)
	}
	var entries []accounting.Entry
	if purchase.Total > 0 {
		built, err := accounting.PurchaseEntries(purchase)
		if err != nil {
			return ReceiptResult{}, err
		}
		entries = built
	}

	// Lock rows in a stable order so concurrent receipts cannot deadlock.
	lines := append([]ReceiptLine(nil), in.Lines...)
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })

	var result ReceiptResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		result = ReceiptResult{}
		touched := map[string]int{}
		for _, line := range lines {
			stock, err := tx.GetStockForUpdate(ctx, line.ProductID)
			if errors.Is(err, ErrStockNotFound) {
				stock = Stock{ProductID: line.ProductID}
			} else if err != nil {
				return err
			}
			stock = receive(stock, line)
			stock.UpdatedAt = s.now()
			if err := tx.UpsertStock(ctx, stock); err != nil {
				return err
			}
			if i, ok := touched[stock.ProductID]; ok {
				result.Stocks[i] = stock
				continue
			}
			touched[stock.ProductID] = len(result.Stocks)
			result.Stocks = append(result.Stocks, stock)
		}
		if len(entries) == 0 || s.ledger == nil {
			return nil
		}
		posted, err := s.ledger.PostWith(ctx, tx, entries...)
		if err != nil {
			return err
		}
		result.Entries = posted
		return nil
	})
	if err != nil {
		return ReceiptResult{}, err
	}
	if s.ledger != nil {
		s.ledger.Committed(ctx, result.Entries)
	}
	s.logger.Info("purchase received",
		slog.String("order", purchase.OrderID),
		slog.Int("lines", len(lines)),
		slog.Float64("total", purchase.Total))
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  purchase.UserID,
			Action:   "inventory.receive",
			Entity:   "purchase_order",
			EntityID: purchase.OrderID,
			Meta:     map[string]any{"lines": len(lines), "total": purchase.Total},
		}); err != nil {
			s.logger.Warn("audit purchase receipt", slog.Any("error", err))
		}
	}
	return result, nil
}

// receive applies one line. Zero quantity leaves the cost unchanged.
func receive(stock Stock, line ReceiptLine) Stock {
	if line.Qty == 0 {
		return stock
	}
	avg := weightedAverage(
		decimal.NewFromFloat(stock.Total()),
		decimal.NewFromFloat(stock.BuyPrice),
		decimal.NewFromFloat(line.Qty),
		decimal.NewFromFloat(line.UnitCost),
	)
	stock.BuyPrice = avg.Round(2).InexactFloat64()
	if line.Location == LocationShop {
		stock.ShopQty += line.Qty
	} else {
		stock.WarehouseQty += line.Qty
	}
	return stock
}

// IssueStock removes quantity from a location and returns the cost of the
// issued goods at the current average buy price.
func (s *Service) IssueStock(ctx context.Context, in IssueInput) (Issue, error) {
	if in.ProductID == "" {
		return Issue{}, fmt.Errorf("inventory: %w: product id required", shared.ErrInvalidInput)
	}
	if in.Qty <= 0 {
		return Issue{}, ErrInvalidQuantity
	}
	if in.Location == "" {
		in.Location = LocationShop
	}
	var out Issue
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		stock, err := tx.GetStockForUpdate(ctx, in.ProductID)
		if err != nil {
			return err
		}
		available := stock.ShopQty
		if in.Location == LocationWarehouse {
			available = stock.WarehouseQty
		}
		if available+1e-9 < in.Qty {
			return fmt.Errorf("%w: %s has %.3f in %s", ErrInsufficientStock, in.ProductID, available, in.Location)
		}
		if in.Location == LocationWarehouse {
			stock.WarehouseQty -= in.Qty
		} else {
			stock.ShopQty -= in.Qty
		}
		stock.UpdatedAt = s.now()
		if err := tx.UpsertStock(ctx, stock); err != nil {
			return err
		}
		out = Issue{
			Stock: stock,
			Cost:  decimal.NewFromFloat(in.Qty).Mul(decimal.NewFromFloat(stock.BuyPrice)).Round(2).InexactFloat64(),
		}
		return nil
	})
	if err != nil {
		return Issue{}, err
	}
	return out, nil
}

// GetStock returns the valuation state of a product.
func (s *Service) GetStock(ctx context.Context, productID string) (Stock, error) {
	if productID == "" {
		return Stock{}, fmt.Errorf("inventory: %w: product id required", shared.ErrInvalidInput)
	}
	return s.repo.GetStock(ctx, productID)
}

// Valuation returns the value of all stock on hand at the current buy prices.
func (s *Service) Valuation(ctx context.Context) (float64, error) {
	v, err := s.repo.Valuation(ctx)
	if err != nil {
		return 0, err
	}
	return shared.Round2(v), nil
}
