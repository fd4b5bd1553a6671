package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/finledger/internal/accounting"
	"github.com/odyssey-erp/finledger/internal/platform/db"
	"github.com/odyssey-erp/finledger/internal/shared"
)

// Repository persists product valuation in PostgreSQL.
type Repository struct {
	pool  *pgxpool.Pool
	retry db.RetryPolicy
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool, retry db.RetryPolicy) *Repository {
	return &Repository{pool: pool, retry: retry}
}

// TxRepository exposes transactional operations used by service. Ledger
// writes share the same transaction.
type TxRepository interface {
	accounting.TxRepository
	GetStockForUpdate(ctx context.Context, productID string) (Stock, error)
	UpsertStock(ctx context.Context, stock Stock) error
}

type txRepository struct {
	accounting.TxRepository
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction,
// replaying it on serialization failures.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTxRetry(ctx, r.pool, r.retry, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{TxRepository: accounting.NewTxRepository(tx), tx: tx})
	})
}

const stockColumns = `product_id, warehouse_qty::float8, shop_qty::float8, buy_price::float8, updated_at`

func (r *txRepository) GetStockForUpdate(ctx context.Context, productID string) (Stock, error) {
	var s Stock
	err := r.tx.QueryRow(ctx, `SELECT `+stockColumns+` FROM product_stock WHERE product_id=$1 FOR UPDATE`, productID).
		Scan(&s.ProductID, &s.WarehouseQty, &s.ShopQty, &s.BuyPrice, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stock{}, ErrStockNotFound
		}
		return Stock{}, err
	}
	return s, nil
}

func (r *txRepository) UpsertStock(ctx context.Context, s Stock) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO product_stock (product_id, warehouse_qty, shop_qty, buy_price, updated_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (product_id) DO UPDATE SET warehouse_qty=EXCLUDED.warehouse_qty, shop_qty=EXCLUDED.shop_qty,
buy_price=EXCLUDED.buy_price, updated_at=EXCLUDED.updated_at`,
		s.ProductID, s.WarehouseQty, s.ShopQty, shared.Numeric(s.BuyPrice), s.UpdatedAt)
	return err
}

// GetStock loads the valuation of one product without locking.
func (r *Repository) GetStock(ctx context.Context, productID string) (Stock, error) {
	var s Stock
	err := r.pool.QueryRow(ctx, `SELECT `+stockColumns+` FROM product_stock WHERE product_id=$1`, productID).
		Scan(&s.ProductID, &s.WarehouseQty, &s.ShopQty, &s.BuyPrice, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stock{}, ErrStockNotFound
		}
		return Stock{}, err
	}
	return s, nil
}

// Valuation sums quantity times buy price over every product.
func (r *Repository) Valuation(ctx context.Context) (float64, error) {
	var total float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM((warehouse_qty + shop_qty) * buy_price), 0)::float8 FROM product_stock`).Scan(&total)
	return total, err
}
