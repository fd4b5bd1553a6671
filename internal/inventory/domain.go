package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/odyssey-erp/finledger/internal/accounting"
	"github.com/odyssey-erp/finledger/internal/shared"
)

// Location is where a quantity of stock is held.
type Location string

const (
	LocationWarehouse Location = "warehouse"
	LocationShop      Location = "shop"
)

// Stock is the valuation state of one product.
type Stock struct {
	ProductID    string    `json:"productId"`
	WarehouseQty float64   `json:"warehouseQty"`
	ShopQty      float64   `json:"shopQty"`
	BuyPrice     float64   `json:"buyPrice"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Total returns the quantity across locations.
func (s Stock) Total() float64 {
	return s.WarehouseQty + s.ShopQty
}

// Value returns the stock value at the current average cost.
func (s Stock) Value() float64 {
	return shared.Round2(s.Total() * s.BuyPrice)
}

// ReceiptLine is one product line of a purchase receipt.
type ReceiptLine struct {
	ProductID string   `json:"productId" validate:"required"`
	Qty       float64  `json:"qty" validate:"gte=0"`
	UnitCost  float64  `json:"unitCost" validate:"gte=0"`
	Location  Location `json:"location" validate:"omitempty,oneof=warehouse shop"`
}

// ReceiptInput is a received purchase order. Purchase.Total is derived from
// the lines when left at zero.
type ReceiptInput struct {
	Purchase accounting.PurchaseInput
	Lines    []ReceiptLine
}

// ReceiptResult reports the updated stock and the posted purchase entry.
type ReceiptResult struct {
	Stocks  []Stock            `json:"stocks"`
	Entries []accounting.Entry `json:"entries"`
}

// IssueInput removes stock for a sale.
type IssueInput struct {
	ProductID string
	Qty       float64
	Location  Location
}

// Issue reports the stock after removal and the cost of the issued quantity.
type Issue struct {
	Stock Stock   `json:"stock"`
	Cost  float64 `json:"cost"`
}

var (
	// ErrStockNotFound indicates the product has no stock row yet.
	ErrStockNotFound = fmt.Errorf("inventory: stock %w", shared.ErrNotFound)
	// ErrInvalidQuantity indicates a negative quantity or cost.
	ErrInvalidQuantity = fmt.Errorf("inventory: %w: negative quantity or cost", shared.ErrInvalidAmount)
	// ErrInsufficientStock indicates an issue larger than the available quantity.
	ErrInsufficientStock = fmt.Errorf("inventory: %w: insufficient stock", shared.ErrInvalidState)
	errNoLines           = errors.New("inventory: receipt requires at least one line")
)
