package integration

import (
	"time"

	"github.com/odyssey-erp/finledger/internal/accounting"
	"github.com/odyssey-erp/finledger/internal/inventory"
	"github.com/odyssey-erp/finledger/internal/platform/httpx"
)

type saleRequest struct {
	InvoiceID     string  `json:"invoiceId" validate:"required"`
	InvoiceNumber string  `json:"invoiceNumber" validate:"required"`
	PaymentType   string  `json:"paymentType" validate:"required,oneof=cash bank credit"`
	Total         float64 `json:"total" validate:"gt=0"`
	TotalCost     float64 `json:"totalCost" validate:"gte=0"`
	CustomerID    string  `json:"customerId" validate:"required_if=PaymentType credit"`
	Date          string  `json:"date"`
	DueDate       string  `json:"dueDate"`
}

func (r saleRequest) event(userID string) (SaleFinalized, error) {
	date, due, err := parseDates(r.Date, r.DueDate)
	if err != nil {
		return SaleFinalized{}, err
	}
	return SaleFinalized{
		Sale: accounting.SaleInput{
			InvoiceID:     r.InvoiceID,
			InvoiceNumber: r.InvoiceNumber,
			PaymentType:   r.PaymentType,
			Total:         r.Total,
			TotalCost:     r.TotalCost,
			Date:          date,
			UserID:        userID,
		},
		CustomerID: r.CustomerID,
		DueDate:    due,
	}, nil
}

type purchaseRequest struct {
	OrderID     string                  `json:"orderId" validate:"required"`
	OrderNumber string                  `json:"orderNumber" validate:"required"`
	PaymentType string                  `json:"paymentType" validate:"required,oneof=credit bank cash wallet"`
	Total       float64                 `json:"total" validate:"gte=0"`
	SupplierID  string                  `json:"supplierId" validate:"required_if=PaymentType credit"`
	Lines       []inventory.ReceiptLine `json:"lines" validate:"required,min=1,dive"`
	Date        string                  `json:"receivedDate"`
	DueDate     string                  `json:"dueDate"`
}

func (r purchaseRequest) event(userID string) (PurchaseReceived, error) {
	date, due, err := parseDates(r.Date, r.DueDate)
	if err != nil {
		return PurchaseReceived{}, err
	}
	return PurchaseReceived{
		Receipt: inventory.ReceiptInput{
			Purchase: accounting.PurchaseInput{
				OrderID:     r.OrderID,
				OrderNumber: r.OrderNumber,
				PaymentType: r.PaymentType,
				Total:       r.Total,
				Date:        date,
				UserID:      userID,
			},
			Lines: r.Lines,
		},
		SupplierID: r.SupplierID,
		DueDate:    due,
	}, nil
}

type returnRequest struct {
	ReturnID     string  `json:"returnId" validate:"required"`
	ReturnNumber string  `json:"returnNumber" validate:"required"`
	RefundType   string  `json:"refundType" validate:"required,oneof=cash credit"`
	TotalRefund  float64 `json:"totalRefund" validate:"gt=0"`
	TotalCost    float64 `json:"totalCost" validate:"gte=0"`
	Date         string  `json:"date"`
}

func (r returnRequest) input(userID string) (accounting.ReturnInput, error) {
	date, err := httpx.ParseDate(r.Date)
	if err != nil {
		return accounting.ReturnInput{}, err
	}
	return accounting.ReturnInput{
		ReturnID:     r.ReturnID,
		ReturnNumber: r.ReturnNumber,
		RefundType:   r.RefundType,
		TotalRefund:  r.TotalRefund,
		TotalCost:    r.TotalCost,
		Date:         date,
		UserID:       userID,
	}, nil
}

type adjustmentRequest struct {
	AdjustmentID string  `json:"adjustmentId" validate:"required"`
	Number       string  `json:"number" validate:"required"`
	ValueImpact  float64 `json:"valueImpact"`
	Date         string  `json:"date"`
}

func (r adjustmentRequest) input(userID string) (accounting.AdjustmentInput, error) {
	date, err := httpx.ParseDate(r.Date)
	if err != nil {
		return accounting.AdjustmentInput{}, err
	}
	return accounting.AdjustmentInput{
		AdjustmentID: r.AdjustmentID,
		Number:       r.Number,
		ValueImpact:  r.ValueImpact,
		Date:         date,
		UserID:       userID,
	}, nil
}

type manualRequest struct {
	Amount   float64 `json:"amount" validate:"gt=0"`
	Reason   string  `json:"reason" validate:"required,max=500"`
	Category string  `json:"category" validate:"omitempty,oneof=rent utilities salaries supplies other"`
	Date     string  `json:"date"`
}

func (r manualRequest) input(userID string) (accounting.ManualInput, error) {
	date, err := httpx.ParseDate(r.Date)
	if err != nil {
		return accounting.ManualInput{}, err
	}
	return accounting.ManualInput{
		Amount:      r.Amount,
		Category:    r.Category,
		Description: r.Reason,
		Date:        date,
		UserID:      userID,
	}, nil
}

func parseDates(rawDate, rawDue string) (time.Time, time.Time, error) {
	date, err := httpx.ParseDate(rawDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	due, err := httpx.ParseDate(rawDue)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return date, due, nil
}
