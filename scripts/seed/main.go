package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/odyssey-erp/finledger/internal/accounting"
	"github.com/odyssey-erp/finledger/internal/app"
	"github.com/odyssey-erp/finledger/internal/debt"
	"github.com/odyssey-erp/finledger/internal/integration"
	"github.com/odyssey-erp/finledger/internal/inventory"
	"github.com/odyssey-erp/finledger/internal/payment"
	"github.com/odyssey-erp/finledger/internal/platform/db"
	"github.com/odyssey-erp/finledger/internal/shared"
)

// Seeds a demo book by replaying business events through the services.
func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	ctx := shared.ContextWithActor(context.Background(), "seed")
	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{})
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	svc := app.NewServices(cfg, pool, nil, nil, app.NewLogger(cfg))
	day := time.Now().UTC().AddDate(0, 0, -45).Truncate(24 * time.Hour)

	fmt.Println("→ Seeding purchases...")
	payable, err := svc.Hooks.HandlePurchaseReceived(ctx, integration.PurchaseReceived{
		Receipt: inventory.ReceiptInput{
			Purchase: accounting.PurchaseInput{OrderID: "seed-po-1", OrderNumber: "PO-0001", PaymentType: "credit", Date: day},
			Lines: []inventory.ReceiptLine{
				{ProductID: "SKU-RICE", Qty: 100, UnitCost: 9.5},
				{ProductID: "SKU-OIL", Qty: 40, UnitCost: 22},
			},
		},
		SupplierID: "supplier-1",
	})
	if err != nil {
		log.Fatalf("seed purchase: %v", err)
	}
	if _, err := svc.Hooks.HandlePurchaseReceived(ctx, integration.PurchaseReceived{
		Receipt: inventory.ReceiptInput{
			Purchase: accounting.PurchaseInput{OrderID: "seed-po-2", OrderNumber: "PO-0002", PaymentType: "cash", Date: day},
			Lines:    []inventory.ReceiptLine{{ProductID: "SKU-RICE", Qty: 50, UnitCost: 10.1}},
		},
	}); err != nil {
		log.Fatalf("seed cash purchase: %v", err)
	}

	fmt.Println("→ Seeding sales...")
	sales := []integration.SaleFinalized{
		{Sale: accounting.SaleInput{InvoiceID: "seed-inv-1", InvoiceNumber: "INV-0001", PaymentType: "credit", Total: 900, TotalCost: 610, Date: day.AddDate(0, 0, 1)}, CustomerID: "customer-1"},
		{Sale: accounting.SaleInput{InvoiceID: "seed-inv-2", InvoiceNumber: "INV-0002", PaymentType: "cash", Total: 240, TotalCost: 160, Date: day.AddDate(0, 0, 1)}},
		{Sale: accounting.SaleInput{InvoiceID: "seed-inv-3", InvoiceNumber: "INV-0003", PaymentType: "credit", Total: 1500, TotalCost: 1020, Date: day.AddDate(0, 0, 2)}, CustomerID: "customer-2", DueDate: day.AddDate(0, 0, 5)},
	}
	var receivable *debt.Debt
	for _, s := range sales {
		out, err := svc.Hooks.HandleSaleFinalized(ctx, s)
		if err != nil {
			log.Fatalf("seed sale %s: %v", s.Sale.InvoiceNumber, err)
		}
		if receivable == nil && out.Debt != nil {
			receivable = out.Debt
		}
	}

	fmt.Println("→ Seeding payments and plans...")
	if receivable != nil {
		if _, err := svc.Payments.RecordPayment(ctx, payment.RecordInput{
			DebtID: receivable.ID, Amount: 300, Method: payment.MethodCash, Date: day.AddDate(0, 0, 10),
		}); err != nil {
			log.Fatalf("seed payment: %v", err)
		}
		if _, err := svc.Debts.CreateInstallmentPlan(ctx, debt.PlanInput{
			DebtID: receivable.ID, Count: 3, Interval: debt.IntervalMonthly, StartDate: day.AddDate(0, 1, 0),
		}); err != nil {
			log.Fatalf("seed plan: %v", err)
		}
	}
	if payable.Debt != nil {
		if _, err := svc.Payments.RecordPayment(ctx, payment.RecordInput{
			DebtID: payable.Debt.ID, Amount: 500, Method: payment.MethodBankTransfer, Date: day.AddDate(0, 0, 7),
		}); err != nil {
			log.Fatalf("seed supplier payment: %v", err)
		}
	}

	fmt.Println("→ Seeding cashbox...")
	if _, err := svc.Hooks.HandleManualExpense(ctx, accounting.ManualInput{
		Amount: 120, Category: "utilities", Description: "Electricity", Date: day.AddDate(0, 0, 3),
	}); err != nil {
		log.Fatalf("seed expense: %v", err)
	}

	if _, err := svc.Debts.MarkOverdue(ctx); err != nil {
		log.Fatalf("seed overdue sweep: %v", err)
	}
	tb, err := svc.Accounting.GetTrialBalance(ctx, time.Now())
	if err != nil {
		log.Fatalf("trial balance: %v", err)
	}
	fmt.Printf("✓ Seed complete: debit %.2f credit %.2f balanced=%t\n", tb.TotalDebit, tb.TotalCredit, tb.IsBalanced)
}
