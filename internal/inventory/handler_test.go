package inventory

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/finledger/internal/accounting"
)

func TestHandlerStockAndValuation(t *testing.T) {
	repo := newMemoryRepo()
	svc := newService(repo)
	_, err := svc.ReceivePurchase(context.Background(), ReceiptInput{
		Purchase: accounting.PurchaseInput{OrderID: "po-h", OrderNumber: "PO-H", PaymentType: "cash"},
		Lines:    []ReceiptLine{{ProductID: "sku-1", Qty: 5, UnitCost: 4}},
	})
	require.NoError(t, err)

	r := chi.NewRouter()
	NewHandler(slog.Default(), svc).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inventory/valuation", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]float64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 20.0, body["value"])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inventory/stock/sku-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inventory/stock/missing", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
