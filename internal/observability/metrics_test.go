package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/finledger/internal/accounting"
	"github.com/odyssey-erp/finledger/internal/payment"
)

var (
	_ accounting.PostingObserver = (*Metrics)(nil)
	_ payment.Observer           = (*Metrics)(nil)
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsHandlerExposesJobMetrics(t *testing.T) {
	metrics := NewMetrics()
	metrics.Jobs().Track("ledger:integrity").End(nil)

	body := scrape(t, metrics)
	require.Contains(t, body, `finledger_jobs_total{job="ledger:integrity",status="success"} 1`)
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	require.Contains(t, body, `finledger_http_requests_total{code="418",route="/test"} 1`)
	require.Contains(t, body, `finledger_http_request_duration_seconds_bucket{route="/test"`)
}

func TestDomainCounters(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObservePosting("SALE", 120.5)
	metrics.ObservePosting("SALE", 79.5)
	metrics.ObservePayment("Customer", 50)

	body := scrape(t, metrics)
	require.Contains(t, body, `finledger_ledger_entries_total{type="SALE"} 2`)
	require.Contains(t, body, `finledger_ledger_amount_total{type="SALE"} 200`)
	require.True(t, strings.Contains(body, `finledger_payments_total{debtor_type="Customer"} 1`))

	var nilMetrics *Metrics
	nilMetrics.ObservePosting("SALE", 1)
	nilMetrics.ObservePayment("Customer", 1)
}
