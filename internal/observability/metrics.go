package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	jobmetrics "github.com/odyssey-erp/finledger/internal/jobs"
)

// Metrics collects the Prometheus metrics of the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	jobs            *jobmetrics.Metrics
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	postings        *prometheus.CounterVec
	postedAmount    *prometheus.CounterVec
	payments        *prometheus.CounterVec
	paidAmount      *prometheus.CounterVec
}

// NewMetrics initialises the registry with HTTP, ledger and job metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "finledger_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "finledger_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	postings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "finledger_ledger_entries_total",
		Help: "Committed ledger entries by entry type.",
	}, []string{"type"})
	postedAmount := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "finledger_ledger_amount_total",
		Help: "Committed ledger amount by entry type.",
	}, []string{"type"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "finledger_payments_total",
		Help: "Recorded payments by debtor type.",
	}, []string{"debtor_type"})
	paidAmount := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "finledger_payments_amount_total",
		Help: "Recorded payment amount by debtor type.",
	}, []string{"debtor_type"})
	registry.MustRegister(requests, duration, postings, postedAmount, payments, paidAmount,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		jobs:            jobmetrics.NewMetrics(registry),
		requestsTotal:   requests,
		requestDuration: duration,
		postings:        postings,
		postedAmount:    postedAmount,
		payments:        payments,
		paidAmount:      paidAmount,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Jobs returns the job metrics registered on the same registry.
func (m *Metrics) Jobs() *jobmetrics.Metrics {
	if m == nil {
		return nil
	}
	return m.jobs
}

// ObservePosting counts a committed ledger entry.
func (m *Metrics) ObservePosting(entryType string, amount float64) {
	if m == nil {
		return
	}
	m.postings.WithLabelValues(entryType).Inc()
	m.postedAmount.WithLabelValues(entryType).Add(amount)
}

// ObservePayment counts a recorded payment.
func (m *Metrics) ObservePayment(debtorType string, amount float64) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(debtorType).Inc()
	m.paidAmount.WithLabelValues(debtorType).Add(amount)
}

// Registerer exposes the registry for custom metrics.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
