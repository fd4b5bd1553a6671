package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/finledger/internal/accounting"
	"github.com/odyssey-erp/finledger/internal/audit"
	"github.com/odyssey-erp/finledger/internal/debt"
	"github.com/odyssey-erp/finledger/internal/integration"
	"github.com/odyssey-erp/finledger/internal/inventory"
	"github.com/odyssey-erp/finledger/internal/observability"
	"github.com/odyssey-erp/finledger/internal/payment"
	"github.com/odyssey-erp/finledger/internal/platform/httpx"
	"github.com/odyssey-erp/finledger/internal/treasury"
	"github.com/odyssey-erp/finledger/jobs"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	Database           Pinger
	AccountingHandler  *accounting.Handler
	DebtHandler        *debt.Handler
	PaymentHandler     *payment.Handler
	TreasuryHandler    *treasury.Handler
	InventoryHandler   *inventory.Handler
	IntegrationHandler *integration.Handler
	AuditHandler       *audit.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with the service defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	if params.Config == nil || !params.Config.IsProduction() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if params.Database != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := params.Database.Ping(ctx); err != nil {
				httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": err.Error()})
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if params.AccountingHandler != nil {
		params.AccountingHandler.MountRoutes(r)
	}
	if params.DebtHandler != nil {
		params.DebtHandler.MountRoutes(r)
	}
	if params.PaymentHandler != nil {
		params.PaymentHandler.MountRoutes(r)
	}
	if params.TreasuryHandler != nil {
		params.TreasuryHandler.MountRoutes(r)
	}
	if params.InventoryHandler != nil {
		params.InventoryHandler.MountRoutes(r)
	}
	if params.IntegrationHandler != nil {
		params.IntegrationHandler.MountRoutes(r)
	}
	if params.AuditHandler != nil {
		params.AuditHandler.MountRoutes(r)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	return r
}
