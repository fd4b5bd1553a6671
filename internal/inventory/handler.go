package inventory

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/finledger/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the costing engine.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/inventory/stock/{productID}", h.handleStock)
	r.Get("/inventory/valuation", h.handleValuation)
}

func (h *Handler) handleStock(w http.ResponseWriter, r *http.Request) {
	stock, err := h.service.GetStock(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		h.logger.Warn("stock lookup failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"stock": stock, "value": stock.Value()})
}

func (h *Handler) handleValuation(w http.ResponseWriter, r *http.Request) {
	total, err := h.service.Valuation(r.Context())
	if err != nil {
		h.logger.Error("stock valuation failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]float64{"value": total})
}
