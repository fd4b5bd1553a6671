package integration

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/finledger/internal/platform/httpx"
	"github.com/odyssey-erp/finledger/internal/shared"
)

// Handler accepts operational events over HTTP.
type Handler struct {
	logger *slog.Logger
	hooks  *Hooks
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, hooks *Hooks) *Handler {
	return &Handler{logger: logger, hooks: hooks}
}

// MountRoutes registers event and combined cash routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/events", func(r chi.Router) {
		r.Post("/sales", h.handleSale)
		r.Post("/purchases", h.handlePurchase)
		r.Post("/returns", h.handleReturn)
		r.Post("/inventory-adjustments", h.handleAdjustment)
	})
	r.Post("/financial/expenses", h.handleExpense)
	r.Post("/financial/income", h.handleIncome)
}

func (h *Handler) handleSale(w http.ResponseWriter, r *http.Request) {
	var req saleRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	evt, err := req.event(shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.hooks.HandleSaleFinalized(r.Context(), evt)
	h.respond(w, "sale finalized", out, err)
}

func (h *Handler) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	evt, err := req.event(shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.hooks.HandlePurchaseReceived(r.Context(), evt)
	h.respond(w, "purchase received", out, err)
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	var req returnRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in, err := req.input(shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.hooks.HandleSalesReturn(r.Context(), in)
	h.respond(w, "sales return", out, err)
}

func (h *Handler) handleAdjustment(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in, err := req.input(shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.hooks.HandleInventoryAdjustment(r.Context(), in)
	h.respond(w, "inventory adjustment", out, err)
}

func (h *Handler) handleExpense(w http.ResponseWriter, r *http.Request) {
	var req manualRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in, err := req.input(shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.hooks.HandleManualExpense(r.Context(), in)
	h.respond(w, "manual expense", out, err)
}

func (h *Handler) handleIncome(w http.ResponseWriter, r *http.Request) {
	var req manualRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in, err := req.input(shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.hooks.HandleManualIncome(r.Context(), in)
	h.respond(w, "manual income", out, err)
}

func (h *Handler) respond(w http.ResponseWriter, op string, out Outcome, err error) {
	if err != nil {
		h.logger.Error(op+" failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	status := http.StatusCreated
	if out.Replayed {
		status = http.StatusOK
	}
	httpx.JSON(w, status, out)
}
