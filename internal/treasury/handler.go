package treasury

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/finledger/internal/platform/httpx"
	"github.com/odyssey-erp/finledger/internal/shared"
)

// Handler exposes cashbox endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers HTTP routes for the treasury.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/financial/treasury", func(r chi.Router) {
		r.Get("/", h.handleSummary)
		r.Get("/daily", h.handleDaily)
		r.Get("/history", h.handleHistory)
		r.Get("/transactions", h.handleTransactions)
		r.Post("/income", h.handleIncome)
		r.Post("/expenses", h.handleExpense)
		r.Post("/reconcile", h.handleReconcile)
	})
}

func (h *Handler) dateRange(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	from, err := httpx.ParseDate(q.Get("startDate"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := httpx.ParseDate(q.Get("endDate"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, httpx.EndOfDay(to), nil
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.dateRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	summary, err := h.service.GetSummary(r.Context(), from, to)
	if err != nil {
		h.fail(w, "treasury summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) handleDaily(w http.ResponseWriter, r *http.Request) {
	date, err := httpx.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if date.IsZero() {
		date = time.Now()
	}
	day, err := h.service.GetDailyCashbox(r.Context(), date)
	if err != nil {
		h.fail(w, "daily cashbox", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"cashbox": day})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.dateRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	days, err := h.service.GetCashboxHistory(r.Context(), from, to)
	if err != nil {
		h.fail(w, "cashbox history", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"history": days})
}

func (h *Handler) handleTransactions(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.dateRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	txs, err := h.service.ListTransactions(r.Context(), TransactionFilter{From: from, To: to, Type: TxType(r.URL.Query().Get("type"))})
	if err != nil {
		h.fail(w, "treasury transactions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

type manualRequest struct {
	Date     string  `json:"date"`
	Amount   float64 `json:"amount" validate:"gt=0"`
	Reason   string  `json:"reason" validate:"required,max=500"`
	Category string  `json:"category" validate:"omitempty,oneof=rent utilities salaries supplies other"`
}

func (h *Handler) decodeManual(r *http.Request) (ManualInput, error) {
	var req manualRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		return ManualInput{}, err
	}
	date, err := httpx.ParseDate(req.Date)
	if err != nil {
		return ManualInput{}, err
	}
	return ManualInput{
		Date:     date,
		Amount:   req.Amount,
		Reason:   req.Reason,
		Category: req.Category,
		UserID:   shared.ActorFromContext(r.Context()),
	}, nil
}

func (h *Handler) handleIncome(w http.ResponseWriter, r *http.Request) {
	in, err := h.decodeManual(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	day, err := h.service.AddManualIncome(r.Context(), in)
	if err != nil {
		h.fail(w, "manual income", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"cashbox": day})
}

func (h *Handler) handleExpense(w http.ResponseWriter, r *http.Request) {
	in, err := h.decodeManual(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	day, err := h.service.AddManualExpense(r.Context(), in)
	if err != nil {
		h.fail(w, "manual expense", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"cashbox": day})
}

type reconcileRequest struct {
	Date                 string   `json:"date" validate:"required"`
	ActualClosingBalance *float64 `json:"actualClosingBalance" validate:"required"`
	Notes                string   `json:"notes" validate:"max=1000"`
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, err := httpx.ParseDate(req.Date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	day, err := h.service.Reconcile(r.Context(), date, *req.ActualClosingBalance, shared.ActorFromContext(r.Context()), req.Notes)
	if err != nil {
		h.fail(w, "reconcile cashbox", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"cashbox": day})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op+" failed", slog.Any("error", err))
	httpx.RespondError(w, err)
}
