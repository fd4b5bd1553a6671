package accounting

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/finledger/internal/platform/httpx"
	"github.com/odyssey-erp/finledger/internal/shared"
)

// Handler wires the ledger endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers HTTP routes for the ledger module.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/accounting", func(r chi.Router) {
		r.Get("/entries", h.handleEntries)
		r.Get("/ledger", h.handleLedger)
		r.Get("/trial-balance", h.handleTrialBalance)
		r.Get("/accounts", h.handleAccounts)
		r.Post("/expenses", h.handleExpense)
		r.Post("/income", h.handleIncome)
	})
}

func (h *Handler) handleEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := httpx.ParseDate(q.Get("from"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := httpx.ParseDate(q.Get("to"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entries, err := h.service.GetEntries(r.Context(), EntryFilter{
		From:    from,
		To:      httpx.EndOfDay(to),
		Type:    EntryType(q.Get("type")),
		Account: Account(q.Get("account")),
		Limit:   httpx.QueryInt(r, "limit", defaultEntryLimit),
	})
	if err != nil {
		h.fail(w, "list entries", err)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) handleLedger(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	account, err := ParseAccount(q.Get("account"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	from, err := httpx.ParseDate(q.Get("from"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := httpx.ParseDate(q.Get("to"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ledger, err := h.service.GetLedger(r.Context(), account, DateRange{From: from, To: httpx.EndOfDay(to)})
	if err != nil {
		h.fail(w, "ledger", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ledger": ledger})
}

func (h *Handler) handleTrialBalance(w http.ResponseWriter, r *http.Request) {
	asOf, err := httpx.ParseDate(r.URL.Query().Get("asOf"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tb, err := h.service.GetTrialBalance(r.Context(), httpx.EndOfDay(asOf))
	if err != nil {
		h.fail(w, "trial balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"trialBalance": tb})
}

func (h *Handler) handleAccounts(w http.ResponseWriter, _ *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": h.service.Accounts()})
}

type manualRequest struct {
	Amount      float64 `json:"amount" validate:"gt=0"`
	Category    string  `json:"category" validate:"omitempty,oneof=rent utilities salaries supplies other"`
	Description string  `json:"description" validate:"required,max=500"`
	Date        string  `json:"date"`
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
	if date.IsZero() {
		date = time.Now()
	}
	return ManualInput{
		Amount:      req.Amount,
		Category:    req.Category,
		Description: req.Description,
		Date:        date,
		UserID:      shared.ActorFromContext(r.Context()),
	}, nil
}

func (h *Handler) handleExpense(w http.ResponseWriter, r *http.Request) {
	in, err := h.decodeManual(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.RecordExpense(r.Context(), in)
	if err != nil {
		h.fail(w, "record expense", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"entry": entry})
}

func (h *Handler) handleIncome(w http.ResponseWriter, r *http.Request) {
	in, err := h.decodeManual(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.RecordIncome(r.Context(), in)
	if err != nil {
		h.fail(w, "record income", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"entry": entry})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op+" failed", slog.Any("error", err))
	httpx.RespondError(w, err)
}
