package payment

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/finledger/internal/platform/httpx"
	"github.com/odyssey-erp/finledger/internal/shared"
)

// Handler exposes payment endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers HTTP routes for payments.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/financial/payments", h.handleRecord)
	r.Post("/financial/settle-debt", h.handleSettle)
	r.Get("/financial/debts/{id}/payments", h.handleList)
}

type recordRequest struct {
	DebtID          string  `json:"debtId" validate:"required,uuid"`
	Amount          float64 `json:"amount" validate:"gt=0"`
	Method          string  `json:"method" validate:"omitempty,oneof=cash bank_transfer check credit_card"`
	ReferenceNumber string  `json:"referenceNumber" validate:"max=100"`
	Notes           string  `json:"notes" validate:"max=500"`
	Date            string  `json:"date"`
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	debtID, err := uuid.Parse(req.DebtID)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: debt id", httpx.ErrValidation))
		return
	}
	date, err := httpx.ParseDate(req.Date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	receipt, err := h.service.RecordPayment(r.Context(), RecordInput{
		DebtID:          debtID,
		Amount:          req.Amount,
		Method:          req.Method,
		ReferenceNumber: req.ReferenceNumber,
		Notes:           req.Notes,
		Date:            date,
		UserID:          shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, "record payment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, receipt)
}

type settleRequest struct {
	Type   string  `json:"type" validate:"required,oneof=receivable payable"`
	ID     string  `json:"id" validate:"required"`
	Amount float64 `json:"amount" validate:"gt=0"`
	Method string  `json:"method" validate:"omitempty,oneof=cash bank_transfer check credit_card"`
	Note   string  `json:"note" validate:"max=500"`
}

func (h *Handler) handleSettle(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	receipt, err := h.service.Settle(r.Context(), SettleInput{
		Type:           SettleType(req.Type),
		ID:             req.ID,
		Amount:         req.Amount,
		Method:         req.Method,
		Note:           req.Note,
		UserID:         shared.ActorFromContext(r.Context()),
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.fail(w, "settle debt", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"remainingAmount": receipt.Debt.RemainingAmount,
		"status":          receipt.Debt.Status,
		"receipt":         receipt,
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	debtID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: debt id", httpx.ErrValidation))
		return
	}
	payments, err := h.service.GetDebtPayments(r.Context(), debtID)
	if err != nil {
		h.fail(w, "list payments", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payments": payments})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op+" failed", slog.Any("error", err))
	httpx.RespondError(w, err)
}
