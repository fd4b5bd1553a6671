package debt

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/finledger/internal/platform/httpx"
	"github.com/odyssey-erp/finledger/internal/shared"
)

// Handler exposes debt endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers HTTP routes for debts and schedules.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/financial/debts", h.handleList)
	r.Post("/financial/debts", h.handleCreate)
	r.Get("/financial/debts/{id}", h.handleGet)
	r.Post("/financial/debts/{id}/write-off", h.handleWriteOff)
	r.Get("/financial/debts/{id}/installments", h.handleInstallments)
	r.Post("/financial/debts/{id}/installments", h.handlePlan)
	r.Get("/financial/schedule", h.handleListSchedules)
	r.Post("/financial/schedule", h.handleSaveSchedules)
	r.Get("/financial/debt-overview", h.handleOverview)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dueFrom, err := httpx.ParseDate(q.Get("dueFrom"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	dueTo, err := httpx.ParseDate(q.Get("dueTo"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	page, err := h.service.GetDebts(r.Context(), Filter{
		DebtorID:   q.Get("debtorId"),
		DebtorType: DebtorType(q.Get("debtorType")),
		Status:     Status(q.Get("status")),
		DueFrom:    dueFrom,
		DueTo:      httpx.EndOfDay(dueTo),
	}, shared.Page{Page: httpx.QueryInt(r, "page", 1), Limit: httpx.QueryInt(r, "limit", shared.DefaultPageLimit)})
	if err != nil {
		h.fail(w, "list debts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

type createRequest struct {
	DebtorType    string  `json:"debtorType" validate:"required,oneof=Customer Supplier"`
	DebtorID      string  `json:"debtorId" validate:"required"`
	Amount        float64 `json:"amount" validate:"gt=0"`
	DueDate       string  `json:"dueDate"`
	ReferenceType string  `json:"referenceType" validate:"required"`
	ReferenceID   string  `json:"referenceId" validate:"required"`
	Description   string  `json:"description" validate:"max=500"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	due, err := httpx.ParseDate(req.DueDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	d, err := h.service.CreateDebt(r.Context(), CreateInput{
		DebtorType:    DebtorType(req.DebtorType),
		DebtorID:      req.DebtorID,
		Amount:        req.Amount,
		DueDate:       due,
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
		Description:   req.Description,
		CreatedBy:     shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, "create debt", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"debt": d})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := debtID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	d, err := h.service.GetDebt(r.Context(), id)
	if err != nil {
		h.fail(w, "get debt", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"debt": d})
}

type writeOffRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

func (h *Handler) handleWriteOff(w http.ResponseWriter, r *http.Request) {
	id, err := debtID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req writeOffRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	d, err := h.service.WriteOff(r.Context(), id, req.Reason, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, "write off debt", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"debt": d})
}

func (h *Handler) handleInstallments(w http.ResponseWriter, r *http.Request) {
	id, err := debtID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	schedules, err := h.service.GetInstallments(r.Context(), id)
	if err != nil {
		h.fail(w, "list installments", err)
		return
	}
	if schedules == nil {
		schedules = []Schedule{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"installments": schedules})
}

type planRequest struct {
	Installments int    `json:"installments" validate:"gte=1,lte=120"`
	Interval     string `json:"interval" validate:"required,oneof=daily weekly monthly"`
	StartDate    string `json:"startDate"`
}

func (h *Handler) handlePlan(w http.ResponseWriter, r *http.Request) {
	id, err := debtID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req planRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	start, err := httpx.ParseDate(req.StartDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	plan, err := h.service.CreateInstallmentPlan(r.Context(), PlanInput{
		DebtID:    id,
		Count:     req.Installments,
		Interval:  Interval(req.Interval),
		StartDate: start,
		UserID:    shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, "create installment plan", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"installments": plan})
}

func (h *Handler) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	schedules, err := h.service.ListSchedules(r.Context(), DebtorType(q.Get("entityType")), q.Get("entityId"))
	if err != nil {
		h.fail(w, "list schedules", err)
		return
	}
	if schedules == nil {
		schedules = []Schedule{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"schedules": schedules})
}

type scheduleItem struct {
	Amount  float64 `json:"amount" validate:"gt=0"`
	DueDate string  `json:"dueDate" validate:"required"`
	Notes   string  `json:"notes" validate:"max=500"`
}

type saveSchedulesRequest struct {
	EntityType string         `json:"entityType" validate:"required,oneof=Customer Supplier"`
	EntityID   string         `json:"entityId" validate:"required"`
	DebtID     string         `json:"debtId" validate:"omitempty,uuid"`
	Schedules  []scheduleItem `json:"schedules" validate:"required,min=1,dive"`
}

func (h *Handler) handleSaveSchedules(w http.ResponseWriter, r *http.Request) {
	var req saveSchedulesRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in := SaveSchedulesInput{
		EntityType: DebtorType(req.EntityType),
		EntityID:   req.EntityID,
		UserID:     shared.ActorFromContext(r.Context()),
	}
	if req.DebtID != "" {
		id, err := uuid.Parse(req.DebtID)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: debt id", httpx.ErrValidation))
			return
		}
		in.DebtID = &id
	}
	for _, item := range req.Schedules {
		due, err := httpx.ParseDate(item.DueDate)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		in.Schedules = append(in.Schedules, ScheduleInput{Amount: item.Amount, DueDate: due, Notes: item.Notes})
	}
	saved, err := h.service.SaveSchedules(r.Context(), in)
	if err != nil {
		h.fail(w, "save schedules", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"schedules": saved})
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.GetDebtOverview(r.Context())
	if err != nil {
		h.fail(w, "debt overview", err)
		return
	}
	httpx.JSON(w, http.StatusOK, overview)
}

func debtID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: debt id", httpx.ErrValidation)
	}
	return id, nil
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op+" failed", slog.Any("error", err))
	httpx.RespondError(w, err)
}
