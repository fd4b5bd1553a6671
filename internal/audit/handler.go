package audit

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/finledger/internal/platform/httpx"
	"github.com/odyssey-erp/finledger/internal/shared"
)

const (
	exportRateLimit  = 10
	exportRateWindow = time.Minute
	defaultRange     = 7 * 24 * time.Hour
	maxRange         = 90 * 24 * time.Hour
)

// TimelineService is the read contract the handler depends on.
type TimelineService interface {
	Timeline(ctx context.Context, filters TimelineFilters) (Result, error)
	Export(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error)
}

// Handler exposes the audit timeline.
type Handler struct {
	logger  *slog.Logger
	service TimelineService
	now     func() time.Time
}

// NewHandler builds an audit Handler.
func NewHandler(logger *slog.Logger, service TimelineService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, now: time.Now}
}

// MountRoutes registers the timeline and its rate-limited CSV export.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(exportRateLimit, exportRateWindow,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "export rate limit exceeded")
		}),
	)
	r.Route("/audit", func(r chi.Router) {
		r.Get("/", h.handleTimeline)
		r.With(limiter).Get("/export.csv", h.handleExport)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if actor := shared.ActorFromContext(r.Context()); actor != shared.SystemActor {
		return "actor:" + actor, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.fail(w, "audit timeline", err)
		return
	}
	if result.Rows == nil {
		result.Rows = []TimelineRow{}
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.fail(w, "audit export", err)
		return
	}
	body, err := WriteCSV(rows)
	if err != nil {
		h.fail(w, "encode audit csv", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-timeline.csv"`)
	if _, err := w.Write(body); err != nil {
		h.logger.Warn("write audit csv", slog.Any("error", err))
	}
}

// parseFilters defaults to the last seven days and caps the window at 90.
func (h *Handler) parseFilters(r *http.Request) (TimelineFilters, error) {
	q := r.URL.Query()
	to, err := httpx.ParseDate(q.Get("to"))
	if err != nil {
		return TimelineFilters{}, err
	}
	if to.IsZero() {
		y, m, d := h.now().UTC().Date()
		to = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	from, err := httpx.ParseDate(q.Get("from"))
	if err != nil {
		return TimelineFilters{}, err
	}
	if from.IsZero() {
		from = to.Add(-defaultRange)
	}
	if from.After(to) {
		return TimelineFilters{}, fmt.Errorf("%w: from is after to", httpx.ErrValidation)
	}
	if to.Sub(from) > maxRange {
		return TimelineFilters{}, fmt.Errorf("%w: range exceeds 90 days", httpx.ErrValidation)
	}
	return TimelineFilters{
		From:     from,
		To:       httpx.EndOfDay(to),
		Actor:    q.Get("actor"),
		Entity:   q.Get("entity"),
		EntityID: q.Get("entityId"),
		Action:   q.Get("action"),
		Page:     httpx.QueryInt(r, "page", 1),
		PageSize: httpx.QueryInt(r, "pageSize", defaultPageSize),
	}, nil
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op+" failed", slog.Any("error", err))
	httpx.RespondError(w, err)
}
