package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"context"
	"encoding/csv"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"creditgate/internal/application/models"
	"creditgate/internal/application/service"
	"creditgate/internal/rules"
	"creditgate/internal/validation"
	dErrors "creditgate/pkg/domainerrors"
	"creditgate/pkg/platform/httputil"
	"creditgate/pkg/requestcontext"
)

// Allowed page sizes for search. Anything else is rejected so clients
// cannot request unbounded pages.
var allowedLimits = map[int]bool{5: true, 10: true, 50: true}

// Service defines the application operations the handler consumes.
type Service interface {
	Submit(ctx context.Context, req service.SubmitRequest) (*models.Application, *validation.Decision, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Application, error)
	ListMine(ctx context.Context) ([]*models.Application, error)
	History(ctx context.Context, id uuid.UUID) ([]*models.TransitionEvent, error)
	Transition(ctx context.Context, id uuid.UUID, target models.Status, expectedVersion int64) (*models.Application, error)
	Cancel(ctx context.Context, id uuid.UUID, expectedVersion int64) (*models.Application, error)
	Search(ctx context.Context, filters models.Filters, page, limit int) (*models.Page, error)
	Export(ctx context.Context, filters models.Filters, fields []string) ([]string, [][]string, error)
}

// Handler wires application endpoints to the application service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an application handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts application endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/applications", func(r chi.Router) {
		r.Post("/", h.HandleSubmit)
		r.Get("/", h.HandleListMine)
		r.Get("/search", h.HandleSearch)
		r.Get("/export", h.HandleExport)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Get("/history", h.HandleHistory)
			r.Post("/decision", h.HandleDecide)
			r.Post("/cancel", h.HandleCancel)
		})
	})
}

// HandleSubmit handles POST /applications.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SubmitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	app, decision, err := h.service.Submit(ctx, req.ToService())
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeValidationBlocked) && decision != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, &RejectionResponse{
				Error:      string(dErrors.CodeValidationBlocked),
				Violations: violationBodies(decision.Violations),
				Skipped:    skippedNames(decision),
			})
			return
		}
		h.logger.ErrorContext(ctx, "submission failed",
			"request_id", requestID,
			"jurisdiction", req.Jurisdiction,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, &SubmitResponse{
		Application: FromApplication(app),
		Violations:  violationBodies(decision.Violations),
		Skipped:     skippedNames(decision),
	})
}

// HandleGet handles GET /applications/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	app, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromApplication(app))
}

// HandleListMine handles GET /applications.
func (h *Handler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	apps, err := h.service.ListMine(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]*ApplicationResponse, 0, len(apps))
	for _, app := range apps {
		out = append(out, FromApplication(app))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// HandleHistory handles GET /applications/{id}/history.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	events, err := h.service.History(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromEvents(events))
}

// HandleDecide handles POST /applications/{id}/decision.
func (h *Handler) HandleDecide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[DecideRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	app, err := h.service.Transition(ctx, id, models.Status(req.Status), req.ExpectedVersion)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromApplication(app))
}

// HandleCancel handles POST /applications/{id}/cancel.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var expectedVersion int64
	if r.ContentLength > 0 {
		req, ok := httputil.DecodeAndPrepare[CancelRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
		if !ok {
			return
		}
		expectedVersion = req.ExpectedVersion
	}

	app, err := h.service.Cancel(ctx, id, expectedVersion)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromApplication(app))
}

// HandleSearch handles GET /applications/search.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	filters, page, limit, err := parseSearchQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.service.Search(r.Context(), filters, page, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromPage(result, page, limit))
}

// HandleExport handles GET /applications/export, streaming CSV.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	filters, _, _, err := parseSearchQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var fields []string
	if raw := strings.TrimSpace(r.URL.Query().Get("fields")); raw != "" {
		for _, f := range strings.Split(raw, ",") {
			fields = append(fields, strings.TrimSpace(f))
		}
	}

	header, rows, err := h.service.Export(r.Context(), filters, fields)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="applications.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write(header)
	for _, row := range rows {
		_ = cw.Write(row)
	}
	cw.Flush()
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid application id"))
		return uuid.UUID{}, false
	}
	return id, true
}

func parseSearchQuery(r *http.Request) (models.Filters, int, int, error) {
	q := r.URL.Query()
	var filters models.Filters

	if raw := strings.TrimSpace(q.Get("jurisdictions")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			j := rules.Jurisdiction(strings.TrimSpace(part))
			if !j.Valid() {
				return filters, 0, 0, dErrors.Newf(dErrors.CodeBadRequest, "unsupported jurisdiction %q", string(j))
			}
			filters.Jurisdictions = append(filters.Jurisdictions, j)
		}
	}
	filters.DocumentSubstring = strings.TrimSpace(q.Get("document"))
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status := models.Status(raw)
		if !status.Valid() {
			return filters, 0, 0, dErrors.Newf(dErrors.CodeBadRequest, "unknown status %q", raw)
		}
		filters.Status = status
	}

	from, err := parseDate(q.Get("from"))
	if err != nil {
		return filters, 0, 0, err
	}
	to, err := parseDate(q.Get("to"))
	if err != nil {
		return filters, 0, 0, err
	}
	if from != nil || to != nil {
		filters.DateRange = &models.DateRange{From: from, To: to}
	}

	page := 1
	if raw := q.Get("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return filters, 0, 0, dErrors.New(dErrors.CodeBadRequest, "page must be a positive integer")
		}
	}
	limit := service.DefaultLimit
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || !allowedLimits[limit] {
			return filters, 0, 0, dErrors.New(dErrors.CodeBadRequest, "limit must be one of 5, 10, 50")
		}
	}
	return filters, page, limit, nil
}

func parseDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, dErrors.Newf(dErrors.CodeBadRequest, "invalid date %q", raw)
}
