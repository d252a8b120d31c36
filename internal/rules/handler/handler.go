// Package handler exposes rule set administration over HTTP. Activation
// and retirement are admin-only; reads are open to reviewers so they can
// see the configuration a decision was made under.
package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Registry

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"creditgate/internal/rules"
	dErrors "creditgate/pkg/domainerrors"
	"creditgate/pkg/platform/httputil"
	"creditgate/pkg/requestcontext"
)

// Registry defines the rule set operations the handler consumes.
type Registry interface {
	Get(ctx context.Context, jurisdiction rules.Jurisdiction) (*rules.RuleSet, error)
	GetByID(ctx context.Context, id uuid.UUID) (*rules.RuleSet, error)
	List(ctx context.Context, includeRetired bool) ([]*rules.RuleSet, error)
	NewVersion(ctx context.Context, jurisdiction rules.Jurisdiction, requiredDocumentType, description string, ruleList []rules.Rule) (*rules.RuleSet, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// Handler wires rule set endpoints to the registry.
type Handler struct {
	registry Registry
	logger   *slog.Logger
}

// New constructs a rules handler.
func New(registry Registry, logger *slog.Logger) *Handler {
	return &Handler{registry: registry, logger: logger}
}

// Register mounts rule set endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/rules", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleActivate)
		r.Get("/active/{jurisdiction}", h.HandleActive)
		r.Get("/{id}", h.HandleGet)
		r.Delete("/{id}", h.HandleRetire)
	})
}

// ActivateRequest is the HTTP request body for POST /rules.
type ActivateRequest struct {
	Jurisdiction         string       `json:"jurisdiction"`
	RequiredDocumentType string       `json:"required_document_type"`
	Description          string       `json:"description"`
	Rules                []rules.Rule `json:"rules"`
}

// Validate trims the identifying fields. Rule-level validation happens in
// the registry so the stored configuration is checked in one place.
func (r *ActivateRequest) Validate() error {
	r.Jurisdiction = strings.TrimSpace(r.Jurisdiction)
	r.RequiredDocumentType = strings.TrimSpace(r.RequiredDocumentType)
	r.Description = strings.TrimSpace(r.Description)
	if r.Jurisdiction == "" {
		return dErrors.New(dErrors.CodeBadRequest, "jurisdiction is required")
	}
	return nil
}

// HandleList handles GET /rules. Pass include_retired=true for history.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	if err := requireReviewer(r.Context()); err != nil {
		httputil.WriteError(w, err)
		return
	}
	includeRetired := r.URL.Query().Get("include_retired") == "true"
	sets, err := h.registry.List(r.Context(), includeRetired)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sets)
}

// HandleActive handles GET /rules/active/{jurisdiction}.
func (h *Handler) HandleActive(w http.ResponseWriter, r *http.Request) {
	if err := requireReviewer(r.Context()); err != nil {
		httputil.WriteError(w, err)
		return
	}
	jurisdiction := rules.Jurisdiction(chi.URLParam(r, "jurisdiction"))
	set, err := h.registry.Get(r.Context(), jurisdiction)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, set)
}

// HandleGet handles GET /rules/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if err := requireReviewer(r.Context()); err != nil {
		httputil.WriteError(w, err)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid rule set id"))
		return
	}
	set, err := h.registry.GetByID(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, set)
}

// HandleActivate handles POST /rules.
func (h *Handler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := requireAdmin(ctx); err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[ActivateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	set, err := h.registry.NewVersion(ctx, rules.Jurisdiction(req.Jurisdiction),
		req.RequiredDocumentType, req.Description, req.Rules)
	if err != nil {
		h.logger.ErrorContext(ctx, "rule set activation failed",
			"jurisdiction", req.Jurisdiction,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, set)
}

// HandleRetire handles DELETE /rules/{id}. Retirement is a soft delete;
// the version stays readable for audit.
func (h *Handler) HandleRetire(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := requireAdmin(ctx); err != nil {
		httputil.WriteError(w, err)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid rule set id"))
		return
	}
	if err := h.registry.Deactivate(ctx, id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func requireAdmin(ctx context.Context) error {
	if requestcontext.ActorRole(ctx) != requestcontext.RoleAdmin {
		return dErrors.New(dErrors.CodeForbidden, "rule administration requires the admin role")
	}
	return nil
}

func requireReviewer(ctx context.Context) error {
	role := requestcontext.ActorRole(ctx)
	if role != requestcontext.RoleReviewer && role != requestcontext.RoleAdmin {
		return dErrors.New(dErrors.CodeForbidden, "rule configuration requires the reviewer role")
	}
	return nil
}
