// Package service orchestrates the credit application lifecycle: submission
// through the validation engine, reviewer transitions under the optimistic
// version guard, and the search and export surface.
package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"creditgate/internal/application/metrics"
	"creditgate/internal/application/models"
	"creditgate/internal/audit"
	"creditgate/internal/notification"
	"creditgate/internal/rules"
	"creditgate/internal/validation"
	dErrors "creditgate/pkg/domainerrors"
	"creditgate/pkg/platform/sentinel"
	"creditgate/pkg/requestcontext"
)

// ApplicationStore is the persistence surface the service consumes.
type ApplicationStore interface {
	Create(ctx context.Context, app *models.Application) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Application, error)
	ListByApplicant(ctx context.Context, applicantID uuid.UUID) ([]*models.Application, error)
	Execute(ctx context.Context, id uuid.UUID, expectedVersion int64,
		validate func(*models.Application) error,
		apply func(*models.Application)) (*models.Application, error)
	AppendEvent(ctx context.Context, event *models.TransitionEvent) error
	ListEvents(ctx context.Context, applicationID uuid.UUID) ([]*models.TransitionEvent, error)
	Search(ctx context.Context, filters models.Filters, page, limit int) ([]*models.Application, int, error)
	Purge(ctx context.Context) error
}

// RuleSource resolves the active rule set for a jurisdiction.
type RuleSource interface {
	Get(ctx context.Context, jurisdiction rules.Jurisdiction) (*rules.RuleSet, error)
}

// ContextGatherer collects external applicant data for the data-backed rules.
type ContextGatherer interface {
	Gather(ctx context.Context, subject validation.Subject) *validation.ApplicantContext
}

// Notifier enqueues applicant notices. Implementations never block.
type Notifier interface {
	Dispatch(ctx context.Context, msg notification.Message) bool
}

// AuditSink records decision and transition events best-effort.
type AuditSink interface {
	Emit(ctx context.Context, event audit.Event)
}

// Service orchestrates application submission, decisioning and lifecycle.
type Service struct {
	store    ApplicationStore
	ruleSets RuleSource
	engine   *validation.Engine
	gatherer ContextGatherer
	notifier Notifier
	auditor  AuditSink
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Service)

func WithGatherer(g ContextGatherer) Option {
	return func(s *Service) {
		s.gatherer = g
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithAuditSink(a AuditSink) Option {
	return func(s *Service) {
		s.auditor = a
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service.
func New(store ApplicationStore, ruleSets RuleSource, opts ...Option) *Service {
	s := &Service{
		store:    store,
		ruleSets: ruleSets,
		engine:   validation.NewEngine(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitRequest carries the applicant-provided submission fields. The
// applicant identity comes from the request context, never the payload.
type SubmitRequest struct {
	Jurisdiction     rules.Jurisdiction
	FullName         string
	DocumentType     string
	IdentityDocument string
	RequestedAmount  float64
	MonthlyIncome    float64
	BankInformation  *models.BankInformation
}

// Submit evaluates the submission against the jurisdiction's active rule
// set. Admitted applications are persisted in the decided initial status;
// blocked ones are not stored at all. The returned decision carries the
// violations either way so callers can show the applicant what fired.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*models.Application, *validation.Decision, error) {
	actorID := requestcontext.ActorID(ctx)
	if actorID == (uuid.UUID{}) {
		return nil, nil, dErrors.New(dErrors.CodeUnauthorized, "missing applicant identity")
	}

	set, err := s.ruleSets.Get(ctx, req.Jurisdiction)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, nil, dErrors.Newf(dErrors.CodeConfigurationError,
				"no active rule set for %s", string(req.Jurisdiction))
		}
		return nil, nil, err
	}

	var applicant *validation.ApplicantContext
	if s.gatherer != nil {
		applicant = s.gatherer.Gather(ctx, validation.Subject{
			ApplicantID:      actorID,
			Jurisdiction:     req.Jurisdiction,
			IdentityDocument: req.IdentityDocument,
		})
	}

	start := time.Now()
	decision, err := s.engine.Evaluate(validation.Application{
		Jurisdiction:     req.Jurisdiction,
		DocumentType:     req.DocumentType,
		IdentityDocument: req.IdentityDocument,
		RequestedAmount:  req.RequestedAmount,
		MonthlyIncome:    req.MonthlyIncome,
	}, set, applicant)
	s.metrics.ObserveEvaluation(time.Since(start))
	if err != nil {
		return nil, nil, err
	}

	if !decision.Admitted {
		s.metrics.RecordRejection(string(req.Jurisdiction))
		s.emitDecisionAudit(ctx, uuid.UUID{}, req.Jurisdiction, "rejected", firstMessage(decision.Violations))
		return nil, &decision, dErrors.New(dErrors.CodeValidationBlocked, "application blocked by validation rules")
	}

	now := requestcontext.Now(ctx)
	app, err := models.NewApplication(actorID, req.Jurisdiction, req.FullName, req.DocumentType,
		req.IdentityDocument, req.RequestedAmount, req.MonthlyIncome, models.Status(decision.InitialStatus), now)
	if err != nil {
		return nil, nil, err
	}
	app.BankInformation = req.BankInformation

	if err := s.store.Create(ctx, app); err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store application")
	}

	s.metrics.RecordSubmission(string(req.Jurisdiction), string(app.Status))
	s.emitDecisionAudit(ctx, app.ID, req.Jurisdiction, string(app.Status), firstMessage(decision.Violations))
	s.notify(ctx, app, submittedTemplate(app.Status))

	s.logger.InfoContext(ctx, "application submitted",
		"application_id", app.ID,
		"jurisdiction", req.Jurisdiction,
		"status", app.Status)
	return app, &decision, nil
}

// Get returns one application. Applicants can only read their own.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	app, err := s.store.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "application not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load application")
	}
	if err := s.authorizeRead(ctx, app); err != nil {
		return nil, err
	}
	return app, nil
}

// ListMine returns the calling applicant's applications, newest first.
func (s *Service) ListMine(ctx context.Context) ([]*models.Application, error) {
	actorID := requestcontext.ActorID(ctx)
	if actorID == (uuid.UUID{}) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing applicant identity")
	}
	apps, err := s.store.ListByApplicant(ctx, actorID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list applications")
	}
	return apps, nil
}

// History returns the ordered transition events for an application.
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]*models.TransitionEvent, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	events, err := s.store.ListEvents(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list transition events")
	}
	return events, nil
}

// Transition moves an application along the lifecycle on behalf of a
// reviewer. expectedVersion guards against concurrent reviewer actions:
// when non-zero it must match the stored version or the call fails with a
// conflict and no state changes.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, target models.Status, expectedVersion int64) (*models.Application, error) {
	role := requestcontext.ActorRole(ctx)
	if role != requestcontext.RoleReviewer && role != requestcontext.RoleAdmin {
		return nil, dErrors.New(dErrors.CodeForbidden, "only reviewers can decide applications")
	}
	return s.transition(ctx, id, target, expectedVersion, nil)
}

// Cancel withdraws a pending application. Only the owning applicant (or an
// admin) may cancel, and only before review has started.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, expectedVersion int64) (*models.Application, error) {
	actorID := requestcontext.ActorID(ctx)
	role := requestcontext.ActorRole(ctx)
	return s.transition(ctx, id, models.StatusCancelled, expectedVersion,
		func(app *models.Application) error {
			if role != requestcontext.RoleAdmin && app.ApplicantID != actorID {
				return dErrors.New(dErrors.CodeForbidden, "cannot cancel another applicant's application")
			}
			return nil
		})
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, target models.Status, expectedVersion int64,
	extraCheck func(*models.Application) error) (*models.Application, error) {
	now := requestcontext.Now(ctx)

	var from models.Status
	app, err := s.store.Execute(ctx, id, expectedVersion,
		func(app *models.Application) error {
			if extraCheck != nil {
				if err := extraCheck(app); err != nil {
					return err
				}
			}
			return app.CanTransition(target)
		},
		func(app *models.Application) {
			from = app.Status
			app.ApplyTransition(target, now)
		},
	)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "application not found")
	}
	if errors.Is(err, sentinel.ErrConflict) {
		s.metrics.RecordConflict()
		return nil, dErrors.New(dErrors.CodeConflict, "application was modified concurrently")
	}
	if err != nil {
		return nil, err
	}

	event := &models.TransitionEvent{
		ID:            uuid.New(),
		ApplicationID: app.ID,
		From:          from,
		To:            target,
		ActorID:       requestcontext.ActorID(ctx),
		OccurredAt:    now,
	}
	if err := s.store.AppendEvent(ctx, event); err != nil {
		// The transition is already committed; a lost event is logged,
		// not rolled back.
		s.logger.ErrorContext(ctx, "transition event append failed",
			"application_id", app.ID,
			"error", err)
	}

	s.metrics.RecordTransition(string(target))
	s.auditTransition(ctx, app, from, target)
	s.notify(ctx, app, statusTemplate(target))

	s.logger.InfoContext(ctx, "application transitioned",
		"application_id", app.ID,
		"from", from,
		"to", target)
	return app, nil
}

// Purge deletes every application and transition event. Admin-only reset
// used by operational tooling and test environments.
func (s *Service) Purge(ctx context.Context) error {
	if requestcontext.ActorRole(ctx) != requestcontext.RoleAdmin {
		return dErrors.New(dErrors.CodeForbidden, "only admins can purge applications")
	}
	if err := s.store.Purge(ctx); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to purge applications")
	}
	s.logger.WarnContext(ctx, "applications purged", "actor_id", requestcontext.ActorID(ctx))
	return nil
}

func (s *Service) authorizeRead(ctx context.Context, app *models.Application) error {
	role := requestcontext.ActorRole(ctx)
	if role == requestcontext.RoleReviewer || role == requestcontext.RoleAdmin {
		return nil
	}
	if app.ApplicantID != requestcontext.ActorID(ctx) {
		return dErrors.New(dErrors.CodeForbidden, "application belongs to another applicant")
	}
	return nil
}

func (s *Service) notify(ctx context.Context, app *models.Application, templateKey string) {
	if s.notifier == nil || templateKey == "" {
		return
	}
	locale := notification.Locale(app.Jurisdiction)
	s.notifier.Dispatch(ctx, notification.Message{
		RecipientID:   app.ApplicantID,
		ApplicationID: app.ID,
		Locale:        locale,
		TemplateKey:   templateKey,
		Summary:       notification.Summary(templateKey, locale),
	})
}

func (s *Service) emitDecisionAudit(ctx context.Context, appID uuid.UUID, jurisdiction rules.Jurisdiction, outcome, reason string) {
	if s.auditor == nil {
		return
	}
	s.auditor.Emit(ctx, audit.Event{
		Kind:          audit.KindDecision,
		ApplicationID: appID,
		Jurisdiction:  string(jurisdiction),
		Outcome:       outcome,
		Reason:        reason,
	})
}

func (s *Service) auditTransition(ctx context.Context, app *models.Application, from, to models.Status) {
	if s.auditor == nil {
		return
	}
	s.auditor.Emit(ctx, audit.Event{
		Kind:          audit.KindTransition,
		ApplicationID: app.ID,
		Jurisdiction:  string(app.Jurisdiction),
		Outcome:       string(to),
		Reason:        "from " + string(from),
	})
}

func submittedTemplate(status models.Status) string {
	if status == models.StatusInReview {
		return notification.TemplateInReview
	}
	return notification.TemplateSubmitted
}

func statusTemplate(status models.Status) string {
	switch status {
	case models.StatusInReview:
		return notification.TemplateInReview
	case models.StatusApproved:
		return notification.TemplateApproved
	case models.StatusRejected:
		return notification.TemplateRejected
	case models.StatusCancelled:
		return notification.TemplateCancelled
	}
	return ""
}

func firstMessage(violations []validation.Violation) string {
	if len(violations) == 0 {
		return ""
	}
	return violations[0].Message
}
