package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"creditgate/internal/application/models"
	"creditgate/internal/application/service/mocks"
	"creditgate/internal/audit"
	"creditgate/internal/notification"
	"creditgate/internal/rules"
	dErrors "creditgate/pkg/domainerrors"
	"creditgate/pkg/platform/sentinel"
	"creditgate/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	store    *mocks.MockApplicationStore
	ruleSets *mocks.MockRuleSource
	notifier *mocks.MockNotifier
	auditor  *mocks.MockAuditSink
	svc      *Service
	actor    uuid.UUID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockApplicationStore(s.ctrl)
	s.ruleSets = mocks.NewMockRuleSource(s.ctrl)
	s.notifier = mocks.NewMockNotifier(s.ctrl)
	s.auditor = mocks.NewMockAuditSink(s.ctrl)
	s.actor = uuid.New()
	s.svc = New(s.store, s.ruleSets,
		WithNotifier(s.notifier),
		WithAuditSink(s.auditor),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) applicantCtx() context.Context {
	ctx := requestcontext.WithActorID(context.Background(), s.actor)
	return requestcontext.WithActorRole(ctx, requestcontext.RoleApplicant)
}

func (s *ServiceSuite) reviewerCtx() context.Context {
	ctx := requestcontext.WithActorID(context.Background(), uuid.New())
	return requestcontext.WithActorRole(ctx, requestcontext.RoleReviewer)
}

func (s *ServiceSuite) spainRuleSet() *rules.RuleSet {
	set, err := rules.NewRuleSet(rules.JurisdictionSpain, "DNI", "", []rules.Rule{
		{
			Type:            rules.RuleAmountThreshold,
			Enabled:         true,
			ErrorMessage:    "el monto excede el límite",
			AmountThreshold: &rules.AmountThresholdParams{Threshold: 50000},
		},
		{
			Type:           rules.RuleIncomeRatio,
			Enabled:        true,
			RequiresReview: true,
			ErrorMessage:   "el monto supera la capacidad de pago",
			IncomeRatio:    &rules.IncomeRatioParams{MaxRatio: 0.4},
		},
	}, uuid.New(), time.Now())
	s.Require().NoError(err)
	return set
}

func (s *ServiceSuite) submitRequest(amount, income float64) SubmitRequest {
	return SubmitRequest{
		Jurisdiction:     rules.JurisdictionSpain,
		FullName:         "Ana Pérez",
		DocumentType:     "DNI",
		IdentityDocument: "12345678Z",
		RequestedAmount:  amount,
		MonthlyIncome:    income,
	}
}

// executeOn replays the store Execute contract against a single record.
func executeOn(app *models.Application) func(context.Context, uuid.UUID, int64,
	func(*models.Application) error, func(*models.Application)) (*models.Application, error) {
	return func(_ context.Context, _ uuid.UUID, expectedVersion int64,
		validate func(*models.Application) error, apply func(*models.Application)) (*models.Application, error) {
		if expectedVersion != 0 && app.Version != expectedVersion {
			return nil, sentinel.ErrConflict
		}
		if err := validate(app); err != nil {
			return nil, err
		}
		apply(app)
		copied := *app
		return &copied, nil
	}
}

func (s *ServiceSuite) TestSubmitAdmittedPending() {
	ctx := s.applicantCtx()
	s.ruleSets.EXPECT().Get(gomock.Any(), rules.JurisdictionSpain).Return(s.spainRuleSet(), nil)
	s.store.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, app *models.Application) error {
			app.Seq = 1
			return nil
		})

	var notified notification.Message
	s.notifier.EXPECT().Dispatch(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msg notification.Message) bool {
			notified = msg
			return true
		})
	var audited audit.Event
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, event audit.Event) {
			audited = event
		})

	app, decision, err := s.svc.Submit(ctx, s.submitRequest(1000, 10000))
	s.Require().NoError(err)
	s.Require().NotNil(app)
	s.Require().NotNil(decision)

	s.True(decision.Admitted)
	s.Equal(models.StatusPending, app.Status)
	s.Equal(s.actor, app.ApplicantID)
	s.Equal(int64(1), app.Version)

	s.Equal(notification.TemplateSubmitted, notified.TemplateKey)
	s.Equal("es", notified.Locale)
	s.Equal(s.actor, notified.RecipientID)

	s.Equal(audit.KindDecision, audited.Kind)
	s.Equal(app.ID, audited.ApplicationID)
	s.Equal("pending", audited.Outcome)
}

func (s *ServiceSuite) TestSubmitRoutedToReview() {
	ctx := s.applicantCtx()
	s.ruleSets.EXPECT().Get(gomock.Any(), rules.JurisdictionSpain).Return(s.spainRuleSet(), nil)
	s.store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any())

	var notified notification.Message
	s.notifier.EXPECT().Dispatch(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msg notification.Message) bool {
			notified = msg
			return true
		})

	// 4000 > 5000 * 0.4, so the income ratio routes to review.
	app, decision, err := s.svc.Submit(ctx, s.submitRequest(4000, 5000))
	s.Require().NoError(err)
	s.Equal(models.StatusInReview, app.Status)
	s.Require().Len(decision.Violations, 1)
	s.True(decision.Violations[0].Review)
	s.Equal(notification.TemplateInReview, notified.TemplateKey)
}

func (s *ServiceSuite) TestSubmitBlockedIsNotPersisted() {
	ctx := s.applicantCtx()
	s.ruleSets.EXPECT().Get(gomock.Any(), rules.JurisdictionSpain).Return(s.spainRuleSet(), nil)

	var audited audit.Event
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, event audit.Event) {
			audited = event
		})

	app, decision, err := s.svc.Submit(ctx, s.submitRequest(60000, 10000))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidationBlocked))
	s.Nil(app)
	s.Require().NotNil(decision)
	s.False(decision.Admitted)
	s.Require().Len(decision.Violations, 1)
	s.Equal("el monto excede el límite", decision.Violations[0].Message)

	s.Equal("rejected", audited.Outcome)
	s.Equal(uuid.UUID{}, audited.ApplicationID)
}

func (s *ServiceSuite) TestSubmitRequiresIdentity() {
	_, _, err := s.svc.Submit(context.Background(), s.submitRequest(1000, 10000))
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestSubmitWithoutActiveRuleSet() {
	ctx := s.applicantCtx()
	s.ruleSets.EXPECT().Get(gomock.Any(), rules.JurisdictionSpain).
		Return(nil, dErrors.New(dErrors.CodeNotFound, "no active rule set"))

	_, _, err := s.svc.Submit(ctx, s.submitRequest(1000, 10000))
	s.True(dErrors.HasCode(err, dErrors.CodeConfigurationError))
}

func (s *ServiceSuite) TestGetScopesApplicantsToOwnRecords() {
	other := &models.Application{ID: uuid.New(), ApplicantID: uuid.New(), Status: models.StatusPending}
	s.store.EXPECT().FindByID(gomock.Any(), other.ID).Return(other, nil).Times(2)

	_, err := s.svc.Get(s.applicantCtx(), other.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	got, err := s.svc.Get(s.reviewerCtx(), other.ID)
	s.Require().NoError(err)
	s.Equal(other.ID, got.ID)
}

func (s *ServiceSuite) TestGetNotFound() {
	id := uuid.New()
	s.store.EXPECT().FindByID(gomock.Any(), id).Return(nil, sentinel.ErrNotFound)

	_, err := s.svc.Get(s.applicantCtx(), id)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestTransitionRequiresReviewer() {
	_, err := s.svc.Transition(s.applicantCtx(), uuid.New(), models.StatusApproved, 0)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ServiceSuite) TestTransitionRecordsEventAndNotifies() {
	app := &models.Application{
		ID:          uuid.New(),
		ApplicantID: s.actor,
		Status:      models.StatusPending,
		Version:     1,
	}
	s.store.EXPECT().Execute(gomock.Any(), app.ID, int64(1), gomock.Any(), gomock.Any()).
		DoAndReturn(executeOn(app))

	var recorded models.TransitionEvent
	s.store.EXPECT().AppendEvent(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, event *models.TransitionEvent) error {
			recorded = *event
			return nil
		})
	var audited audit.Event
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, event audit.Event) {
			audited = event
		})
	var notified notification.Message
	s.notifier.EXPECT().Dispatch(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msg notification.Message) bool {
			notified = msg
			return true
		})

	updated, err := s.svc.Transition(s.reviewerCtx(), app.ID, models.StatusApproved, 1)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, updated.Status)
	s.Equal(int64(2), updated.Version)

	s.Equal(models.StatusPending, recorded.From)
	s.Equal(models.StatusApproved, recorded.To)
	s.Equal(app.ID, recorded.ApplicationID)

	s.Equal(audit.KindTransition, audited.Kind)
	s.Equal("approved", audited.Outcome)
	s.Equal(notification.TemplateApproved, notified.TemplateKey)
}

func (s *ServiceSuite) TestTransitionConflict() {
	app := &models.Application{ID: uuid.New(), Status: models.StatusPending, Version: 2}
	s.store.EXPECT().Execute(gomock.Any(), app.ID, int64(1), gomock.Any(), gomock.Any()).
		DoAndReturn(executeOn(app))

	_, err := s.svc.Transition(s.reviewerCtx(), app.ID, models.StatusApproved, 1)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestTransitionFromTerminalStatus() {
	app := &models.Application{ID: uuid.New(), Status: models.StatusRejected, Version: 3}
	s.store.EXPECT().Execute(gomock.Any(), app.ID, int64(0), gomock.Any(), gomock.Any()).
		DoAndReturn(executeOn(app))

	_, err := s.svc.Transition(s.reviewerCtx(), app.ID, models.StatusApproved, 0)
	s.True(dErrors.HasCode(err, dErrors.CodeIllegalTransition))
	s.Equal(int64(3), app.Version)
}

func (s *ServiceSuite) TestTransitionSurvivesEventAppendFailure() {
	app := &models.Application{ID: uuid.New(), ApplicantID: s.actor, Status: models.StatusPending, Version: 1}
	s.store.EXPECT().Execute(gomock.Any(), app.ID, int64(0), gomock.Any(), gomock.Any()).
		DoAndReturn(executeOn(app))
	s.store.EXPECT().AppendEvent(gomock.Any(), gomock.Any()).Return(errors.New("event store down"))
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any())
	s.notifier.EXPECT().Dispatch(gomock.Any(), gomock.Any()).Return(true)

	updated, err := s.svc.Transition(s.reviewerCtx(), app.ID, models.StatusInReview, 0)
	s.Require().NoError(err)
	s.Equal(models.StatusInReview, updated.Status)
}

func (s *ServiceSuite) TestCancelByOwner() {
	app := &models.Application{ID: uuid.New(), ApplicantID: s.actor, Status: models.StatusPending, Version: 1}
	s.store.EXPECT().Execute(gomock.Any(), app.ID, int64(1), gomock.Any(), gomock.Any()).
		DoAndReturn(executeOn(app))
	s.store.EXPECT().AppendEvent(gomock.Any(), gomock.Any()).Return(nil)
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any())
	s.notifier.EXPECT().Dispatch(gomock.Any(), gomock.Any()).Return(true)

	updated, err := s.svc.Cancel(s.applicantCtx(), app.ID, 1)
	s.Require().NoError(err)
	s.Equal(models.StatusCancelled, updated.Status)
}

func (s *ServiceSuite) TestCancelByAnotherApplicant() {
	app := &models.Application{ID: uuid.New(), ApplicantID: uuid.New(), Status: models.StatusPending, Version: 1}
	s.store.EXPECT().Execute(gomock.Any(), app.ID, int64(0), gomock.Any(), gomock.Any()).
		DoAndReturn(executeOn(app))

	_, err := s.svc.Cancel(s.applicantCtx(), app.ID, 0)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	s.Equal(models.StatusPending, app.Status)
}

func (s *ServiceSuite) TestHistory() {
	app := &models.Application{ID: uuid.New(), ApplicantID: s.actor, Status: models.StatusApproved}
	events := []*models.TransitionEvent{
		{ID: uuid.New(), ApplicationID: app.ID, From: models.StatusPending, To: models.StatusApproved},
	}
	s.store.EXPECT().FindByID(gomock.Any(), app.ID).Return(app, nil)
	s.store.EXPECT().ListEvents(gomock.Any(), app.ID).Return(events, nil)

	got, err := s.svc.History(s.applicantCtx(), app.ID)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(models.StatusApproved, got[0].To)
}

func (s *ServiceSuite) TestPurgeIsAdminOnly() {
	err := s.svc.Purge(s.applicantCtx())
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	err = s.svc.Purge(s.reviewerCtx())
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	s.store.EXPECT().Purge(gomock.Any()).Return(nil)
	ctx := requestcontext.WithActorRole(
		requestcontext.WithActorID(context.Background(), uuid.New()),
		requestcontext.RoleAdmin)
	s.NoError(s.svc.Purge(ctx))
}

func (s *ServiceSuite) TestListMine() {
	apps := []*models.Application{{ID: uuid.New(), ApplicantID: s.actor}}
	s.store.EXPECT().ListByApplicant(gomock.Any(), s.actor).Return(apps, nil)

	got, err := s.svc.ListMine(s.applicantCtx())
	s.Require().NoError(err)
	s.Len(got, 1)

	_, err = s.svc.ListMine(context.Background())
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
