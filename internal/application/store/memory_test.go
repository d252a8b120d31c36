package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"creditgate/internal/application/models"
	"creditgate/internal/rules"
	"creditgate/pkg/platform/sentinel"
)

type InMemorySuite struct {
	suite.Suite
	ctx   context.Context
	store *InMemory
}

func TestInMemorySuite(t *testing.T) {
	suite.Run(t, new(InMemorySuite))
}

func (s *InMemorySuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemory()
}

func (s *InMemorySuite) newApplication(applicant uuid.UUID, createdAt time.Time) *models.Application {
	return &models.Application{
		ID:               uuid.New(),
		ApplicantID:      applicant,
		Jurisdiction:     rules.JurisdictionSpain,
		FullName:         "Ana Pérez",
		DocumentType:     "DNI",
		IdentityDocument: "12345678Z",
		RequestedAmount:  10000,
		MonthlyIncome:    2500,
		Status:           models.StatusPending,
		Version:          1,
		RequestDate:      createdAt,
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}
}

func (s *InMemorySuite) TestCreateAssignsSequence() {
	first := s.newApplication(uuid.New(), time.Now())
	second := s.newApplication(uuid.New(), time.Now())

	s.Require().NoError(s.store.Create(s.ctx, first))
	s.Require().NoError(s.store.Create(s.ctx, second))

	s.Equal(int64(1), first.Seq)
	s.Equal(int64(2), second.Seq)

	s.ErrorIs(s.store.Create(s.ctx, first), sentinel.ErrConflict)
}

func (s *InMemorySuite) TestFindByID() {
	app := s.newApplication(uuid.New(), time.Now())
	s.Require().NoError(s.store.Create(s.ctx, app))

	loaded, err := s.store.FindByID(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(app.ID, loaded.ID)
	s.Equal(app.IdentityDocument, loaded.IdentityDocument)

	_, err = s.store.FindByID(s.ctx, uuid.New())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemorySuite) TestStoredCopiesAreIsolated() {
	app := s.newApplication(uuid.New(), time.Now())
	app.BankInformation = &models.BankInformation{BankName: "Banco Uno", IBAN: "ES7921000813610123456789"}
	s.Require().NoError(s.store.Create(s.ctx, app))

	loaded, err := s.store.FindByID(s.ctx, app.ID)
	s.Require().NoError(err)
	loaded.Status = models.StatusApproved
	loaded.BankInformation.BankName = "mutated"

	again, err := s.store.FindByID(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, again.Status)
	s.Equal("Banco Uno", again.BankInformation.BankName)
}

func (s *InMemorySuite) TestListByApplicantNewestFirst() {
	applicant := uuid.New()
	base := time.Now()

	older := s.newApplication(applicant, base.Add(-time.Hour))
	newer := s.newApplication(applicant, base)
	other := s.newApplication(uuid.New(), base)

	s.Require().NoError(s.store.Create(s.ctx, older))
	s.Require().NoError(s.store.Create(s.ctx, newer))
	s.Require().NoError(s.store.Create(s.ctx, other))

	listed, err := s.store.ListByApplicant(s.ctx, applicant)
	s.Require().NoError(err)
	s.Require().Len(listed, 2)
	s.Equal(newer.ID, listed[0].ID)
	s.Equal(older.ID, listed[1].ID)
}

func (s *InMemorySuite) TestExecuteAppliesTransition() {
	app := s.newApplication(uuid.New(), time.Now())
	s.Require().NoError(s.store.Create(s.ctx, app))

	updated, err := s.store.Execute(s.ctx, app.ID, app.Version,
		func(a *models.Application) error { return a.CanTransition(models.StatusInReview) },
		func(a *models.Application) { a.ApplyTransition(models.StatusInReview, time.Now()) })
	s.Require().NoError(err)
	s.Equal(models.StatusInReview, updated.Status)
	s.Equal(int64(2), updated.Version)
}

func (s *InMemorySuite) TestExecuteVersionGuard() {
	app := s.newApplication(uuid.New(), time.Now())
	s.Require().NoError(s.store.Create(s.ctx, app))

	_, err := s.store.Execute(s.ctx, app.ID, 99,
		func(*models.Application) error { return nil },
		func(*models.Application) {})
	s.ErrorIs(err, sentinel.ErrConflict)

	// expectedVersion zero skips the check entirely.
	_, err = s.store.Execute(s.ctx, app.ID, 0,
		func(*models.Application) error { return nil },
		func(*models.Application) {})
	s.NoError(err)

	_, err = s.store.Execute(s.ctx, uuid.New(), 0,
		func(*models.Application) error { return nil },
		func(*models.Application) {})
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemorySuite) TestExecuteValidateFailureLeavesRecordUntouched() {
	app := s.newApplication(uuid.New(), time.Now())
	app.Status = models.StatusApproved
	s.Require().NoError(s.store.Create(s.ctx, app))

	_, err := s.store.Execute(s.ctx, app.ID, 0,
		func(a *models.Application) error { return a.CanTransition(models.StatusInReview) },
		func(a *models.Application) { a.ApplyTransition(models.StatusInReview, time.Now()) })
	s.Require().Error(err)

	loaded, err := s.store.FindByID(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, loaded.Status)
	s.Equal(int64(1), loaded.Version)
}

func (s *InMemorySuite) TestConcurrentTransitionsOnlyOneWins() {
	app := s.newApplication(uuid.New(), time.Now())
	s.Require().NoError(s.store.Create(s.ctx, app))

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.store.Execute(s.ctx, app.ID, 1,
				func(a *models.Application) error { return a.CanTransition(models.StatusApproved) },
				func(a *models.Application) { a.ApplyTransition(models.StatusApproved, time.Now()) })
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
		} else {
			s.ErrorIs(err, sentinel.ErrConflict)
		}
	}
	s.Equal(1, won)
}

func (s *InMemorySuite) TestEvents() {
	appID := uuid.New()
	first := &models.TransitionEvent{
		ID: uuid.New(), ApplicationID: appID,
		From: models.StatusPending, To: models.StatusInReview,
		ActorID: uuid.New(), OccurredAt: time.Now(),
	}
	second := &models.TransitionEvent{
		ID: uuid.New(), ApplicationID: appID,
		From: models.StatusInReview, To: models.StatusApproved,
		ActorID: uuid.New(), OccurredAt: time.Now(),
	}
	s.Require().NoError(s.store.AppendEvent(s.ctx, first))
	s.Require().NoError(s.store.AppendEvent(s.ctx, second))

	events, err := s.store.ListEvents(s.ctx, appID)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(first.ID, events[0].ID)
	s.Equal(second.ID, events[1].ID)

	events[0].To = models.StatusCancelled
	again, err := s.store.ListEvents(s.ctx, appID)
	s.Require().NoError(err)
	s.Equal(models.StatusInReview, again[0].To)

	none, err := s.store.ListEvents(s.ctx, uuid.New())
	s.Require().NoError(err)
	s.Empty(none)
}

func (s *InMemorySuite) TestPurge() {
	app := s.newApplication(uuid.New(), time.Now())
	s.Require().NoError(s.store.Create(s.ctx, app))
	s.Require().NoError(s.store.AppendEvent(s.ctx, &models.TransitionEvent{
		ID: uuid.New(), ApplicationID: app.ID,
		From: models.StatusPending, To: models.StatusCancelled,
		ActorID: uuid.New(), OccurredAt: time.Now(),
	}))

	s.Require().NoError(s.store.Purge(s.ctx))

	_, err := s.store.FindByID(s.ctx, app.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	events, err := s.store.ListEvents(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Empty(events)

	// The sequence restarts from scratch.
	fresh := s.newApplication(uuid.New(), time.Now())
	s.Require().NoError(s.store.Create(s.ctx, fresh))
	s.Equal(int64(1), fresh.Seq)
}

func (s *InMemorySuite) TestSearchFilters() {
	applicant := uuid.New()
	base := time.Now()

	spain := s.newApplication(applicant, base)
	brazil := s.newApplication(uuid.New(), base.Add(time.Minute))
	brazil.Jurisdiction = rules.JurisdictionBrazil
	brazil.IdentityDocument = "52998224725"
	brazil.Status = models.StatusApproved

	s.Require().NoError(s.store.Create(s.ctx, spain))
	s.Require().NoError(s.store.Create(s.ctx, brazil))

	items, total, err := s.store.Search(s.ctx, models.Filters{
		Jurisdictions: []rules.Jurisdiction{rules.JurisdictionBrazil},
	}, 1, 10)
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Require().Len(items, 1)
	s.Equal(brazil.ID, items[0].ID)

	items, total, err = s.store.Search(s.ctx, models.Filters{DocumentSubstring: "5678z"}, 1, 10)
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Equal(spain.ID, items[0].ID)

	items, total, err = s.store.Search(s.ctx, models.Filters{ApplicantID: applicant}, 1, 10)
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Equal(spain.ID, items[0].ID)

	from := base.Add(30 * time.Second)
	items, total, err = s.store.Search(s.ctx, models.Filters{DateRange: &models.DateRange{From: &from}}, 1, 10)
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Equal(brazil.ID, items[0].ID)
}

func (s *InMemorySuite) TestSearchPagination() {
	base := time.Now()
	ids := make([]uuid.UUID, 0, 12)
	for i := 0; i < 12; i++ {
		app := s.newApplication(uuid.New(), base.Add(time.Duration(i)*time.Second))
		s.Require().NoError(s.store.Create(s.ctx, app))
		ids = append(ids, app.ID)
	}

	items, total, err := s.store.Search(s.ctx, models.Filters{}, 1, 5)
	s.Require().NoError(err)
	s.Equal(12, total)
	s.Require().Len(items, 5)
	// Newest first: the last insert leads the first page.
	s.Equal(ids[11], items[0].ID)

	items, _, err = s.store.Search(s.ctx, models.Filters{}, 3, 5)
	s.Require().NoError(err)
	s.Require().Len(items, 2)
	s.Equal(ids[1], items[0].ID)
	s.Equal(ids[0], items[1].ID)

	items, total, err = s.store.Search(s.ctx, models.Filters{}, 4, 5)
	s.Require().NoError(err)
	s.Equal(12, total)
	s.Empty(items)
}

func (s *InMemorySuite) TestSearchTiebreakBySequence() {
	at := time.Now()
	first := s.newApplication(uuid.New(), at)
	second := s.newApplication(uuid.New(), at)
	s.Require().NoError(s.store.Create(s.ctx, first))
	s.Require().NoError(s.store.Create(s.ctx, second))

	items, _, err := s.store.Search(s.ctx, models.Filters{}, 1, 10)
	s.Require().NoError(err)
	s.Require().Len(items, 2)
	s.Equal(second.ID, items[0].ID)
	s.Equal(first.ID, items[1].ID)
}
