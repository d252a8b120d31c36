package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"creditgate/internal/application/models"
	"creditgate/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded application store for tests and single-node
// development. Execute holds the write lock across both callbacks, so the
// validate-then-mutate sequence is atomic.
type InMemory struct {
	mu     sync.RWMutex
	apps   map[uuid.UUID]*models.Application
	events map[uuid.UUID][]*models.TransitionEvent
	seq    int64
}

func NewInMemory() *InMemory {
	return &InMemory{
		apps:   make(map[uuid.UUID]*models.Application),
		events: make(map[uuid.UUID][]*models.TransitionEvent),
	}
}

func (s *InMemory) Create(_ context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.apps[app.ID]; exists {
		return sentinel.ErrConflict
	}
	s.seq++
	app.Seq = s.seq
	s.apps[app.ID] = copyApp(app)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id uuid.UUID) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	app, ok := s.apps[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyApp(app), nil
}

func (s *InMemory) ListByApplicant(_ context.Context, applicantID uuid.UUID) ([]*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Application
	for _, app := range s.apps {
		if app.ApplicantID == applicantID {
			out = append(out, copyApp(app))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *InMemory) Execute(_ context.Context, id uuid.UUID, expectedVersion int64,
	validate func(*models.Application) error,
	apply func(*models.Application)) (*models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.apps[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if expectedVersion != 0 && app.Version != expectedVersion {
		return nil, sentinel.ErrConflict
	}
	if err := validate(app); err != nil {
		return nil, err
	}
	apply(app)
	return copyApp(app), nil
}

func (s *InMemory) AppendEvent(_ context.Context, event *models.TransitionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev := *event
	s.events[event.ApplicationID] = append(s.events[event.ApplicationID], &ev)
	return nil
}

func (s *InMemory) ListEvents(_ context.Context, applicationID uuid.UUID) ([]*models.TransitionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.events[applicationID]
	out := make([]*models.TransitionEvent, 0, len(stored))
	for _, ev := range stored {
		copied := *ev
		out = append(out, &copied)
	}
	return out, nil
}

func (s *InMemory) Search(_ context.Context, filters models.Filters, page, limit int) ([]*models.Application, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Application
	for _, app := range s.apps {
		if filters.Matches(app) {
			matched = append(matched, app)
		}
	}
	sortNewestFirst(matched)

	total := len(matched)
	start := (page - 1) * limit
	if start >= total {
		return []*models.Application{}, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	items := make([]*models.Application, 0, end-start)
	for _, app := range matched[start:end] {
		items = append(items, copyApp(app))
	}
	return items, total, nil
}

func (s *InMemory) Purge(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.apps = make(map[uuid.UUID]*models.Application)
	s.events = make(map[uuid.UUID][]*models.TransitionEvent)
	s.seq = 0
	return nil
}

// sortNewestFirst orders by creation time descending; the insertion
// sequence breaks ties so pagination stays stable.
func sortNewestFirst(apps []*models.Application) {
	sort.Slice(apps, func(i, j int) bool {
		if !apps[i].CreatedAt.Equal(apps[j].CreatedAt) {
			return apps[i].CreatedAt.After(apps[j].CreatedAt)
		}
		return apps[i].Seq > apps[j].Seq
	})
}

func copyApp(app *models.Application) *models.Application {
	copied := *app
	if app.BankInformation != nil {
		bank := *app.BankInformation
		copied.BankInformation = &bank
	}
	return &copied
}
