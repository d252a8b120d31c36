package audit

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// InMemoryStore keeps audit events in process. Used in tests and when no
// database is configured.
type InMemoryStore struct {
	mu        sync.Mutex
	events    []Event
	published map[uuid.UUID]bool
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{published: make(map[uuid.UUID]bool)}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) ListByApplication(_ context.Context, applicationID uuid.UUID) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Event
	for _, ev := range s.events {
		if ev.ApplicationID == applicationID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *InMemoryStore) ClaimUnpublished(_ context.Context, limit int) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Event
	for _, ev := range s.events {
		if len(out) == limit {
			break
		}
		if !s.published[ev.ID] {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *InMemoryStore) MarkPublished(_ context.Context, ids []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.published[id] = true
	}
	return nil
}
