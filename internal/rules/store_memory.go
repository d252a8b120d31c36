package rules

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"creditgate/pkg/platform/sentinel"
)

// InMemoryStore keeps rule set versions in process memory. The mutex makes
// Activate a serialized read-modify-write, so readers never observe zero or
// two active sets for a jurisdiction.
type InMemoryStore struct {
	mu   sync.RWMutex
	sets map[uuid.UUID]*RuleSet
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sets: make(map[uuid.UUID]*RuleSet)}
}

func (s *InMemoryStore) FindActiveByJurisdiction(_ context.Context, jurisdiction Jurisdiction) (*RuleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, set := range s.sets {
		if set.Jurisdiction == jurisdiction && set.Status == RuleSetActive {
			return copySet(set), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) FindByID(_ context.Context, id uuid.UUID) (*RuleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.sets[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copySet(set), nil
}

func (s *InMemoryStore) List(_ context.Context, includeRetired bool) ([]*RuleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*RuleSet, 0, len(s.sets))
	for _, set := range s.sets {
		if !includeRetired && set.Status != RuleSetActive {
			continue
		}
		out = append(out, copySet(set))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	return out, nil
}

func (s *InMemoryStore) Activate(_ context.Context, set *RuleSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sets[set.ID]; exists {
		return sentinel.ErrConflict
	}
	for _, existing := range s.sets {
		if existing.Jurisdiction == set.Jurisdiction && existing.Status == RuleSetActive {
			existing.ApplyRetirement(set.UpdatedAt)
		}
	}
	stored := copySet(set)
	stored.Status = RuleSetActive
	s.sets[stored.ID] = stored
	return nil
}

func (s *InMemoryStore) Retire(_ context.Context, id uuid.UUID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if set.Status != RuleSetActive {
		return sentinel.ErrInvalidState
	}
	set.ApplyRetirement(now)
	return nil
}

func (s *InMemoryStore) CountActive(_ context.Context, jurisdiction Jurisdiction) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, set := range s.sets {
		if set.Jurisdiction == jurisdiction && set.Status == RuleSetActive {
			count++
		}
	}
	return count, nil
}

// copySet returns a deep copy so callers can't mutate stored versions, and
// in-flight evaluations keep the snapshot they loaded.
func copySet(set *RuleSet) *RuleSet {
	out := *set
	out.Rules = make([]Rule, len(set.Rules))
	copy(out.Rules, set.Rules)
	for i := range out.Rules {
		r := &out.Rules[i]
		if r.AmountThreshold != nil {
			p := *r.AmountThreshold
			r.AmountThreshold = &p
		}
		if r.IncomeRatio != nil {
			p := *r.IncomeRatio
			r.IncomeRatio = &p
		}
		if r.DebtRatio != nil {
			p := *r.DebtRatio
			r.DebtRatio = &p
		}
		if r.FinancialStability != nil {
			p := *r.FinancialStability
			r.FinancialStability = &p
		}
		if r.CreditScore != nil {
			p := *r.CreditScore
			r.CreditScore = &p
		}
	}
	return &out
}
