package rules

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists rule set versions. Implementations return sentinel errors
// (pkg/platform/sentinel) for infrastructure facts; the registry translates
// them into domain errors.
type Store interface {
	// FindActiveByJurisdiction returns the single active set for a
	// jurisdiction, or sentinel.ErrNotFound.
	FindActiveByJurisdiction(ctx context.Context, jurisdiction Jurisdiction) (*RuleSet, error)

	FindByID(ctx context.Context, id uuid.UUID) (*RuleSet, error)

	// List returns all sets, optionally including retired versions,
	// ordered by creation time descending.
	List(ctx context.Context, includeRetired bool) ([]*RuleSet, error)

	// Activate atomically retires the jurisdiction's current active set (if
	// any) and inserts the given set as active. Concurrent activations for
	// the same jurisdiction serialize; exactly one write wins at a time.
	Activate(ctx context.Context, set *RuleSet) error

	// Retire soft-deletes a set: status flips to retired, history is kept.
	Retire(ctx context.Context, id uuid.UUID, now time.Time) error

	// CountActive reports how many active sets exist for a jurisdiction.
	// Used by the registry's post-write invariant check.
	CountActive(ctx context.Context, jurisdiction Jurisdiction) (int, error)
}
