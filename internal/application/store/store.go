// Package store persists credit applications and their transition events.
//
// Two implementations are provided: InMemory for tests and single-node
// development, and Postgres for production. Both enforce the optimistic
// version guard on Execute and keep transition events append-only.
package store

import (
	"context"

	"github.com/google/uuid"

	"creditgate/internal/application/models"
)

// Store is implemented by InMemory and Postgres. Services declare the
// subset they consume; this interface exists so the two implementations
// stay in lockstep.
type Store interface {
	Create(ctx context.Context, app *models.Application) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Application, error)
	ListByApplicant(ctx context.Context, applicantID uuid.UUID) ([]*models.Application, error)

	// Execute atomically validates and mutates the application identified
	// by id. The validate callback runs under the store's lock (mutex or
	// SELECT FOR UPDATE); when expectedVersion is non-zero the stored
	// version must match or sentinel.ErrConflict is returned without
	// invoking either callback.
	Execute(ctx context.Context, id uuid.UUID, expectedVersion int64,
		validate func(*models.Application) error,
		apply func(*models.Application)) (*models.Application, error)

	AppendEvent(ctx context.Context, event *models.TransitionEvent) error
	ListEvents(ctx context.Context, applicationID uuid.UUID) ([]*models.TransitionEvent, error)

	// Search returns the page of applications matching the filters,
	// ordered by creation time descending with insertion sequence as a
	// deterministic tiebreak, plus the total match count.
	Search(ctx context.Context, filters models.Filters, page, limit int) ([]*models.Application, int, error)

	// Purge deletes every application and transition event. Destructive;
	// the service gates it behind the admin role.
	Purge(ctx context.Context) error
}
