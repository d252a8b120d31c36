package audit

import (
	"context"

	"github.com/google/uuid"
)

// Store is the append-only audit sink. Postgres doubles as an outbox: the
// Kafka relay claims unpublished rows and marks them once delivered, so the
// topic is the durable record and the table is the staging area.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]Event, error)

	// ClaimUnpublished returns up to limit events not yet relayed,
	// oldest first.
	ClaimUnpublished(ctx context.Context, limit int) ([]Event, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}
