package models

import (
	"time"

	"github.com/google/uuid"
)

// TransitionEvent records one successful status transition. Events are
// append-only: the state machine creates them and nothing ever mutates or
// deletes them.
type TransitionEvent struct {
	ID            uuid.UUID `json:"id"`
	ApplicationID uuid.UUID `json:"application_id"`
	From          Status    `json:"from"`
	To            Status    `json:"to"`
	ActorID       uuid.UUID `json:"actor_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}
