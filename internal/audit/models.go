package audit

import (
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes the two audited actions.
type Kind string

const (
	// KindDecision is emitted when a submission is evaluated.
	KindDecision Kind = "decision"
	// KindTransition is emitted when a lifecycle transition succeeds.
	KindTransition Kind = "transition"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID            uuid.UUID `json:"id"`
	Kind          Kind      `json:"kind"`
	Timestamp     time.Time `json:"timestamp"`
	ActorID       uuid.UUID `json:"actor_id"`
	ApplicationID uuid.UUID `json:"application_id"`
	Jurisdiction  string    `json:"jurisdiction,omitempty"`
	Outcome       string    `json:"outcome"`
	Reason        string    `json:"reason,omitempty"`
	ClientIP      string    `json:"client_ip,omitempty"`
	UserAgent     string    `json:"user_agent,omitempty"`
}
