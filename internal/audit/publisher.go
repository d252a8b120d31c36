package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"creditgate/pkg/requestcontext"
)

// Publisher captures structured audit events. Emission is best-effort:
// failures are logged and never surfaced to the caller, so an audit outage
// cannot block decisions or transitions.
type Publisher struct {
	store  Store
	logger *slog.Logger
}

func NewPublisher(store Store, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{store: store, logger: logger}
}

// Emit stamps the event with identity and client metadata from the request
// context and appends it to the store.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if event.ID == (uuid.UUID{}) {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.ActorID == (uuid.UUID{}) {
		event.ActorID = requestcontext.ActorID(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}
	if event.UserAgent == "" {
		event.UserAgent = requestcontext.UserAgent(ctx)
	}

	if err := p.store.Append(ctx, event); err != nil {
		p.logger.ErrorContext(ctx, "audit append failed",
			"kind", event.Kind,
			"application_id", event.ApplicationID,
			"error", err)
	}
}

// List returns the audit trail for one application.
func (p *Publisher) List(ctx context.Context, applicationID uuid.UUID) ([]Event, error) {
	return p.store.ListByApplication(ctx, applicationID)
}
