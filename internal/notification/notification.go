// Package notification delivers applicant-facing status notices. Delivery
// is fire-and-forget: enqueueing never blocks the caller and a full queue
// drops the notice with a log line rather than slowing down decisions.
package notification

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Message is one notice addressed to an applicant, already localized for
// the jurisdiction it concerns.
type Message struct {
	RecipientID   uuid.UUID `json:"recipient_id"`
	ApplicationID uuid.UUID `json:"application_id"`
	Locale        string    `json:"locale"`
	TemplateKey   string    `json:"template_key"`
	Summary       string    `json:"summary"`
}

// Sender performs the actual delivery (email gateway, push provider).
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes notices to the log. It stands in for a real provider in
// development and tests.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(ctx context.Context, msg Message) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification delivered",
		"recipient_id", msg.RecipientID,
		"application_id", msg.ApplicationID,
		"locale", msg.Locale,
		"template_key", msg.TemplateKey)
	return nil
}
