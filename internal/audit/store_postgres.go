package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// PostgresStore is the audit outbox.
//
// Schema:
//
//	CREATE TABLE audit_events (
//	    id UUID PRIMARY KEY,
//	    kind TEXT NOT NULL,
//	    ts TIMESTAMPTZ NOT NULL,
//	    actor_id UUID NOT NULL,
//	    application_id UUID NOT NULL,
//	    jurisdiction TEXT NOT NULL DEFAULT '',
//	    outcome TEXT NOT NULL,
//	    reason TEXT NOT NULL DEFAULT '',
//	    client_ip TEXT NOT NULL DEFAULT '',
//	    user_agent TEXT NOT NULL DEFAULT '',
//	    published_at TIMESTAMPTZ
//	);
//	CREATE INDEX audit_events_unpublished_idx ON audit_events (ts) WHERE published_at IS NULL;
//	CREATE INDEX audit_events_application_idx ON audit_events (application_id, ts);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const auditColumns = `id, kind, ts, actor_id, application_id, jurisdiction, outcome, reason, client_ip, user_agent`

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_events (`+auditColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		event.ID, string(event.Kind), event.Timestamp, event.ActorID, event.ApplicationID,
		event.Jurisdiction, event.Outcome, event.Reason, event.ClientIP, event.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+auditColumns+` FROM audit_events WHERE application_id = $1 ORDER BY ts, id`,
		applicationID,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// ClaimUnpublished returns the oldest unrelayed rows. One relay instance
// runs per deployment; at-least-once delivery to the topic is acceptable,
// so no row locking is needed here.
func (s *PostgresStore) ClaimUnpublished(ctx context.Context, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+auditColumns+` FROM audit_events
		 WHERE published_at IS NULL
		 ORDER BY ts
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("claim audit events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

func (s *PostgresStore) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE audit_events SET published_at = NOW() WHERE id IN (`+strings.Join(placeholders, ", ")+`)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("mark audit events published: %w", err)
	}
	return nil
}

func collectEvents(rows *sql.Rows) ([]Event, error) {
	var out []Event
	for rows.Next() {
		var ev Event
		var kind string
		if err := rows.Scan(
			&ev.ID, &kind, &ev.Timestamp, &ev.ActorID, &ev.ApplicationID,
			&ev.Jurisdiction, &ev.Outcome, &ev.Reason, &ev.ClientIP, &ev.UserAgent,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		ev.Kind = Kind(kind)
		out = append(out, ev)
	}
	return out, rows.Err()
}
