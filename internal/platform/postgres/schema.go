// Package postgres owns the relational schema shared by the store
// implementations.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS applications (
		id UUID PRIMARY KEY,
		seq BIGSERIAL,
		applicant_id UUID NOT NULL,
		jurisdiction TEXT NOT NULL,
		full_name TEXT NOT NULL,
		document_type TEXT NOT NULL,
		identity_document TEXT NOT NULL,
		requested_amount DOUBLE PRECISION NOT NULL,
		monthly_income DOUBLE PRECISION NOT NULL,
		status TEXT NOT NULL,
		version BIGINT NOT NULL,
		request_date TIMESTAMPTZ NOT NULL,
		bank_information JSONB,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS applications_applicant_idx ON applications (applicant_id)`,
	`CREATE INDEX IF NOT EXISTS applications_search_idx ON applications (created_at DESC, seq DESC)`,

	`CREATE TABLE IF NOT EXISTS transition_events (
		id UUID PRIMARY KEY,
		application_id UUID NOT NULL REFERENCES applications (id),
		from_status TEXT NOT NULL,
		to_status TEXT NOT NULL,
		actor_id UUID NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS transition_events_application_idx
		ON transition_events (application_id, occurred_at)`,

	`CREATE TABLE IF NOT EXISTS rule_sets (
		id UUID PRIMARY KEY,
		jurisdiction TEXT NOT NULL,
		required_document_type TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		rules JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		created_by UUID
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS rule_sets_one_active
		ON rule_sets (jurisdiction) WHERE status = 'active'`,

	`CREATE TABLE IF NOT EXISTS audit_events (
		id UUID PRIMARY KEY,
		kind TEXT NOT NULL,
		ts TIMESTAMPTZ NOT NULL,
		actor_id UUID NOT NULL,
		application_id UUID NOT NULL,
		jurisdiction TEXT NOT NULL DEFAULT '',
		outcome TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		client_ip TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		published_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS audit_events_unpublished_idx ON audit_events (ts) WHERE published_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS audit_events_application_idx ON audit_events (application_id, ts)`,
}

// EnsureSchema creates every table and index the stores expect. Statements
// are idempotent, so running it on every boot is safe.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}
	return nil
}
