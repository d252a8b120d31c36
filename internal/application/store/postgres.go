package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"creditgate/internal/application/models"
	"creditgate/internal/rules"
	"creditgate/pkg/platform/sentinel"
	txcontext "creditgate/pkg/platform/tx"
)

// Postgres persists applications and transition events.
//
// Schema:
//
//	CREATE TABLE applications (
//	    id UUID PRIMARY KEY,
//	    seq BIGSERIAL,
//	    applicant_id UUID NOT NULL,
//	    jurisdiction TEXT NOT NULL,
//	    full_name TEXT NOT NULL,
//	    document_type TEXT NOT NULL,
//	    identity_document TEXT NOT NULL,
//	    requested_amount DOUBLE PRECISION NOT NULL,
//	    monthly_income DOUBLE PRECISION NOT NULL,
//	    status TEXT NOT NULL,
//	    version BIGINT NOT NULL,
//	    request_date TIMESTAMPTZ NOT NULL,
//	    bank_information JSONB,
//	    created_at TIMESTAMPTZ NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX applications_applicant_idx ON applications (applicant_id);
//	CREATE INDEX applications_search_idx ON applications (created_at DESC, seq DESC);
//
//	CREATE TABLE transition_events (
//	    id UUID PRIMARY KEY,
//	    application_id UUID NOT NULL REFERENCES applications (id),
//	    from_status TEXT NOT NULL,
//	    to_status TEXT NOT NULL,
//	    actor_id UUID NOT NULL,
//	    occurred_at TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX transition_events_application_idx
//	    ON transition_events (application_id, occurred_at);
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type sqlQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Postgres) querier(ctx context.Context) sqlQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const applicationColumns = `id, seq, applicant_id, jurisdiction, full_name, document_type, identity_document,
	requested_amount, monthly_income, status, version, request_date, bank_information, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, app *models.Application) error {
	bank, err := marshalBank(app.BankInformation)
	if err != nil {
		return err
	}
	err = s.querier(ctx).QueryRowContext(ctx,
		`INSERT INTO applications (id, applicant_id, jurisdiction, full_name, document_type, identity_document,
			requested_amount, monthly_income, status, version, request_date, bank_information, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING seq`,
		app.ID, app.ApplicantID, string(app.Jurisdiction), app.FullName, app.DocumentType, app.IdentityDocument,
		app.RequestedAmount, app.MonthlyIncome, string(app.Status), app.Version, app.RequestDate, bank,
		app.CreatedAt, app.UpdatedAt,
	).Scan(&app.Seq)
	if err != nil {
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	row := s.querier(ctx).QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = $1`,
		id,
	)
	return scanApplication(row)
}

func (s *Postgres) ListByApplicant(ctx context.Context, applicantID uuid.UUID) ([]*models.Application, error) {
	rows, err := s.querier(ctx).QueryContext(ctx,
		`SELECT `+applicationColumns+` FROM applications
		 WHERE applicant_id = $1 ORDER BY created_at DESC, seq DESC`,
		applicantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var out []*models.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, app)
	}
	return out, rows.Err()
}

// Execute loads the row FOR UPDATE, runs the callbacks, and writes the
// mutated aggregate back guarded by the version it was read at. The
// version check inside the UPDATE keeps the guard correct even against
// writers that bypass Execute.
func (s *Postgres) Execute(ctx context.Context, id uuid.UUID, expectedVersion int64,
	validate func(*models.Application) error,
	apply func(*models.Application)) (*models.Application, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin execute tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = $1 FOR UPDATE`,
		id,
	)
	app, err := scanApplication(row)
	if err != nil {
		return nil, err
	}
	if expectedVersion != 0 && app.Version != expectedVersion {
		return nil, sentinel.ErrConflict
	}
	loadedVersion := app.Version

	if err := validate(app); err != nil {
		return nil, err
	}
	apply(app)

	bank, err := marshalBank(app.BankInformation)
	if err != nil {
		return nil, err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE applications
		 SET status = $3, version = $4, bank_information = $5, updated_at = $6
		 WHERE id = $1 AND version = $2`,
		app.ID, loadedVersion, string(app.Status), app.Version, bank, app.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update application: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update application affected rows: %w", err)
	}
	if affected == 0 {
		return nil, sentinel.ErrConflict
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit execute tx: %w", err)
	}
	return app, nil
}

func (s *Postgres) AppendEvent(ctx context.Context, event *models.TransitionEvent) error {
	_, err := s.querier(ctx).ExecContext(ctx,
		`INSERT INTO transition_events (id, application_id, from_status, to_status, actor_id, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.ApplicationID, string(event.From), string(event.To), event.ActorID, event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert transition event: %w", err)
	}
	return nil
}

func (s *Postgres) ListEvents(ctx context.Context, applicationID uuid.UUID) ([]*models.TransitionEvent, error) {
	rows, err := s.querier(ctx).QueryContext(ctx,
		`SELECT id, application_id, from_status, to_status, actor_id, occurred_at
		 FROM transition_events WHERE application_id = $1 ORDER BY occurred_at, id`,
		applicationID,
	)
	if err != nil {
		return nil, fmt.Errorf("list transition events: %w", err)
	}
	defer rows.Close()

	var out []*models.TransitionEvent
	for rows.Next() {
		var ev models.TransitionEvent
		if err := rows.Scan(&ev.ID, &ev.ApplicationID, &ev.From, &ev.To, &ev.ActorID, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan transition event: %w", err)
		}
		out = append(out, &ev)
	}
	return out, rows.Err()
}

func (s *Postgres) Purge(ctx context.Context) error {
	if _, err := s.querier(ctx).ExecContext(ctx,
		`TRUNCATE transition_events, applications RESTART IDENTITY`,
	); err != nil {
		return fmt.Errorf("purge applications: %w", err)
	}
	return nil
}

func (s *Postgres) Search(ctx context.Context, filters models.Filters, page, limit int) ([]*models.Application, int, error) {
	where, args := buildSearchClause(filters)

	var total int
	if err := s.querier(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM applications`+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}

	offset := (page - 1) * limit
	query := fmt.Sprintf(
		`SELECT %s FROM applications%s ORDER BY created_at DESC, seq DESC LIMIT $%d OFFSET $%d`,
		applicationColumns, where, len(args)+1, len(args)+2,
	)
	rows, err := s.querier(ctx).QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("search applications: %w", err)
	}
	defer rows.Close()

	items := []*models.Application{}
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, app)
	}
	return items, total, rows.Err()
}

func buildSearchClause(filters models.Filters) (string, []any) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.ApplicantID != (uuid.UUID{}) {
		conds = append(conds, "applicant_id = "+arg(filters.ApplicantID))
	}
	if len(filters.Jurisdictions) > 0 {
		placeholders := make([]string, 0, len(filters.Jurisdictions))
		for _, j := range filters.Jurisdictions {
			placeholders = append(placeholders, arg(string(j)))
		}
		conds = append(conds, "jurisdiction IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filters.DocumentSubstring != "" {
		conds = append(conds, "identity_document ILIKE "+arg("%"+escapeLike(filters.DocumentSubstring)+"%"))
	}
	if filters.Status != "" {
		conds = append(conds, "status = "+arg(string(filters.Status)))
	}
	if filters.DateRange != nil {
		if filters.DateRange.From != nil {
			conds = append(conds, "request_date >= "+arg(*filters.DateRange.From))
		}
		if filters.DateRange.To != nil {
			conds = append(conds, "request_date <= "+arg(*filters.DateRange.To))
		}
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func marshalBank(bank *models.BankInformation) ([]byte, error) {
	if bank == nil {
		return nil, nil
	}
	payload, err := json.Marshal(bank)
	if err != nil {
		return nil, fmt.Errorf("marshal bank information: %w", err)
	}
	return payload, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (*models.Application, error) {
	var (
		app          models.Application
		jurisdiction string
		bank         []byte
	)
	err := row.Scan(
		&app.ID, &app.Seq, &app.ApplicantID, &jurisdiction, &app.FullName, &app.DocumentType,
		&app.IdentityDocument, &app.RequestedAmount, &app.MonthlyIncome, &app.Status, &app.Version,
		&app.RequestDate, &bank, &app.CreatedAt, &app.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan application: %w", err)
	}
	app.Jurisdiction = rules.Jurisdiction(jurisdiction)
	if len(bank) > 0 {
		app.BankInformation = &models.BankInformation{}
		if err := json.Unmarshal(bank, app.BankInformation); err != nil {
			return nil, fmt.Errorf("decode bank information: %w", err)
		}
	}
	return &app, nil
}
