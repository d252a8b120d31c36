package rules

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"creditgate/pkg/platform/sentinel"
	txcontext "creditgate/pkg/platform/tx"
)

// PostgresStore persists rule set versions in the rule_sets table. Rules are
// stored as a JSONB payload and re-validated on load so a corrupted
// configuration fails closed.
//
// Schema:
//
//	CREATE TABLE rule_sets (
//	    id UUID PRIMARY KEY,
//	    jurisdiction TEXT NOT NULL,
//	    required_document_type TEXT NOT NULL,
//	    description TEXT NOT NULL DEFAULT '',
//	    status TEXT NOT NULL,
//	    rules JSONB NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL,
//	    created_by UUID
//	);
//	CREATE UNIQUE INDEX rule_sets_one_active
//	    ON rule_sets (jurisdiction) WHERE status = 'active';
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type sqlQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) querier(ctx context.Context) sqlQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const ruleSetColumns = `id, jurisdiction, required_document_type, description, status, rules, created_at, updated_at, created_by`

func (s *PostgresStore) FindActiveByJurisdiction(ctx context.Context, jurisdiction Jurisdiction) (*RuleSet, error) {
	row := s.querier(ctx).QueryRowContext(ctx,
		`SELECT `+ruleSetColumns+` FROM rule_sets WHERE jurisdiction = $1 AND status = 'active'`,
		string(jurisdiction),
	)
	return scanRuleSet(row)
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*RuleSet, error) {
	row := s.querier(ctx).QueryRowContext(ctx,
		`SELECT `+ruleSetColumns+` FROM rule_sets WHERE id = $1`,
		id,
	)
	return scanRuleSet(row)
}

func (s *PostgresStore) List(ctx context.Context, includeRetired bool) ([]*RuleSet, error) {
	query := `SELECT ` + ruleSetColumns + ` FROM rule_sets`
	if !includeRetired {
		query += ` WHERE status = 'active'`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.querier(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list rule sets: %w", err)
	}
	defer rows.Close()

	var out []*RuleSet
	for rows.Next() {
		set, err := scanRuleSet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, set)
	}
	return out, rows.Err()
}

// Activate retires the jurisdiction's current active set and inserts the new
// one inside a single transaction. SELECT ... FOR UPDATE serializes
// concurrent activations for the same jurisdiction.
func (s *PostgresStore) Activate(ctx context.Context, set *RuleSet) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin activate tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM rule_sets WHERE jurisdiction = $1 AND status = 'active' FOR UPDATE`,
		string(set.Jurisdiction),
	)
	if err != nil {
		return fmt.Errorf("lock active rule set: %w", err)
	}
	var previous []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan active rule set id: %w", err)
		}
		previous = append(previous, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate active rule sets: %w", err)
	}

	for _, id := range previous {
		if _, err := tx.ExecContext(ctx,
			`UPDATE rule_sets SET status = 'retired', updated_at = $2 WHERE id = $1`,
			id, set.UpdatedAt,
		); err != nil {
			return fmt.Errorf("retire rule set %s: %w", id, err)
		}
	}

	payload, err := json.Marshal(set.Rules)
	if err != nil {
		return fmt.Errorf("marshal rules payload: %w", err)
	}
	var createdBy any
	if set.CreatedBy != (uuid.UUID{}) {
		createdBy = set.CreatedBy
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO rule_sets (`+ruleSetColumns+`)
		 VALUES ($1, $2, $3, $4, 'active', $5, $6, $7, $8)`,
		set.ID, string(set.Jurisdiction), set.RequiredDocumentType, set.Description,
		payload, set.CreatedAt, set.UpdatedAt, createdBy,
	); err != nil {
		return fmt.Errorf("insert rule set: %w", err)
	}

	return tx.Commit()
}

func (s *PostgresStore) Retire(ctx context.Context, id uuid.UUID, now time.Time) error {
	res, err := s.querier(ctx).ExecContext(ctx,
		`UPDATE rule_sets SET status = 'retired', updated_at = $2 WHERE id = $1 AND status = 'active'`,
		id, now,
	)
	if err != nil {
		return fmt.Errorf("retire rule set: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("retire rule set affected rows: %w", err)
	}
	if affected == 0 {
		// Either unknown or already retired; distinguish for the caller.
		if _, ferr := s.FindByID(ctx, id); errors.Is(ferr, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *PostgresStore) CountActive(ctx context.Context, jurisdiction Jurisdiction) (int, error) {
	var count int
	err := s.querier(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rule_sets WHERE jurisdiction = $1 AND status = 'active'`,
		string(jurisdiction),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active rule sets: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRuleSet(row rowScanner) (*RuleSet, error) {
	var (
		set       RuleSet
		payload   []byte
		createdBy uuid.NullUUID
	)
	err := row.Scan(
		&set.ID, &set.Jurisdiction, &set.RequiredDocumentType, &set.Description,
		&set.Status, &payload, &set.CreatedAt, &set.UpdatedAt, &createdBy,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan rule set: %w", err)
	}
	if err := json.Unmarshal(payload, &set.Rules); err != nil {
		return nil, fmt.Errorf("decode rules payload: %w", err)
	}
	if createdBy.Valid {
		set.CreatedBy = createdBy.UUID
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return &set, nil
}
