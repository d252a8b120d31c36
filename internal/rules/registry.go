package rules

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	rulemetrics "creditgate/internal/rules/metrics"
	dErrors "creditgate/pkg/domainerrors"
	"creditgate/pkg/platform/sentinel"
	"creditgate/pkg/requestcontext"
)

// RuleSetCache mirrors cache.RuleSetCache without importing it, so the
// registry stays free of the redis dependency and tests can use fakes.
type RuleSetCache interface {
	Get(ctx context.Context, jurisdiction Jurisdiction) (*RuleSet, error)
	Set(ctx context.Context, set *RuleSet) error
	Invalidate(ctx context.Context, jurisdiction Jurisdiction) error
}

// Registry holds the single active validation configuration per jurisdiction.
// Reads go through an optional cache; all writes invalidate it and re-verify
// the one-active-set invariant.
type Registry struct {
	store   Store
	cache   RuleSetCache
	logger  *slog.Logger
	metrics *rulemetrics.Metrics
}

// Option configures the Registry.
type Option func(*Registry)

// WithCache installs a read-through cache for active rule sets.
func WithCache(c RuleSetCache) Option {
	return func(r *Registry) { r.cache = c }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *rulemetrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

func NewRegistry(store Store, logger *slog.Logger, opts ...Option) *Registry {
	r := &Registry{store: store, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the active rule set for a jurisdiction.
func (r *Registry) Get(ctx context.Context, jurisdiction Jurisdiction) (*RuleSet, error) {
	if !jurisdiction.Valid() {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "unsupported jurisdiction %q", string(jurisdiction))
	}

	if r.cache != nil {
		set, err := r.cache.Get(ctx, jurisdiction)
		if err == nil {
			r.metrics.RecordCacheLookup(true)
			return set, nil
		}
		r.metrics.RecordCacheLookup(false)
	}

	set, err := r.store.FindActiveByJurisdiction(ctx, jurisdiction)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "no active rule set for %s", string(jurisdiction))
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load rule set")
	}

	if r.cache != nil {
		if cerr := r.cache.Set(ctx, set); cerr != nil {
			r.logger.WarnContext(ctx, "rule set cache fill failed",
				"jurisdiction", jurisdiction,
				"error", cerr,
			)
		}
	}
	return set, nil
}

// GetByID returns any stored version, active or retired. Retired versions
// stay readable so past decisions can be audited against the exact
// configuration they were evaluated under.
func (r *Registry) GetByID(ctx context.Context, id uuid.UUID) (*RuleSet, error) {
	set, err := r.store.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "rule set not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load rule set")
	}
	return set, nil
}

// List returns stored rule sets, newest first.
func (r *Registry) List(ctx context.Context, includeRetired bool) ([]*RuleSet, error) {
	sets, err := r.store.List(ctx, includeRetired)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list rule sets")
	}
	return sets, nil
}

// Activate installs set as the jurisdiction's active configuration, retiring
// the previous one. The store serializes concurrent activations; after every
// write the one-active-set invariant is re-verified.
func (r *Registry) Activate(ctx context.Context, set *RuleSet) error {
	if set == nil {
		return dErrors.New(dErrors.CodeBadRequest, "rule set is required")
	}
	// Fail closed before anything is written.
	if err := set.Validate(); err != nil {
		return err
	}

	if err := r.store.Activate(ctx, set); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeConflict, "rule set already exists")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to activate rule set")
	}

	if err := r.verifySingleActive(ctx, set.Jurisdiction); err != nil {
		return err
	}

	r.invalidate(ctx, set.Jurisdiction)
	r.metrics.IncrementActivations(string(set.Jurisdiction))
	r.logger.InfoContext(ctx, "rule set activated",
		"rule_set_id", set.ID,
		"jurisdiction", set.Jurisdiction,
		"actor_id", requestcontext.ActorID(ctx),
	)
	return nil
}

// Deactivate soft-deletes a rule set. History is retained; the jurisdiction
// is left without an active configuration until a new set is activated.
func (r *Registry) Deactivate(ctx context.Context, id uuid.UUID) error {
	set, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	err = r.store.Retire(ctx, id, requestcontext.Now(ctx))
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "rule set not found")
	}
	if errors.Is(err, sentinel.ErrInvalidState) {
		return dErrors.New(dErrors.CodeConflict, "rule set is already retired")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to retire rule set")
	}

	r.invalidate(ctx, set.Jurisdiction)
	r.metrics.IncrementRetirements()
	r.logger.InfoContext(ctx, "rule set retired",
		"rule_set_id", id,
		"jurisdiction", set.Jurisdiction,
		"actor_id", requestcontext.ActorID(ctx),
	)
	return nil
}

// verifySingleActive is the hard invariant check run after every write.
func (r *Registry) verifySingleActive(ctx context.Context, jurisdiction Jurisdiction) error {
	count, err := r.store.CountActive(ctx, jurisdiction)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify active rule set invariant")
	}
	if count != 1 {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"jurisdiction %s has %d active rule sets, expected exactly 1", string(jurisdiction), count)
	}
	return nil
}

func (r *Registry) invalidate(ctx context.Context, jurisdiction Jurisdiction) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Invalidate(ctx, jurisdiction); err != nil {
		r.logger.WarnContext(ctx, "rule set cache invalidation failed",
			"jurisdiction", jurisdiction,
			"error", err,
		)
	}
}

// NewVersion is a convenience for administrators editing configuration:
// it builds a fresh active set from the given rules and activates it,
// retiring the previous version. The old set is never mutated.
func (r *Registry) NewVersion(ctx context.Context, jurisdiction Jurisdiction, requiredDocumentType, description string, ruleList []Rule) (*RuleSet, error) {
	set, err := NewRuleSet(jurisdiction, requiredDocumentType, description, ruleList,
		requestcontext.ActorID(ctx), requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := r.Activate(ctx, set); err != nil {
		return nil, err
	}
	return set, nil
}
