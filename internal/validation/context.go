package validation

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"golang.org/x/sync/errgroup"

	"creditgate/internal/rules"
)

// ApplicantContext carries externally sourced applicant facts. Nil fields
// mean the fact is unavailable; rules depending on it are skipped, never
// triggered.
type ApplicantContext struct {
	CreditScore    *int
	MonthlyDebt    *float64
	MonthsEmployed *int
}

// Subject identifies the applicant towards external data sources.
type Subject struct {
	ApplicantID      uuid.UUID
	Jurisdiction     rules.Jurisdiction
	IdentityDocument string
}

// External data source ports. Integrations are wired per deployment; any of
// them may be absent.
type (
	CreditScoreSource interface {
		FetchCreditScore(ctx context.Context, subject Subject) (int, error)
	}
	DebtSource interface {
		FetchMonthlyDebt(ctx context.Context, subject Subject) (float64, error)
	}
	EmploymentSource interface {
		FetchMonthsEmployed(ctx context.Context, subject Subject) (int, error)
	}
)

const gatherTimeout = 3 * time.Second

// Gatherer collects applicant facts from the configured sources in parallel.
// A failing or missing source leaves its fact nil; submission must not block
// on bureau availability.
type Gatherer struct {
	score      CreditScoreSource
	debt       DebtSource
	employment EmploymentSource
	logger     *slog.Logger
}

// GathererOption configures a Gatherer.
type GathererOption func(*Gatherer)

func WithCreditScoreSource(s CreditScoreSource) GathererOption {
	return func(g *Gatherer) { g.score = s }
}

func WithDebtSource(s DebtSource) GathererOption {
	return func(g *Gatherer) { g.debt = s }
}

func WithEmploymentSource(s EmploymentSource) GathererOption {
	return func(g *Gatherer) { g.employment = s }
}

func NewGatherer(logger *slog.Logger, opts ...GathererOption) *Gatherer {
	g := &Gatherer{logger: logger}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Gather fetches all configured facts concurrently under a shared timeout.
// Returns nil when no source is configured, which the engine treats as
// "external data unavailable".
func (g *Gatherer) Gather(ctx context.Context, subject Subject) *ApplicantContext {
	if g == nil || (g.score == nil && g.debt == nil && g.employment == nil) {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, gatherTimeout)
	defer cancel()

	applicant := &ApplicantContext{}
	eg, ctx := errgroup.WithContext(ctx)

	if g.score != nil {
		eg.Go(func() error {
			score, err := g.score.FetchCreditScore(ctx, subject)
			if err != nil {
				g.logger.WarnContext(ctx, "credit score source failed",
					"applicant_id", subject.ApplicantID,
					"error", err,
				)
				return nil
			}
			applicant.CreditScore = &score
			return nil
		})
	}
	if g.debt != nil {
		eg.Go(func() error {
			debt, err := g.debt.FetchMonthlyDebt(ctx, subject)
			if err != nil {
				g.logger.WarnContext(ctx, "debt source failed",
					"applicant_id", subject.ApplicantID,
					"error", err,
				)
				return nil
			}
			applicant.MonthlyDebt = &debt
			return nil
		})
	}
	if g.employment != nil {
		eg.Go(func() error {
			months, err := g.employment.FetchMonthsEmployed(ctx, subject)
			if err != nil {
				g.logger.WarnContext(ctx, "employment source failed",
					"applicant_id", subject.ApplicantID,
					"error", err,
				)
				return nil
			}
			applicant.MonthsEmployed = &months
			return nil
		})
	}

	_ = eg.Wait()
	return applicant
}
