// Package validation evaluates submitted credit applications against a
// jurisdiction's rule set. The engine is pure domain logic: no I/O, no side
// effects, deterministic for a given rule set snapshot and input.
package validation

import (
	"creditgate/internal/rules"
	"creditgate/internal/rules/document"
	dErrors "creditgate/pkg/domainerrors"
)

// Application carries the submitted facts the engine evaluates.
type Application struct {
	Jurisdiction     rules.Jurisdiction
	DocumentType     string
	IdentityDocument string
	RequestedAmount  float64
	MonthlyIncome    float64
}

// InitialStatus is the lifecycle status an admitted application starts in.
type InitialStatus string

const (
	InitialPending  InitialStatus = "pending"
	InitialInReview InitialStatus = "in_review"
)

// Violation records one triggered rule. Review violations route the
// application to a human; non-review violations block creation.
type Violation struct {
	RuleType rules.RuleType
	Message  string
	Review   bool
}

// Decision is the engine's verdict on a submission.
type Decision struct {
	Admitted      bool
	InitialStatus InitialStatus
	Violations    []Violation
	// Skipped lists enabled rules that could not be evaluated because no
	// external applicant data was supplied. They are reported rather than
	// silently ignored.
	Skipped []rules.RuleType
}

// Engine evaluates applications against rule sets. The rule chain is
// order-sensitive: review-flagged rules are soft signals and evaluation
// continues, while non-review rules are compliance gates that abort
// immediately. A later hard gate overrides an earlier review downgrade, so
// compliance always wins over convenience.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Evaluate runs the jurisdiction's rule chain over the application.
//
// The required document type is always a hard gate, checked before any rule
// flags are consulted. Enabled rules then run in stored order. Rules that
// need external applicant data (debt ratio, financial stability, credit
// score) are evaluated only when applicant supplies the corresponding fact;
// without it they are reported in Decision.Skipped and never trigger.
//
// Malformed configuration (unknown rule type, missing parameters) fails
// closed with a configuration error instead of skipping the rule.
func (e *Engine) Evaluate(app Application, set *rules.RuleSet, applicant *ApplicantContext) (Decision, error) {
	if set == nil {
		return Decision{}, dErrors.New(dErrors.CodeConfigurationError, "rule set is required")
	}

	if app.DocumentType != set.RequiredDocumentType {
		return Decision{
			Admitted: false,
			Violations: []Violation{{
				RuleType: rules.RuleDocumentVerification,
				Message:  documentMessage(set),
			}},
		}, nil
	}

	if res := document.Validate(app.Jurisdiction, app.DocumentType, app.IdentityDocument); !res.Valid {
		return Decision{
			Admitted: false,
			Violations: []Violation{{
				RuleType: rules.RuleDocumentVerification,
				Message:  res.Message,
			}},
		}, nil
	}

	decision := Decision{Admitted: true, InitialStatus: InitialPending}

	for _, rule := range set.Rules {
		if err := rule.Validate(); err != nil {
			return Decision{}, err
		}
		if !rule.Enabled || rule.Type == rules.RuleDocumentVerification {
			continue
		}

		triggered, evaluated := trigger(rule, app, applicant)
		if !evaluated {
			decision.Skipped = append(decision.Skipped, rule.Type)
			continue
		}
		if !triggered {
			continue
		}

		if rule.RequiresReview {
			decision.InitialStatus = InitialInReview
			decision.Violations = append(decision.Violations, Violation{
				RuleType: rule.Type,
				Message:  rule.ErrorMessage,
				Review:   true,
			})
			continue
		}

		// Hard gate: abort immediately, overriding any review downgrade.
		decision.Admitted = false
		decision.InitialStatus = ""
		decision.Violations = append(decision.Violations, Violation{
			RuleType: rule.Type,
			Message:  rule.ErrorMessage,
		})
		return decision, nil
	}

	return decision, nil
}

// trigger computes whether a rule fires. The second result reports whether
// the rule could be evaluated at all; external-data rules without their fact
// return (false, false).
func trigger(rule rules.Rule, app Application, applicant *ApplicantContext) (triggered, evaluated bool) {
	switch rule.Type {
	case rules.RuleAmountThreshold:
		return app.RequestedAmount > rule.AmountThreshold.Threshold, true
	case rules.RuleIncomeRatio:
		return app.RequestedAmount > app.MonthlyIncome*rule.IncomeRatio.MaxRatio, true
	case rules.RuleDebtRatio:
		if applicant == nil || applicant.MonthlyDebt == nil {
			return false, false
		}
		return *applicant.MonthlyDebt > app.MonthlyIncome*rule.DebtRatio.MaxRatio, true
	case rules.RuleFinancialStability:
		if applicant == nil || applicant.MonthsEmployed == nil {
			return false, false
		}
		return *applicant.MonthsEmployed < rule.FinancialStability.MinMonthsEmployed, true
	case rules.RuleCreditScore:
		if applicant == nil || applicant.CreditScore == nil {
			return false, false
		}
		return *applicant.CreditScore < rule.CreditScore.MinScore, true
	}
	return false, false
}

// documentMessage finds the configured document rule message, with a
// jurisdiction-generic fallback for sets that carry no explicit document rule.
func documentMessage(set *rules.RuleSet) string {
	for _, rule := range set.Rules {
		if rule.Type == rules.RuleDocumentVerification && rule.ErrorMessage != "" {
			return rule.ErrorMessage
		}
	}
	return "El tipo de documento requerido para " + string(set.Jurisdiction) + " es " + set.RequiredDocumentType
}
