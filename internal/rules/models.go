package rules

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	dErrors "creditgate/pkg/domainerrors"
)

// Jurisdiction is a country-scoped validation configuration key.
type Jurisdiction string

const (
	JurisdictionSpain    Jurisdiction = "Spain"
	JurisdictionPortugal Jurisdiction = "Portugal"
	JurisdictionItaly    Jurisdiction = "Italy"
	JurisdictionMexico   Jurisdiction = "Mexico"
	JurisdictionColombia Jurisdiction = "Colombia"
	JurisdictionBrazil   Jurisdiction = "Brazil"
)

// Jurisdictions lists every supported jurisdiction in bootstrap order.
func Jurisdictions() []Jurisdiction {
	return []Jurisdiction{
		JurisdictionSpain,
		JurisdictionPortugal,
		JurisdictionItaly,
		JurisdictionMexico,
		JurisdictionColombia,
		JurisdictionBrazil,
	}
}

func (j Jurisdiction) Valid() bool {
	switch j {
	case JurisdictionSpain, JurisdictionPortugal, JurisdictionItaly,
		JurisdictionMexico, JurisdictionColombia, JurisdictionBrazil:
		return true
	}
	return false
}

// RuleType is the closed set of validation rule kinds.
type RuleType string

const (
	RuleDocumentVerification RuleType = "document_verification"
	RuleAmountThreshold      RuleType = "amount_threshold"
	RuleIncomeRatio          RuleType = "income_ratio"
	RuleDebtRatio            RuleType = "debt_ratio"
	RuleFinancialStability   RuleType = "financial_stability"
	RuleCreditScore          RuleType = "credit_score"
)

// Parameter blocks, one per rule type. A rule carries exactly the block
// matching its type; Validate fails closed on anything else.

type AmountThresholdParams struct {
	Threshold float64 `json:"threshold"`
}

type IncomeRatioParams struct {
	// MaxRatio is the maximum fraction of monthly income that may be
	// requested (0.30 for 30%).
	MaxRatio float64 `json:"max_ratio"`
}

type DebtRatioParams struct {
	MaxRatio float64 `json:"max_ratio"`
}

type FinancialStabilityParams struct {
	MinMonthsEmployed int `json:"min_months_employed"`
}

type CreditScoreParams struct {
	MinScore int `json:"min_score"`
}

// Rule is one validation rule inside a rule set. Rules are immutable once the
// owning rule set is persisted; configuration changes create a new set.
type Rule struct {
	Type           RuleType `json:"type"`
	Enabled        bool     `json:"enabled"`
	RequiresReview bool     `json:"requires_review"`
	ErrorMessage   string   `json:"error_message"`

	AmountThreshold    *AmountThresholdParams    `json:"amount_threshold,omitempty"`
	IncomeRatio        *IncomeRatioParams        `json:"income_ratio,omitempty"`
	DebtRatio          *DebtRatioParams          `json:"debt_ratio,omitempty"`
	FinancialStability *FinancialStabilityParams `json:"financial_stability,omitempty"`
	CreditScore        *CreditScoreParams        `json:"credit_score,omitempty"`
}

// Validate checks that the rule is well formed: a known type, the matching
// parameter block present, and no stray blocks from other types. Unknown or
// incomplete configuration is a hard error, never a silently skipped rule.
func (r Rule) Validate() error {
	blocks := 0
	if r.AmountThreshold != nil {
		blocks++
	}
	if r.IncomeRatio != nil {
		blocks++
	}
	if r.DebtRatio != nil {
		blocks++
	}
	if r.FinancialStability != nil {
		blocks++
	}
	if r.CreditScore != nil {
		blocks++
	}

	switch r.Type {
	case RuleDocumentVerification:
		if blocks != 0 {
			return dErrors.New(dErrors.CodeConfigurationError, "document verification rule takes no parameters")
		}
	case RuleAmountThreshold:
		if r.AmountThreshold == nil || blocks != 1 {
			return dErrors.New(dErrors.CodeConfigurationError, "amount threshold rule requires exactly its threshold parameters")
		}
		if r.AmountThreshold.Threshold <= 0 {
			return dErrors.New(dErrors.CodeConfigurationError, "amount threshold must be positive")
		}
	case RuleIncomeRatio:
		if r.IncomeRatio == nil || blocks != 1 {
			return dErrors.New(dErrors.CodeConfigurationError, "income ratio rule requires exactly its ratio parameters")
		}
		if r.IncomeRatio.MaxRatio <= 0 {
			return dErrors.New(dErrors.CodeConfigurationError, "income ratio must be positive")
		}
	case RuleDebtRatio:
		if r.DebtRatio == nil || blocks != 1 {
			return dErrors.New(dErrors.CodeConfigurationError, "debt ratio rule requires exactly its ratio parameters")
		}
		if r.DebtRatio.MaxRatio <= 0 {
			return dErrors.New(dErrors.CodeConfigurationError, "debt ratio must be positive")
		}
	case RuleFinancialStability:
		if r.FinancialStability == nil || blocks != 1 {
			return dErrors.New(dErrors.CodeConfigurationError, "financial stability rule requires exactly its employment parameters")
		}
		if r.FinancialStability.MinMonthsEmployed <= 0 {
			return dErrors.New(dErrors.CodeConfigurationError, "minimum months employed must be positive")
		}
	case RuleCreditScore:
		if r.CreditScore == nil || blocks != 1 {
			return dErrors.New(dErrors.CodeConfigurationError, "credit score rule requires exactly its score parameters")
		}
		if r.CreditScore.MinScore <= 0 {
			return dErrors.New(dErrors.CodeConfigurationError, "minimum credit score must be positive")
		}
	default:
		return dErrors.Newf(dErrors.CodeConfigurationError, "unknown rule type %q", string(r.Type))
	}
	return nil
}

// RuleSetStatus tags a rule set as the live configuration or a retired
// historical version. Retired sets are never deleted so past decisions stay
// auditable.
type RuleSetStatus string

const (
	RuleSetActive  RuleSetStatus = "active"
	RuleSetRetired RuleSetStatus = "retired"
)

// RuleSet is one versioned validation configuration for a jurisdiction.
//
// Invariants:
//   - At most one active set exists per jurisdiction at any time
//   - Rules are immutable once the set is persisted; updates create a new
//     set and retire the old one
type RuleSet struct {
	ID                   uuid.UUID     `json:"id"`
	Jurisdiction         Jurisdiction  `json:"jurisdiction"`
	RequiredDocumentType string        `json:"required_document_type"`
	Description          string        `json:"description,omitempty"`
	Status               RuleSetStatus `json:"status"`
	Rules                []Rule        `json:"rules"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
	CreatedBy            uuid.UUID     `json:"created_by,omitempty"`
}

// NewRuleSet builds an active rule set, validating every rule up front.
func NewRuleSet(jurisdiction Jurisdiction, requiredDocumentType, description string, ruleList []Rule, createdBy uuid.UUID, now time.Time) (*RuleSet, error) {
	if !jurisdiction.Valid() {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "unsupported jurisdiction %q", string(jurisdiction))
	}
	if requiredDocumentType == "" {
		return nil, dErrors.New(dErrors.CodeConfigurationError, "required document type cannot be empty")
	}
	for i, r := range ruleList {
		if err := r.Validate(); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeConfigurationError, "rule "+strconv.Itoa(i)+" is invalid")
		}
	}
	return &RuleSet{
		ID:                   uuid.New(),
		Jurisdiction:         jurisdiction,
		RequiredDocumentType: requiredDocumentType,
		Description:          description,
		Status:               RuleSetActive,
		Rules:                ruleList,
		CreatedAt:            now,
		UpdatedAt:            now,
		CreatedBy:            createdBy,
	}, nil
}

func (s *RuleSet) IsActive() bool {
	return s.Status == RuleSetActive
}

// ApplyRetirement marks the set retired. Rules are left untouched.
func (s *RuleSet) ApplyRetirement(now time.Time) {
	s.Status = RuleSetRetired
	s.UpdatedAt = now
}

// Validate re-checks the whole set, used when decoding persisted payloads so
// a corrupted configuration fails closed instead of evaluating partially.
func (s *RuleSet) Validate() error {
	if !s.Jurisdiction.Valid() {
		return dErrors.Newf(dErrors.CodeConfigurationError, "stored rule set has unsupported jurisdiction %q", string(s.Jurisdiction))
	}
	if s.RequiredDocumentType == "" {
		return dErrors.New(dErrors.CodeConfigurationError, "stored rule set has no required document type")
	}
	for i, r := range s.Rules {
		if err := r.Validate(); err != nil {
			return dErrors.Wrap(err, dErrors.CodeConfigurationError, "stored rule "+strconv.Itoa(i)+" is invalid")
		}
	}
	return nil
}
