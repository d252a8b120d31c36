package rules

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "creditgate/pkg/domainerrors"
)

func TestRuleValidate(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
		ok   bool
	}{
		{
			name: "document rule without parameters",
			rule: Rule{Type: RuleDocumentVerification, Enabled: true},
			ok:   true,
		},
		{
			name: "document rule with stray parameters",
			rule: Rule{Type: RuleDocumentVerification, AmountThreshold: &AmountThresholdParams{Threshold: 1}},
			ok:   false,
		},
		{
			name: "amount threshold with its block",
			rule: Rule{Type: RuleAmountThreshold, AmountThreshold: &AmountThresholdParams{Threshold: 50000}},
			ok:   true,
		},
		{
			name: "amount threshold missing its block",
			rule: Rule{Type: RuleAmountThreshold},
			ok:   false,
		},
		{
			name: "amount threshold with a foreign block",
			rule: Rule{
				Type:            RuleAmountThreshold,
				AmountThreshold: &AmountThresholdParams{Threshold: 1},
				IncomeRatio:     &IncomeRatioParams{MaxRatio: 0.3},
			},
			ok: false,
		},
		{
			name: "non-positive threshold",
			rule: Rule{Type: RuleAmountThreshold, AmountThreshold: &AmountThresholdParams{Threshold: 0}},
			ok:   false,
		},
		{
			name: "credit score with its block",
			rule: Rule{Type: RuleCreditScore, CreditScore: &CreditScoreParams{MinScore: 600}},
			ok:   true,
		},
		{
			name: "unknown rule type",
			rule: Rule{Type: RuleType("astrology")},
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeConfigurationError))
			}
		})
	}
}

func TestNewRuleSet(t *testing.T) {
	validRules := []Rule{{
		Type:            RuleAmountThreshold,
		Enabled:         true,
		ErrorMessage:    "too much",
		AmountThreshold: &AmountThresholdParams{Threshold: 50000},
	}}

	t.Run("builds an active set", func(t *testing.T) {
		set, err := NewRuleSet(JurisdictionSpain, DocumentDNI, "desc", validRules, uuid.New(), time.Now())
		require.NoError(t, err)
		assert.Equal(t, RuleSetActive, set.Status)
		assert.NotEqual(t, uuid.UUID{}, set.ID)
	})

	t.Run("rejects unknown jurisdiction", func(t *testing.T) {
		_, err := NewRuleSet(Jurisdiction("Atlantis"), DocumentDNI, "", validRules, uuid.New(), time.Now())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("rejects empty document type", func(t *testing.T) {
		_, err := NewRuleSet(JurisdictionSpain, "", "", validRules, uuid.New(), time.Now())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConfigurationError))
	})

	t.Run("rejects a malformed rule", func(t *testing.T) {
		_, err := NewRuleSet(JurisdictionSpain, DocumentDNI, "", []Rule{{Type: RuleIncomeRatio}},
			uuid.New(), time.Now())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConfigurationError))
	})
}

func TestApplyRetirement(t *testing.T) {
	set, err := NewRuleSet(JurisdictionSpain, DocumentDNI, "", []Rule{{
		Type: RuleDocumentVerification, Enabled: true,
	}}, uuid.New(), time.Now())
	require.NoError(t, err)

	retiredAt := time.Now().Add(time.Hour)
	set.ApplyRetirement(retiredAt)
	assert.Equal(t, RuleSetRetired, set.Status)
	assert.Equal(t, retiredAt, set.UpdatedAt)
}
