package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creditgate/internal/rules"
	dErrors "creditgate/pkg/domainerrors"
)

func TestStatusTransitionTable(t *testing.T) {
	all := []Status{StatusPending, StatusInReview, StatusApproved, StatusRejected, StatusCancelled}

	allowed := map[Status][]Status{
		StatusPending:  {StatusInReview, StatusApproved, StatusRejected, StatusCancelled},
		StatusInReview: {StatusApproved, StatusRejected},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusInReview.IsTerminal())
	assert.True(t, StatusApproved.IsTerminal())
	assert.True(t, StatusRejected.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
}

func TestNewApplicationGuards(t *testing.T) {
	now := time.Now()
	applicant := uuid.New()

	t.Run("valid application", func(t *testing.T) {
		app, err := NewApplication(applicant, rules.JurisdictionSpain, "Ana Pérez", "DNI",
			"12345678Z", 10000, 2500, StatusPending, now)
		require.NoError(t, err)
		assert.Equal(t, int64(1), app.Version)
		assert.Equal(t, StatusPending, app.Status)
		assert.Equal(t, now, app.RequestDate)
		assert.NotEqual(t, uuid.UUID{}, app.ID)
	})

	t.Run("missing applicant", func(t *testing.T) {
		_, err := NewApplication(uuid.UUID{}, rules.JurisdictionSpain, "Ana Pérez", "DNI",
			"12345678Z", 10000, 2500, StatusPending, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("non-positive requested amount", func(t *testing.T) {
		_, err := NewApplication(applicant, rules.JurisdictionSpain, "Ana Pérez", "DNI",
			"12345678Z", 0, 2500, StatusPending, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("non-positive monthly income", func(t *testing.T) {
		_, err := NewApplication(applicant, rules.JurisdictionSpain, "Ana Pérez", "DNI",
			"12345678Z", 10000, -1, StatusPending, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("terminal initial status", func(t *testing.T) {
		_, err := NewApplication(applicant, rules.JurisdictionSpain, "Ana Pérez", "DNI",
			"12345678Z", 10000, 2500, StatusApproved, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestCanTransition(t *testing.T) {
	t.Run("unknown target", func(t *testing.T) {
		app := &Application{Status: StatusPending, Version: 1}
		err := app.CanTransition(Status("escalated"))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("illegal move from a terminal status", func(t *testing.T) {
		app := &Application{Status: StatusRejected, Version: 3}
		err := app.CanTransition(StatusInReview)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeIllegalTransition))
	})

	t.Run("legal move applies and bumps version", func(t *testing.T) {
		app := &Application{Status: StatusPending, Version: 1}
		require.NoError(t, app.CanTransition(StatusInReview))
		at := time.Now()
		app.ApplyTransition(StatusInReview, at)
		assert.Equal(t, StatusInReview, app.Status)
		assert.Equal(t, int64(2), app.Version)
		assert.Equal(t, at, app.UpdatedAt)
	})
}
