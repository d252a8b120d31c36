package rules

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootstrap(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	registry := NewRegistry(store, slog.Default())

	require.NoError(t, Bootstrap(ctx, registry, slog.Default()))

	t.Run("installs a default set for every jurisdiction", func(t *testing.T) {
		for _, jurisdiction := range Jurisdictions() {
			set, err := registry.Get(ctx, jurisdiction)
			require.NoError(t, err, "jurisdiction %s", jurisdiction)
			assert.Equal(t, RuleSetActive, set.Status)
			assert.NotEmpty(t, set.Rules)
		}
	})

	t.Run("is idempotent", func(t *testing.T) {
		before, err := registry.Get(ctx, JurisdictionSpain)
		require.NoError(t, err)

		require.NoError(t, Bootstrap(ctx, registry, slog.Default()))

		after, err := registry.Get(ctx, JurisdictionSpain)
		require.NoError(t, err)
		assert.Equal(t, before.ID, after.ID)
	})

	t.Run("does not overwrite operator configuration", func(t *testing.T) {
		custom, err := registry.NewVersion(ctx, JurisdictionBrazil, DocumentCPF, "custom", []Rule{{
			Type:            RuleAmountThreshold,
			Enabled:         true,
			ErrorMessage:    "valor acima do limite",
			AmountThreshold: &AmountThresholdParams{Threshold: 1000},
		}})
		require.NoError(t, err)

		require.NoError(t, Bootstrap(ctx, registry, slog.Default()))

		active, err := registry.Get(ctx, JurisdictionBrazil)
		require.NoError(t, err)
		assert.Equal(t, custom.ID, active.ID)
	})
}
