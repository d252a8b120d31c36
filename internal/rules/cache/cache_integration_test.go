//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	platformredis "creditgate/internal/platform/redis"
	"creditgate/internal/rules"
	"creditgate/pkg/testutil/containers"
)

func newCache(t *testing.T, ttl time.Duration) (*Redis, *containers.RedisContainer) {
	t.Helper()
	container := containers.NewRedisContainer(t)
	t.Cleanup(func() {
		_ = container.Client.Close()
		_ = container.Container.Terminate(context.Background())
	})
	return NewRedis(&platformredis.Client{Client: container.Client}, ttl), container
}

func spainSet(t *testing.T) *rules.RuleSet {
	t.Helper()
	set, err := rules.NewRuleSet(rules.JurisdictionSpain, "DNI", "cache fixture", []rules.Rule{
		{
			Type:            rules.RuleAmountThreshold,
			Enabled:         true,
			ErrorMessage:    "amount over the limit",
			AmountThreshold: &rules.AmountThresholdParams{Threshold: 50000},
		},
	}, uuid.New(), time.Now().UTC().Truncate(time.Millisecond))
	require.NoError(t, err)
	return set
}

func TestCacheRoundTrip(t *testing.T) {
	cache, _ := newCache(t, time.Minute)
	ctx := context.Background()

	_, err := cache.Get(ctx, rules.JurisdictionSpain)
	assert.ErrorIs(t, err, ErrMiss)

	set := spainSet(t)
	require.NoError(t, cache.Set(ctx, set))

	cached, err := cache.Get(ctx, rules.JurisdictionSpain)
	require.NoError(t, err)
	assert.Equal(t, set.ID, cached.ID)
	require.Len(t, cached.Rules, 1)
	assert.Equal(t, float64(50000), cached.Rules[0].AmountThreshold.Threshold)

	// Jurisdictions are cached independently.
	_, err = cache.Get(ctx, rules.JurisdictionBrazil)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestCacheInvalidate(t *testing.T) {
	cache, _ := newCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, spainSet(t)))
	require.NoError(t, cache.Invalidate(ctx, rules.JurisdictionSpain))

	_, err := cache.Get(ctx, rules.JurisdictionSpain)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestCacheRejectsTamperedPayload(t *testing.T) {
	cache, container := newCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, container.Client.Set(ctx,
		"creditgate:rules:active:Spain", `{"jurisdiction":"Spain"}`, time.Minute).Err())

	_, err := cache.Get(ctx, rules.JurisdictionSpain)
	assert.Error(t, err)
}

func TestCacheTTL(t *testing.T) {
	cache, _ := newCache(t, 100*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, spainSet(t)))
	time.Sleep(200 * time.Millisecond)

	_, err := cache.Get(ctx, rules.JurisdictionSpain)
	assert.ErrorIs(t, err, ErrMiss)
}
