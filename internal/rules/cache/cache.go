// Package cache provides a read-through Redis cache for active rule sets.
// Registry writes invalidate eagerly; a TTL backstops missed invalidations.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	platformredis "creditgate/internal/platform/redis"
	"creditgate/internal/rules"
)

// ErrMiss is returned when the jurisdiction has no cached active set.
var ErrMiss = errors.New("rule set cache miss")

// RuleSetCache is the cache port the registry depends on. A nil cache is
// valid and means every read goes to the store.
type RuleSetCache interface {
	Get(ctx context.Context, jurisdiction rules.Jurisdiction) (*rules.RuleSet, error)
	Set(ctx context.Context, set *rules.RuleSet) error
	Invalidate(ctx context.Context, jurisdiction rules.Jurisdiction) error
}

// Redis implements RuleSetCache on the shared platform client.
type Redis struct {
	client *platformredis.Client
	ttl    time.Duration
}

func NewRedis(client *platformredis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func key(jurisdiction rules.Jurisdiction) string {
	return "creditgate:rules:active:" + string(jurisdiction)
}

func (c *Redis) Get(ctx context.Context, jurisdiction rules.Jurisdiction) (*rules.RuleSet, error) {
	raw, err := c.client.Get(ctx, key(jurisdiction)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("rule set cache get: %w", err)
	}
	var set rules.RuleSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("decode cached rule set: %w", err)
	}
	// A tampered or stale payload must not reach the engine.
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return &set, nil
}

func (c *Redis) Set(ctx context.Context, set *rules.RuleSet) error {
	raw, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("encode rule set: %w", err)
	}
	if err := c.client.Set(ctx, key(set.Jurisdiction), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("rule set cache set: %w", err)
	}
	return nil
}

func (c *Redis) Invalidate(ctx context.Context, jurisdiction rules.Jurisdiction) error {
	if err := c.client.Del(ctx, key(jurisdiction)).Err(); err != nil {
		return fmt.Errorf("rule set cache invalidate: %w", err)
	}
	return nil
}
