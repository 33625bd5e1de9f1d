// Package stripewebhook holds the Redis-backed de-duplication in front of
// Stripe webhook processing.
package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/hireloop-backend/pkg/instance"
	"github.com/angelmondragon/hireloop-backend/pkg/redis"
)

// Scope namespaces webhook event ids in the idempotency store.
const Scope = "stripe-webhook"

var errEventIDRequired = errors.New("event id is required")

// IdempotencyGuard drops re-deliveries of an event id before they reach the
// database. It only saves work; the conditional status update keeps
// processing correct when Redis is unavailable.
type IdempotencyGuard struct {
	store    redis.IdempotencyStore
	ttl      time.Duration
	scope    string
	claimant string
	now      func() time.Time
}

// NewIdempotencyGuard builds a guard whose claims expire after ttl. A zero
// ttl keeps claims until they are released.
func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{
		store:    store,
		ttl:      ttl,
		scope:    scope,
		claimant: instance.GetID(),
		now:      time.Now,
	}, nil
}

// CheckAndMark claims the event id and reports whether it was already claimed.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	key, err := g.key(eventID)
	if err != nil {
		return false, err
	}
	// the value names who claimed the event and when, for debugging stuck ids
	claim := fmt.Sprintf("%s@%s", g.claimant, g.now().UTC().Format(time.RFC3339))
	set, err := g.store.SetNX(ctx, key, claim, g.ttl)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return !set, nil
}

// Release forgets the event id so a provider retry is processed again.
func (g *IdempotencyGuard) Release(ctx context.Context, eventID string) error {
	key, err := g.key(eventID)
	if err != nil {
		return err
	}
	if err := g.store.Del(ctx, key); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}

func (g *IdempotencyGuard) key(eventID string) (string, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return "", errEventIDRequired
	}
	return g.store.IdempotencyKey(g.scope, eventID), nil
}
