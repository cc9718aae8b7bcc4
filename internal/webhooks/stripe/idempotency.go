package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ecomstore/storefront-backend/pkg/redis"
)

var errEventIDRequired = errors.New("stripe event id is required")

// IdempotencyGuard claims Stripe event ids in redis so retried deliveries
// are acknowledged without being applied twice. A zero ttl keeps claims forever.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
	now   func() time.Time
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	scope = strings.TrimSpace(scope)
	switch {
	case store == nil:
		return nil, errors.New("idempotency store is required")
	case ttl < 0:
		return nil, fmt.Errorf("ttl %s is negative", ttl)
	case scope == "":
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{store: store, ttl: ttl, scope: scope, now: time.Now}, nil
}

func (g *IdempotencyGuard) key(eventID string) (string, error) {
	if eventID = strings.TrimSpace(eventID); eventID == "" {
		return "", errEventIDRequired
	}
	return g.store.IdempotencyKey(g.scope, eventID), nil
}

// CheckAndMark claims eventID and reports whether an earlier delivery already held it.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	k, err := g.key(eventID)
	if err != nil {
		return false, err
	}
	claimed, err := g.store.SetNX(ctx, k, g.now().UTC().Format(time.RFC3339), g.ttl)
	if err != nil {
		return false, fmt.Errorf("claim stripe event %s: %w", eventID, err)
	}
	return !claimed, nil
}

// Delete drops the claim after a failed delivery.
func (g *IdempotencyGuard) Delete(ctx context.Context, eventID string) error {
	k, err := g.key(eventID)
	if err != nil {
		return err
	}
	if err := g.store.Del(ctx, k); err != nil {
		return fmt.Errorf("release stripe event %s: %w", eventID, err)
	}
	return nil
}
