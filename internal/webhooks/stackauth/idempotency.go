package stackauthwebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/personacraft-backend/pkg/redis"
)

// IdempotencyGuard short-circuits redelivered svix message ids.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{store: store, ttl: ttl, scope: scope}, nil
}

// CheckAndMark reports true when messageID was already claimed.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, messageID string) (bool, error) {
	if messageID == "" {
		return false, errors.New("message id is required")
	}
	set, err := g.store.SetNX(ctx, g.store.IdempotencyKey(g.scope, messageID), "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Release lets a failed delivery be processed again on redelivery.
func (g *IdempotencyGuard) Release(ctx context.Context, messageID string) error {
	if messageID == "" {
		return errors.New("message id is required")
	}
	return g.store.Del(ctx, g.store.IdempotencyKey(g.scope, messageID))
}
