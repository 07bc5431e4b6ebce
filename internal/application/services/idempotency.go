package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hyeonwoo-dev/subpay/internal/application"
)

const (
	reservationPrefix = "idem:lock:"
	resultPrefix      = "idem:result:"
	recordKeyPrefix   = "idem:key:"
)

// IdempotencyGuard provides reserve-once / remember-result / invalidate
// semantics over the shared store, keyed by a caller-supplied token.
//
// Lifecycle: the reservation and result keys are created with the configured
// TTL and only ever deleted on explicit invalidation. A successful flow
// leaves them to expire naturally so a late duplicate still gets the
// original result within the TTL window.
type IdempotencyGuard struct {
	store application.IdempotencyStore
	ttl   time.Duration
}

func NewIdempotencyGuard(store application.IdempotencyStore, ttl time.Duration) *IdempotencyGuard {
	return &IdempotencyGuard{store: store, ttl: ttl}
}

// Reserve claims the attempt for this token. true means the caller owns it;
// false means another attempt is in flight or already finished. The claim is
// a single atomic set-if-absent, so two concurrent reservations cannot both
// succeed.
func (g *IdempotencyGuard) Reserve(ctx context.Context, token string) (bool, error) {
	ok, err := g.store.SetIfAbsent(ctx, reservationPrefix+token, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("reserve idempotency token: %w", err)
	}
	return ok, nil
}

// Result returns the business identifier a finished attempt committed, if any.
func (g *IdempotencyGuard) Result(ctx context.Context, token string) (string, bool, error) {
	val, found, err := g.store.Get(ctx, resultPrefix+token)
	if err != nil {
		return "", false, fmt.Errorf("read idempotency result: %w", err)
	}
	return val, found, nil
}

// Finish commits the result under the token so duplicates within the TTL
// window are answered from the cache.
func (g *IdempotencyGuard) Finish(ctx context.Context, token, result string) error {
	if _, err := g.store.SetIfAbsent(ctx, resultPrefix+token, result, g.ttl); err != nil {
		return fmt.Errorf("commit idempotency result: %w", err)
	}
	return nil
}

// Invalidate removes both keys so a fresh attempt can run. Used on the error
// path only.
func (g *IdempotencyGuard) Invalidate(ctx context.Context, token string) error {
	if err := g.store.Delete(ctx, reservationPrefix+token, resultPrefix+token); err != nil {
		return fmt.Errorf("invalidate idempotency token: %w", err)
	}
	return nil
}

// GetOrCreateKey returns the idempotency token bound to a record identity,
// minting one if none exists. Background jobs have no caller to supply a
// token, so the system generates one per logical operation; a lost creation
// race falls back to reading the winner's token.
func (g *IdempotencyGuard) GetOrCreateKey(ctx context.Context, recordKey string) (string, error) {
	key := recordKeyPrefix + recordKey
	token := uuid.NewString()

	ok, err := g.store.SetIfAbsent(ctx, key, token, g.ttl)
	if err != nil {
		return "", fmt.Errorf("create idempotency key for %s: %w", recordKey, err)
	}
	if ok {
		return token, nil
	}

	existing, found, err := g.store.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("read idempotency key for %s: %w", recordKey, err)
	}
	if !found {
		// winner expired or invalidated between our two calls; try once more
		ok, err = g.store.SetIfAbsent(ctx, key, token, g.ttl)
		if err != nil || !ok {
			return "", fmt.Errorf("recreate idempotency key for %s: %w", recordKey, err)
		}
		return token, nil
	}
	return existing, nil
}
