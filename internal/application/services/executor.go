package services

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/hyeonwoo-dev/subpay/internal/application"
	"github.com/hyeonwoo-dev/subpay/internal/domain"
)

// RecoveryFunc repairs internal state after a write could not be persisted.
// It runs exactly once, outside the retry loop, against its own unit of work
// (the repositories it holds acquire fresh connections), and must be
// idempotent: a recovery that loops is worse than a stuck record.
type RecoveryFunc func(ctx context.Context, cause error) error

// TxExecutor runs a persistence write with bounded retry. On exhaustion it
// invokes the flow's recovery function instead of raising the raw error:
// the caller then sees SAGA_COMPENSATED (recovery repaired state) or
// SAGA_COMPENSATION_FAILED (manual reconciliation needed), never the
// underlying driver error.
type TxExecutor struct {
	maxAttempts int
	baseDelay   time.Duration
	logger      *slog.Logger
}

func NewTxExecutor(maxAttempts int, baseDelay time.Duration, logger *slog.Logger) *TxExecutor {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &TxExecutor{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		logger:      logger,
	}
}

// Execute attempts write up to maxAttempts times. Domain errors (invalid
// transition, amount mismatch, ...) are never retried and propagate as-is;
// they mean the write reached the store and was rejected by a business rule,
// not that persistence is unhealthy.
func (e *TxExecutor) Execute(ctx context.Context, operation string, write func(ctx context.Context) error, recovery RecoveryFunc) error {
	var lastErr error

	for attempt := 0; attempt < e.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := write(ctx)
		if err == nil {
			return nil
		}

		if domain.IsDomainError(err) {
			return err
		}

		lastErr = err
		e.logger.Warn("persistence write failed",
			"operation", operation,
			"attempt", attempt+1,
			"max_attempts", e.maxAttempts,
			"error", err)

		if attempt < e.maxAttempts-1 {
			time.Sleep(e.backoff(attempt))
		}
	}

	e.logger.Error("persistence retries exhausted, running recovery",
		"operation", operation,
		"error", lastErr)

	if err := recovery(ctx, lastErr); err != nil {
		e.logger.Error("recovery failed",
			"operation", operation,
			"error", err)
		return application.NewCompensationFailedError(operation, err)
	}

	return application.NewCompensatedError(operation, lastErr)
}

func (e *TxExecutor) backoff(attempt int) time.Duration {
	base := e.baseDelay * time.Duration(1<<attempt)
	jitter := time.Duration(rand.Intn(100)) * time.Millisecond
	return base + jitter
}
