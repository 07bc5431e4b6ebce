package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/hyeonwoo-dev/subpay/internal/application"
	"github.com/hyeonwoo-dev/subpay/internal/application/services"
	"github.com/hyeonwoo-dev/subpay/internal/domain"
)

// AutoCharger is the slice of the charge service the worker drives.
type AutoCharger interface {
	Charge(ctx context.Context, cmd services.AutoChargeCommand, idempotencyToken string) (*domain.Payment, error)
	MarkPermanentlyFailed(ctx context.Context, orderID, reason string) error
	ResetCycle(ctx context.Context, orderID string) error
}

// TokenSource mints or recovers the idempotency token for a job cycle.
type TokenSource interface {
	GetOrCreateKey(ctx context.Context, recordKey string) (string, error)
}

// AutoChargeWorker drains due billing jobs on a fixed tick. Each job charges
// under a token derived from its cycle key, so a worker restart or a second
// instance re-running the same cycle collapses onto one charge.
type AutoChargeWorker struct {
	jobs      application.BillingJobRepository
	charger   AutoCharger
	tokens    TokenSource
	policies  map[domain.JobClass]RetryPolicy
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

func NewAutoChargeWorker(
	jobs application.BillingJobRepository,
	charger AutoCharger,
	tokens TokenSource,
	chargePolicy RetryPolicy,
	renewalPolicy RetryPolicy,
	interval time.Duration,
	batchSize int,
	logger *slog.Logger,
) *AutoChargeWorker {
	return &AutoChargeWorker{
		jobs:    jobs,
		charger: charger,
		tokens:  tokens,
		policies: map[domain.JobClass]RetryPolicy{
			domain.JobClassCharge:  chargePolicy,
			domain.JobClassRenewal: renewalPolicy,
		},
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
	}
}

func (w *AutoChargeWorker) Start(ctx context.Context) {
	w.logger.Info("auto charge worker started", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("auto charge worker stopping")
			return
		case <-ticker.C:
			if err := w.ProcessDueJobs(ctx); err != nil {
				w.logger.Error("billing run failed", "error", err)
			}
		}
	}
}

// ProcessDueJobs runs one billing pass. Job failures are isolated: one bad
// job never blocks the rest of the batch.
func (w *AutoChargeWorker) ProcessDueJobs(ctx context.Context) error {
	now := time.Now()
	due, err := w.jobs.FindDue(ctx, now, w.batchSize)
	if err != nil {
		return err
	}

	var processed int
	for _, job := range due {
		if err := w.runJob(ctx, job, now); err != nil {
			w.logger.Error("billing job failed",
				"job_id", job.ID,
				"order_id", job.OrderID,
				"error", err)
		} else {
			processed++
		}
	}

	if processed > 0 {
		w.logger.Info("processed billing jobs", "count", processed)
	}

	return nil
}

func (w *AutoChargeWorker) runJob(ctx context.Context, job domain.BillingJob, now time.Time) error {
	token, err := w.tokens.GetOrCreateKey(ctx, job.CycleKey())
	if err != nil {
		return err
	}

	cmd := services.AutoChargeCommand{
		OrderID:   job.OrderID,
		Amount:    job.Amount,
		OrderName: job.OrderName,
	}
	_, chargeErr := w.charger.Charge(ctx, cmd, token)
	if chargeErr == nil {
		return w.completeJob(ctx, job)
	}

	if application.IsErrorCode(chargeErr, application.ErrCodeInFlight) {
		// another instance owns this cycle; leave the job untouched
		w.logger.Info("billing cycle already in flight",
			"job_id", job.ID, "order_id", job.OrderID)
		return nil
	}

	if isPermanentChargeFailure(chargeErr) || job.Exhausted() {
		return w.failJob(ctx, job, chargeErr)
	}

	return w.scheduleRetry(ctx, job, now, chargeErr)
}

func (w *AutoChargeWorker) completeJob(ctx context.Context, job domain.BillingJob) error {
	if !job.Recurring {
		return w.jobs.Delete(ctx, job.ID)
	}

	job.RetryCount = 0
	job.NextRunAt = job.NextRunAt.Add(job.Period)
	if err := w.jobs.Update(ctx, job); err != nil {
		return err
	}
	if err := w.charger.ResetCycle(ctx, job.OrderID); err != nil {
		return err
	}

	w.logger.Info("billing cycle completed",
		"job_id", job.ID,
		"order_id", job.OrderID,
		"next_run_at", job.NextRunAt)
	return nil
}

func (w *AutoChargeWorker) failJob(ctx context.Context, job domain.BillingJob, cause error) error {
	w.logger.Warn("billing job permanently failed",
		"job_id", job.ID,
		"order_id", job.OrderID,
		"retry_count", job.RetryCount,
		"cause", cause)

	if err := w.charger.MarkPermanentlyFailed(ctx, job.OrderID, cause.Error()); err != nil {
		return err
	}
	return w.jobs.Delete(ctx, job.ID)
}

func (w *AutoChargeWorker) scheduleRetry(ctx context.Context, job domain.BillingJob, now time.Time, cause error) error {
	policy := w.policies[job.Class]
	delay := policy.Delay(job.RetryCount)
	job.RetryCount++
	job.NextRunAt = now.Add(delay)

	w.logger.Warn("billing job retry scheduled",
		"job_id", job.ID,
		"order_id", job.OrderID,
		"retry_count", job.RetryCount,
		"next_run_at", job.NextRunAt,
		"cause", cause)

	return w.jobs.Update(ctx, job)
}

// isPermanentChargeFailure separates outcomes no retry can change from
// transient infrastructure trouble. A recorded decline leaves the payment in
// a terminal status, and a compensated charge was already rolled back; both
// would only burn retries against the transition table.
func isPermanentChargeFailure(err error) bool {
	if domain.IsDomainError(err) {
		return true
	}
	return application.IsErrorCode(err, application.ErrCodeChargeDeclined) ||
		application.IsErrorCode(err, application.ErrCodeCompensated) ||
		application.IsErrorCode(err, application.ErrCodeCompensationFailed)
}
