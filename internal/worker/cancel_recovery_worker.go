package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/hyeonwoo-dev/subpay/internal/application"
	"github.com/hyeonwoo-dev/subpay/internal/domain"
)

// CancelResumer re-drives a cancellation that was recorded but never finished.
type CancelResumer interface {
	Resume(ctx context.Context, payment domain.Payment) (*domain.Payment, error)
}

// CancelRecoveryWorker sweeps payments stuck in CANCEL_REQUESTED. The cancel
// flow records its intent before calling the provider, so a crash between the
// two steps leaves a row this worker can find and safely complete.
type CancelRecoveryWorker struct {
	payments   application.PaymentRepository
	resumer    CancelResumer
	interval   time.Duration
	staleAfter time.Duration
	batchSize  int
	logger     *slog.Logger
}

func NewCancelRecoveryWorker(
	payments application.PaymentRepository,
	resumer CancelResumer,
	interval time.Duration,
	staleAfter time.Duration,
	batchSize int,
	logger *slog.Logger,
) *CancelRecoveryWorker {
	return &CancelRecoveryWorker{
		payments:   payments,
		resumer:    resumer,
		interval:   interval,
		staleAfter: staleAfter,
		batchSize:  batchSize,
		logger:     logger,
	}
}

func (w *CancelRecoveryWorker) Start(ctx context.Context) {
	w.logger.Info("cancel recovery worker started", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("cancel recovery worker stopping")
			return
		case <-ticker.C:
			if err := w.ProcessStaleRequests(ctx); err != nil {
				w.logger.Error("cancel recovery pass failed", "error", err)
			}
		}
	}
}

func (w *CancelRecoveryWorker) ProcessStaleRequests(ctx context.Context) error {
	cutoff := time.Now().Add(-w.staleAfter)
	stale, err := w.payments.FindStaleCancelRequests(ctx, cutoff, w.batchSize)
	if err != nil {
		return err
	}

	var recovered int
	for _, payment := range stale {
		if _, err := w.resumer.Resume(ctx, *payment); err != nil {
			w.logger.Error("cancel recovery failed",
				"payment_id", payment.ID,
				"order_id", payment.OrderID,
				"error", err)
		} else {
			recovered++
		}
	}

	if recovered > 0 {
		w.logger.Info("recovered stuck cancellations", "count", recovered)
	}

	return nil
}
