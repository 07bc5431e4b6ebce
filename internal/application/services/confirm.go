package services

import (
	"context"
	"log/slog"

	"github.com/hyeonwoo-dev/subpay/internal/application"
	"github.com/hyeonwoo-dev/subpay/internal/domain"
)

// ConfirmService drives the confirm saga:
// reserve idempotency token -> persist IN_PROGRESS -> provider confirm ->
// retryable DONE write -> commit or invalidate the token. If the DONE write
// cannot be persisted after the provider already moved money, the confirm
// recovery cancels the charge and forces the record to CANCELLED.
type ConfirmService struct {
	payments application.PaymentRepository
	gateway  application.PaymentGateway
	guard    *IdempotencyGuard
	executor *TxExecutor
	comp     *CompensationHandler
	logger   *slog.Logger
}

func NewConfirmService(
	payments application.PaymentRepository,
	gateway application.PaymentGateway,
	guard *IdempotencyGuard,
	executor *TxExecutor,
	comp *CompensationHandler,
	logger *slog.Logger,
) *ConfirmService {
	return &ConfirmService{
		payments: payments,
		gateway:  gateway,
		guard:    guard,
		executor: executor,
		comp:     comp,
		logger:   logger,
	}
}

func (s *ConfirmService) Confirm(ctx context.Context, cmd ConfirmCommand, idempotencyToken string) (*domain.Payment, error) {
	owned, err := s.guard.Reserve(ctx, idempotencyToken)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	if !owned {
		// Either the original attempt finished (return its result) or it is
		// still running (conflict, caller retries later).
		paymentID, found, err := s.guard.Result(ctx, idempotencyToken)
		if err != nil {
			return nil, application.NewInternalError(err)
		}
		if found {
			cached, err := s.payments.FindByID(ctx, paymentID)
			if err != nil {
				return nil, application.NewInternalError(err)
			}
			return cached, nil
		}
		return nil, application.NewInFlightError(idempotencyToken)
	}

	payment, err := s.payments.FindByOrderID(ctx, cmd.OrderID)
	if err != nil {
		s.invalidate(ctx, idempotencyToken)
		return nil, err
	}
	if payment.TotalAmount != cmd.Amount {
		s.invalidate(ctx, idempotencyToken)
		return nil, domain.NewAmountMismatchError(payment.TotalAmount, cmd.Amount)
	}

	// Persist IN_PROGRESS before asking the provider to move money. A payment
	// that can never reach DONE is rejected here, while no charge exists yet.
	var inProgress domain.Payment
	err = s.payments.WithTx(ctx, func(repo application.PaymentRepository) error {
		current, err := repo.FindByOrderIDForUpdate(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		next, err := current.StartConfirm()
		if err != nil {
			return err
		}
		if next.Status != current.Status {
			if err := repo.Update(ctx, next); err != nil {
				return err
			}
			if err := repo.AppendHistory(ctx, domain.NewPaymentHistory(next.ID, domain.StatusInProgress, "confirm started")); err != nil {
				return err
			}
		}
		inProgress = next
		return nil
	})
	if err != nil {
		s.invalidate(ctx, idempotencyToken)
		if domain.IsDomainError(err) {
			return nil, err
		}
		return nil, application.NewInternalError(err)
	}

	confirmReq := application.ConfirmPaymentRequest{
		PaymentKey: cmd.PaymentKey,
		OrderID:    cmd.OrderID,
		Amount:     cmd.Amount,
	}
	gwResp, err := s.gateway.ConfirmPayment(ctx, confirmReq)
	if err != nil {
		// The record stays IN_PROGRESS; no money moved, so a later attempt
		// re-drives from there. Free the token so the caller can retry.
		s.invalidate(ctx, idempotencyToken)
		return nil, application.NewGatewayError(err)
	}

	var confirmed domain.Payment
	err = s.executor.Execute(ctx, "confirm", func(ctx context.Context) error {
		return s.payments.WithTx(ctx, func(repo application.PaymentRepository) error {
			current, err := repo.FindByOrderIDForUpdate(ctx, cmd.OrderID)
			if err != nil {
				return err
			}
			next, err := current.Confirm(gwResp.PaymentKey)
			if err != nil {
				return err
			}
			next.Method = gwResp.Method
			if err := repo.Update(ctx, next); err != nil {
				return err
			}
			if err := repo.AppendHistory(ctx, domain.NewPaymentHistory(next.ID, domain.StatusDone, "payment confirmed")); err != nil {
				return err
			}
			confirmed = next
			return nil
		})
	}, s.comp.ForConfirm(inProgress, gwResp.PaymentKey))
	if err != nil {
		s.invalidate(ctx, idempotencyToken)
		return nil, err
	}

	if err := s.guard.Finish(ctx, idempotencyToken, confirmed.ID); err != nil {
		// The operation itself succeeded; a failed result commit only costs
		// dedup of late duplicates.
		s.logger.Warn("failed to commit idempotency result",
			"order_id", cmd.OrderID, "error", err)
	}

	s.logger.Info("payment confirmed",
		"payment_id", confirmed.ID,
		"order_id", confirmed.OrderID,
		"payment_key", gwResp.PaymentKey)

	return &confirmed, nil
}

func (s *ConfirmService) invalidate(ctx context.Context, token string) {
	if err := s.guard.Invalidate(ctx, token); err != nil {
		s.logger.Warn("failed to invalidate idempotency token", "error", err)
	}
}
