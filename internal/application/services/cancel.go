package services

import (
	"context"
	"log/slog"

	"github.com/hyeonwoo-dev/subpay/internal/application"
	"github.com/hyeonwoo-dev/subpay/internal/domain"
)

// CancelService drives the cancel saga. Cancellation carries no idempotency
// reservation: it is safe to re-drive, and the CANCEL_REQUESTED marker is
// written durably *before* the provider call so a crash between the two
// steps leaves a recoverable request rather than a silently lost one.
type CancelService struct {
	payments application.PaymentRepository
	gateway  application.PaymentGateway
	executor *TxExecutor
	comp     *CompensationHandler
	logger   *slog.Logger
}

func NewCancelService(
	payments application.PaymentRepository,
	gateway application.PaymentGateway,
	executor *TxExecutor,
	comp *CompensationHandler,
	logger *slog.Logger,
) *CancelService {
	return &CancelService{
		payments: payments,
		gateway:  gateway,
		executor: executor,
		comp:     comp,
		logger:   logger,
	}
}

func (s *CancelService) Cancel(ctx context.Context, cmd CancelCommand) (*domain.Payment, error) {
	var requested domain.Payment
	err := s.executor.Execute(ctx, "cancel-request", func(ctx context.Context) error {
		return s.payments.WithTx(ctx, func(repo application.PaymentRepository) error {
			current, err := repo.FindByOrderIDForUpdate(ctx, cmd.OrderID)
			if err != nil {
				return err
			}
			next, err := current.RequestCancel(cmd.CancelReason)
			if err != nil {
				return err
			}
			if err := repo.Update(ctx, next); err != nil {
				return err
			}
			if err := repo.AppendHistory(ctx, domain.NewPaymentHistory(next.ID, domain.StatusCancelRequested, cmd.CancelReason)); err != nil {
				return err
			}
			requested = next
			return nil
		})
	}, s.comp.ForCancel(cmd.OrderID))
	if err != nil {
		return nil, err
	}

	return s.complete(ctx, requested)
}

// Resume finishes a cancellation found stuck in CANCEL_REQUESTED, e.g. after
// a crash between the request write and the provider call. The provider's
// "already cancelled" answer is treated as success so re-driving never
// double-cancels.
func (s *CancelService) Resume(ctx context.Context, payment domain.Payment) (*domain.Payment, error) {
	if payment.Status != domain.StatusCancelRequested {
		return nil, domain.NewInvalidTransitionError(payment.Status, domain.StatusCancelled)
	}
	return s.complete(ctx, payment)
}

func (s *CancelService) complete(ctx context.Context, payment domain.Payment) (*domain.Payment, error) {
	if payment.PaymentKey == nil {
		// Never confirmed with the provider; nothing external to cancel.
		return s.finish(ctx, payment, "cancelled before provider confirm")
	}

	reason := "customer request"
	if payment.CancelReason != nil {
		reason = *payment.CancelReason
	}

	cancelReq := application.CancelPaymentRequest{
		PaymentKey:   *payment.PaymentKey,
		CancelReason: reason,
		CancelAmount: payment.TotalAmount,
	}
	if _, err := s.gateway.CancelPayment(ctx, cancelReq); err != nil && !isAlreadyCancelled(err) {
		return nil, application.NewGatewayError(err)
	}

	return s.finish(ctx, payment, reason)
}

func (s *CancelService) finish(ctx context.Context, payment domain.Payment, reasonDetail string) (*domain.Payment, error) {
	var cancelled domain.Payment
	err := s.executor.Execute(ctx, "cancel-complete", func(ctx context.Context) error {
		return s.payments.WithTx(ctx, func(repo application.PaymentRepository) error {
			current, err := repo.FindByOrderIDForUpdate(ctx, payment.OrderID)
			if err != nil {
				return err
			}
			next, err := current.CompleteCancel()
			if err != nil {
				return err
			}
			if err := repo.Update(ctx, next); err != nil {
				return err
			}
			if err := repo.AppendHistory(ctx, domain.NewPaymentHistory(next.ID, domain.StatusCancelled, reasonDetail)); err != nil {
				return err
			}
			cancelled = next
			return nil
		})
	}, s.comp.ForCancel(payment.OrderID))
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment cancelled",
		"payment_id", cancelled.ID,
		"order_id", cancelled.OrderID,
		"reason", reasonDetail)

	return &cancelled, nil
}
