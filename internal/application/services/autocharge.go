package services

import (
	"context"
	"log/slog"

	"github.com/hyeonwoo-dev/subpay/internal/application"
	"github.com/hyeonwoo-dev/subpay/internal/domain"
)

// AutoChargeService drives the recurring-charge saga. The token is supplied
// by the caller (the billing worker derives one per job cycle), so monthly
// attempts are distinct operations while duplicate triggers inside one cycle
// collapse onto a single charge.
type AutoChargeService struct {
	payments application.PaymentRepository
	gateway  application.PaymentGateway
	guard    *IdempotencyGuard
	executor *TxExecutor
	comp     *CompensationHandler
	logger   *slog.Logger
}

func NewAutoChargeService(
	payments application.PaymentRepository,
	gateway application.PaymentGateway,
	guard *IdempotencyGuard,
	executor *TxExecutor,
	comp *CompensationHandler,
	logger *slog.Logger,
) *AutoChargeService {
	return &AutoChargeService{
		payments: payments,
		gateway:  gateway,
		guard:    guard,
		executor: executor,
		comp:     comp,
		logger:   logger,
	}
}

// Charge runs one recurring charge attempt. A provider decline is a recorded
// outcome, not a transport failure: the payment moves to AUTO_BILLING_FAILED
// and the returned error carries CHARGE_DECLINED so the caller can tell it
// apart from errors worth retrying.
func (s *AutoChargeService) Charge(ctx context.Context, cmd AutoChargeCommand, idempotencyToken string) (*domain.Payment, error) {
	owned, err := s.guard.Reserve(ctx, idempotencyToken)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	if !owned {
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
	if payment.BillingKey == nil {
		s.invalidate(ctx, idempotencyToken)
		return nil, domain.NewMissingBillingKeyError(cmd.OrderID)
	}

	// Persist AUTO_BILLING_IN_PROGRESS before the provider is charged. A
	// payment that can never reach APPROVED is rejected here, while no charge
	// exists yet.
	var inProgress domain.Payment
	err = s.payments.WithTx(ctx, func(repo application.PaymentRepository) error {
		current, err := repo.FindByOrderIDForUpdate(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		next, err := current.StartAutoBilling()
		if err != nil {
			return err
		}
		if next.Status != current.Status {
			if err := repo.Update(ctx, next); err != nil {
				return err
			}
			if err := repo.AppendHistory(ctx, domain.NewPaymentHistory(next.ID, domain.StatusAutoBillingInProgress, "auto charge started")); err != nil {
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

	chargeReq := application.ChargeBillingKeyRequest{
		BillingKey:         *payment.BillingKey,
		CustomerKey:        payment.CustomerKey,
		Amount:             cmd.Amount,
		OrderID:            cmd.OrderID,
		OrderName:          cmd.OrderName,
		CustomerEmail:      cmd.CustomerEmail,
		CustomerName:       cmd.CustomerName,
		TaxFreeAmount:      coalesce(cmd.TaxFreeAmount),
		TaxExemptionAmount: coalesce(cmd.TaxExemptionAmount),
	}
	gwResp, err := s.gateway.ChargeBillingKey(ctx, chargeReq)
	if err != nil {
		// The record stays AUTO_BILLING_IN_PROGRESS; no money moved, so the
		// next attempt re-drives from there. Free the token so it can run.
		s.invalidate(ctx, idempotencyToken)
		return nil, application.NewGatewayError(err)
	}

	if gwResp.Status != application.GatewayStatusDone {
		return s.recordDecline(ctx, cmd, gwResp.Status, idempotencyToken)
	}

	var approved domain.Payment
	err = s.executor.Execute(ctx, "auto_charge", func(ctx context.Context) error {
		return s.payments.WithTx(ctx, func(repo application.PaymentRepository) error {
			current, err := repo.FindByOrderIDForUpdate(ctx, cmd.OrderID)
			if err != nil {
				return err
			}
			next, err := current.ApproveAutoBilling(gwResp.PaymentKey)
			if err != nil {
				return err
			}
			if err := repo.Update(ctx, next); err != nil {
				return err
			}
			if err := repo.AppendHistory(ctx, domain.NewPaymentHistory(next.ID, domain.StatusAutoBillingApproved, "auto billing approved")); err != nil {
				return err
			}
			approved = next
			return nil
		})
	}, s.comp.ForAutoCharge(inProgress, gwResp.PaymentKey))
	if err != nil {
		s.invalidate(ctx, idempotencyToken)
		return nil, err
	}

	if err := s.guard.Finish(ctx, idempotencyToken, approved.ID); err != nil {
		s.logger.Warn("failed to commit idempotency result",
			"order_id", cmd.OrderID, "error", err)
	}

	s.logger.Info("auto charge approved",
		"payment_id", approved.ID,
		"order_id", approved.OrderID,
		"amount", cmd.Amount)

	return &approved, nil
}

// recordDecline persists the declined outcome. The charge did not move money,
// so there is nothing external to compensate; the token is invalidated so the
// decline is not replayed as a cached success.
func (s *AutoChargeService) recordDecline(ctx context.Context, cmd AutoChargeCommand, providerStatus, idempotencyToken string) (*domain.Payment, error) {
	reason := "provider returned status " + providerStatus

	var failed domain.Payment
	err := s.executor.Execute(ctx, "auto_charge_decline", func(ctx context.Context) error {
		return s.payments.WithTx(ctx, func(repo application.PaymentRepository) error {
			current, err := repo.FindByOrderIDForUpdate(ctx, cmd.OrderID)
			if err != nil {
				return err
			}
			next, err := current.FailAutoBilling(reason)
			if err != nil {
				return err
			}
			if err := repo.Update(ctx, next); err != nil {
				return err
			}
			if err := repo.AppendHistory(ctx, domain.NewPaymentHistory(next.ID, domain.StatusAutoBillingFailed, reason)); err != nil {
				return err
			}
			failed = next
			return nil
		})
	}, s.comp.ForAutoChargeDecline(cmd.OrderID))
	s.invalidate(ctx, idempotencyToken)
	if err != nil {
		return nil, err
	}

	s.logger.Warn("auto charge declined",
		"payment_id", failed.ID,
		"order_id", failed.OrderID,
		"provider_status", providerStatus)

	return &failed, application.NewChargeDeclinedError(cmd.OrderID, providerStatus)
}

// MarkPermanentlyFailed is the end of the road for a billing job: ensure the
// payment is recorded as AUTO_BILLING_FAILED where the table still permits it
// and drop the billing key so no further charge can be issued with it.
// Idempotent: safe to call on a payment that is already failed or was
// force-cancelled by compensation.
func (s *AutoChargeService) MarkPermanentlyFailed(ctx context.Context, orderID, reason string) error {
	return s.payments.WithTx(ctx, func(repo application.PaymentRepository) error {
		current, err := repo.FindByOrderIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		next := *current
		if current.Status.CanTransitionTo(domain.StatusAutoBillingFailed) {
			next, err = current.FailAutoBilling(reason)
			if err != nil {
				return err
			}
		}
		next = next.ClearBillingKey()

		if err := repo.Update(ctx, next); err != nil {
			return err
		}
		return repo.AppendHistory(ctx, domain.NewPaymentHistory(next.ID, next.Status, "billing retries exhausted: "+reason))
	})
}

// ResetCycle re-arms an approved recurring payment for its next period.
func (s *AutoChargeService) ResetCycle(ctx context.Context, orderID string) error {
	return s.payments.WithTx(ctx, func(repo application.PaymentRepository) error {
		current, err := repo.FindByOrderIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		next, err := current.ResetForNextCycle()
		if err != nil {
			return err
		}
		if err := repo.Update(ctx, next); err != nil {
			return err
		}
		return repo.AppendHistory(ctx, domain.NewPaymentHistory(next.ID, domain.StatusAutoBillingReady, "next billing cycle armed"))
	})
}

func (s *AutoChargeService) invalidate(ctx context.Context, token string) {
	if err := s.guard.Invalidate(ctx, token); err != nil {
		s.logger.Warn("failed to invalidate idempotency token", "error", err)
	}
}
