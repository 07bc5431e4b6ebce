package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hyeonwoo-dev/subpay/internal/application"
	"github.com/hyeonwoo-dev/subpay/internal/domain"
)

const (
	reasonCompensation = "system compensation: ledger write failed after provider call"
	historyCompensated = "compensated"
)

// ErrOrphanedBillingKey marks the one failure this system cannot repair: a
// billing key was issued by the provider but its persistence failed, so the
// token exists externally with no internal record. The operator must
// reconcile by hand.
var ErrOrphanedBillingKey = errors.New("billing key issued but not recorded")

// CompensationHandler builds the per-flow recovery functions. Every recovery
// writes directly through the repository - never through the TxExecutor - so
// it runs in an independent unit of work and cannot enter a
// retry-then-compensate loop.
type CompensationHandler struct {
	payments application.PaymentRepository
	gateway  application.PaymentGateway
	logger   *slog.Logger
}

func NewCompensationHandler(payments application.PaymentRepository, gateway application.PaymentGateway, logger *slog.Logger) *CompensationHandler {
	return &CompensationHandler{
		payments: payments,
		gateway:  gateway,
		logger:   logger,
	}
}

// ForConfirm rolls back a confirmed charge whose DONE write could not be
// persisted: cancel at the provider, then force the internal record to
// CANCELLED so ledger and provider agree again.
func (h *CompensationHandler) ForConfirm(payment domain.Payment, paymentKey string) RecoveryFunc {
	return func(ctx context.Context, cause error) error {
		h.logger.Error("compensating confirm",
			"order_id", payment.OrderID,
			"payment_key", paymentKey,
			"cause", cause)

		cancelReq := application.CancelPaymentRequest{
			PaymentKey:   paymentKey,
			CancelReason: reasonCompensation,
			CancelAmount: payment.TotalAmount,
		}
		if _, err := h.gateway.CancelPayment(ctx, cancelReq); err != nil && !isAlreadyCancelled(err) {
			return fmt.Errorf("compensating cancel at provider: %w", err)
		}

		return h.forceCancel(ctx, payment.OrderID)
	}
}

// ForCancel converges a cancellation whose write failed. What is safe depends
// on how far the saga got, which the stored status tells us: CANCEL_REQUESTED
// means the provider cancel was underway and plausibly succeeded, so internal
// state is forced to match; DONE means the request marker never persisted and
// the provider was never asked, so the charge stands and the record stays
// untouched.
func (h *CompensationHandler) ForCancel(orderID string) RecoveryFunc {
	return func(ctx context.Context, cause error) error {
		h.logger.Error("compensating cancel", "order_id", orderID, "cause", cause)

		current, err := h.payments.FindByOrderID(ctx, orderID)
		if err != nil {
			return fmt.Errorf("load payment for cancel compensation: %w", err)
		}

		switch current.Status {
		case domain.StatusCancelled, domain.StatusDone:
			return nil
		case domain.StatusCancelRequested:
			return h.forceCancel(ctx, orderID)
		default:
			return fmt.Errorf("payment in unexpected status %s during cancel compensation", current.Status)
		}
	}
}

// ForIssueBillingKey has no safe compensation: the provider token cannot be
// un-issued. Recovery logs the orphaned key and raises so the executor
// surfaces SAGA_COMPENSATION_FAILED and the record is flagged for manual
// reconciliation.
func (h *CompensationHandler) ForIssueBillingKey(orderID, billingKey string) RecoveryFunc {
	return func(ctx context.Context, cause error) error {
		h.logger.Error("ORPHANED_BILLING_KEY",
			"order_id", orderID,
			"billing_key", billingKey,
			"cause", cause,
			"action", "MANUAL_RECONCILIATION_REQUIRED")
		return ErrOrphanedBillingKey
	}
}

// ForAutoCharge mirrors ForConfirm for a recurring charge.
func (h *CompensationHandler) ForAutoCharge(payment domain.Payment, paymentKey string) RecoveryFunc {
	return func(ctx context.Context, cause error) error {
		h.logger.Error("compensating auto-charge",
			"order_id", payment.OrderID,
			"payment_key", paymentKey,
			"cause", cause)

		cancelReq := application.CancelPaymentRequest{
			PaymentKey:   paymentKey,
			CancelReason: reasonCompensation,
			CancelAmount: payment.TotalAmount,
		}
		if _, err := h.gateway.CancelPayment(ctx, cancelReq); err != nil && !isAlreadyCancelled(err) {
			return fmt.Errorf("compensating cancel at provider: %w", err)
		}

		return h.forceCancel(ctx, payment.OrderID)
	}
}

// ForAutoChargeDecline covers the write of a declined charge. No money moved,
// so there is nothing external to roll back; if even the FAILED write cannot
// be persisted the record needs an operator.
func (h *CompensationHandler) ForAutoChargeDecline(orderID string) RecoveryFunc {
	return func(ctx context.Context, cause error) error {
		h.logger.Error("UNRECORDED_CHARGE_DECLINE",
			"order_id", orderID,
			"cause", cause,
			"action", "MANUAL_RECONCILIATION_REQUIRED")
		return fmt.Errorf("charge decline for order %s could not be recorded: %w", orderID, cause)
	}
}

func (h *CompensationHandler) forceCancel(ctx context.Context, orderID string) error {
	current, err := h.payments.FindByOrderID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load payment for force cancel: %w", err)
	}
	if current.Status == domain.StatusCancelled {
		return nil
	}

	cancelled := current.ForceCancel(reasonCompensation)
	if err := h.payments.Update(ctx, cancelled); err != nil {
		return fmt.Errorf("force cancel payment: %w", err)
	}
	if err := h.payments.AppendHistory(ctx, domain.NewPaymentHistory(cancelled.ID, domain.StatusCancelled, historyCompensated)); err != nil {
		return fmt.Errorf("append compensation history: %w", err)
	}
	return nil
}
