package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hyeonwoo-dev/subpay/internal/application"
	"github.com/hyeonwoo-dev/subpay/internal/domain"
)

// CheckoutService creates the READY payment record the confirm flow starts
// from. No provider call happens here; the client takes the orderId through
// the provider's checkout UI and comes back with a payment key to confirm.
type CheckoutService struct {
	payments application.PaymentRepository
	logger   *slog.Logger
}

func NewCheckoutService(payments application.PaymentRepository, logger *slog.Logger) *CheckoutService {
	return &CheckoutService{payments: payments, logger: logger}
}

func (s *CheckoutService) Checkout(ctx context.Context, cmd CheckoutCommand) (*domain.Payment, error) {
	if existing, err := s.payments.FindByOrderID(ctx, cmd.OrderID); err == nil && existing != nil {
		return nil, domain.NewDuplicateOrderError(cmd.OrderID)
	}

	payment, err := domain.NewPayment(
		uuid.NewString(), cmd.OrderID, cmd.MemberID, cmd.PlanID,
		cmd.CustomerKey, cmd.Amount, cmd.Method,
	)
	if err != nil {
		return nil, err
	}

	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, application.NewInternalError(err)
	}
	if err := s.payments.AppendHistory(ctx, domain.NewPaymentHistory(payment.ID, domain.StatusReady, "payment created")); err != nil {
		return nil, application.NewInternalError(err)
	}

	s.logger.Info("payment created",
		"payment_id", payment.ID,
		"order_id", payment.OrderID,
		"amount", payment.TotalAmount)

	return &payment, nil
}
