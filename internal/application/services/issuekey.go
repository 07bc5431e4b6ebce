package services

import (
	"context"
	"log/slog"

	"github.com/hyeonwoo-dev/subpay/internal/application"
	"github.com/hyeonwoo-dev/subpay/internal/domain"
)

// IssueBillingKeyService drives billing-key issuance. The provider is called
// first - there is no prior internal state to protect - and the resulting
// token is then persisted with a retryable write that arms the payment for
// auto-billing. A persistence failure here is the one case with no safe
// compensation: the token cannot be un-issued.
type IssueBillingKeyService struct {
	payments application.PaymentRepository
	gateway  application.PaymentGateway
	executor *TxExecutor
	comp     *CompensationHandler
	logger   *slog.Logger
}

func NewIssueBillingKeyService(
	payments application.PaymentRepository,
	gateway application.PaymentGateway,
	executor *TxExecutor,
	comp *CompensationHandler,
	logger *slog.Logger,
) *IssueBillingKeyService {
	return &IssueBillingKeyService{
		payments: payments,
		gateway:  gateway,
		executor: executor,
		comp:     comp,
		logger:   logger,
	}
}

func (s *IssueBillingKeyService) IssueBillingKey(ctx context.Context, cmd IssueBillingKeyCommand) (*domain.Payment, error) {
	payment, err := s.payments.FindByOrderID(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	issueReq := application.IssueBillingKeyRequest{
		AuthKey:     cmd.AuthKey,
		CustomerKey: payment.CustomerKey,
	}
	gwResp, err := s.gateway.IssueBillingKey(ctx, issueReq)
	if err != nil {
		return nil, application.NewGatewayError(err)
	}

	var armed domain.Payment
	err = s.executor.Execute(ctx, "issue-billing-key", func(ctx context.Context) error {
		return s.payments.WithTx(ctx, func(repo application.PaymentRepository) error {
			current, err := repo.FindByOrderIDForUpdate(ctx, cmd.OrderID)
			if err != nil {
				return err
			}
			next, err := current.RegisterBillingKey(gwResp.BillingKey)
			if err != nil {
				return err
			}
			if err := repo.Update(ctx, next); err != nil {
				return err
			}
			if err := repo.AppendHistory(ctx, domain.NewPaymentHistory(next.ID, domain.StatusAutoBillingReady, "billing key registered")); err != nil {
				return err
			}
			armed = next
			return nil
		})
	}, s.comp.ForIssueBillingKey(cmd.OrderID, gwResp.BillingKey))
	if err != nil {
		return nil, err
	}

	s.logger.Info("billing key registered",
		"payment_id", armed.ID,
		"order_id", armed.OrderID)

	return &armed, nil
}
