package services

import (
	"context"

	"github.com/hyeonwoo-dev/subpay/internal/application"
	"github.com/hyeonwoo-dev/subpay/internal/domain"
)

// QueryService serves read-only lookups. No locks, no idempotency.
type QueryService struct {
	payments application.PaymentRepository
}

func NewQueryService(payments application.PaymentRepository) *QueryService {
	return &QueryService{payments: payments}
}

func (s *QueryService) GetByOrderID(ctx context.Context, orderID string) (*domain.Payment, error) {
	return s.payments.FindByOrderID(ctx, orderID)
}
