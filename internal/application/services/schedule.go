package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hyeonwoo-dev/subpay/internal/application"
	"github.com/hyeonwoo-dev/subpay/internal/domain"
)

// ScheduleCommand registers a billing job for an order that already holds a
// billing key.
type ScheduleCommand struct {
	OrderID    string
	Class      domain.JobClass
	Amount     int64
	OrderName  string
	MaxRetry   int
	FirstRunAt time.Time
	Recurring  bool
	Period     time.Duration
}

// ScheduleService registers the background charge schedule for subscribed
// orders. The worker owns the jobs from there on.
type ScheduleService struct {
	payments application.PaymentRepository
	jobs     application.BillingJobRepository
	logger   *slog.Logger
}

func NewScheduleService(payments application.PaymentRepository, jobs application.BillingJobRepository, logger *slog.Logger) *ScheduleService {
	return &ScheduleService{payments: payments, jobs: jobs, logger: logger}
}

func (s *ScheduleService) Schedule(ctx context.Context, cmd ScheduleCommand) (*domain.BillingJob, error) {
	payment, err := s.payments.FindByOrderID(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if payment.BillingKey == nil {
		return nil, domain.NewMissingBillingKeyError(cmd.OrderID)
	}

	job := domain.NewBillingJob(
		uuid.NewString(), cmd.OrderID, cmd.Class, cmd.Amount, cmd.OrderName,
		cmd.MaxRetry, cmd.FirstRunAt, cmd.Recurring, cmd.Period,
	)
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, application.NewInternalError(err)
	}

	s.logger.Info("billing job scheduled",
		"job_id", job.ID,
		"order_id", job.OrderID,
		"class", job.Class,
		"next_run_at", job.NextRunAt)

	return &job, nil
}
