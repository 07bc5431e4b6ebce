package postgres

import (
	"time"

	"github.com/hyeonwoo-dev/subpay/internal/domain"
)

// toDomainModel - Database → Domain
func toDomainModel(m PaymentModel) *domain.Payment {
	p := domain.Reconstitute(
		m.ID,
		m.OrderID,
		m.MemberID,
		m.PlanID,
		m.PaymentKey,
		m.BillingKey,
		m.CustomerKey,
		m.TotalAmount,
		m.Method,
		domain.PaymentStatus(m.Status),
		m.FailureReason,
		m.CancelReason,
		m.CreatedAt,
		m.UpdatedAt,
	)
	return &p
}

// toDBModel - Domain → Database
func toDBModel(p domain.Payment) PaymentModel {
	return PaymentModel{
		ID:            p.ID,
		OrderID:       p.OrderID,
		MemberID:      p.MemberID,
		PlanID:        p.PlanID,
		PaymentKey:    p.PaymentKey,
		BillingKey:    p.BillingKey,
		CustomerKey:   p.CustomerKey,
		TotalAmount:   p.TotalAmount,
		Method:        p.Method,
		Status:        string(p.Status),
		FailureReason: p.FailureReason,
		CancelReason:  p.CancelReason,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func toDomainJob(m BillingJobModel) domain.BillingJob {
	return domain.BillingJob{
		ID:         m.ID,
		OrderID:    m.OrderID,
		Class:      domain.JobClass(m.Class),
		Amount:     m.Amount,
		OrderName:  m.OrderName,
		RetryCount: m.RetryCount,
		MaxRetry:   m.MaxRetry,
		NextRunAt:  m.NextRunAt,
		Recurring:  m.Recurring,
		Period:     time.Duration(m.PeriodSecs) * time.Second,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func toJobModel(j domain.BillingJob) BillingJobModel {
	return BillingJobModel{
		ID:         j.ID,
		OrderID:    j.OrderID,
		Class:      string(j.Class),
		Amount:     j.Amount,
		OrderName:  j.OrderName,
		RetryCount: j.RetryCount,
		MaxRetry:   j.MaxRetry,
		NextRunAt:  j.NextRunAt,
		Recurring:  j.Recurring,
		PeriodSecs: int64(j.Period / time.Second),
		CreatedAt:  j.CreatedAt,
		UpdatedAt:  j.UpdatedAt,
	}
}
