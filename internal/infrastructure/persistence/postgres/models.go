package postgres

import (
	"time"
)

// PaymentModel - Database representation
type PaymentModel struct {
	ID            string
	OrderID       string
	MemberID      string
	PlanID        string
	PaymentKey    *string
	BillingKey    *string
	CustomerKey   string
	TotalAmount   int64
	Method        string
	Status        string
	FailureReason *string
	CancelReason  *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// BillingJobModel - Database representation of a scheduled charge job
type BillingJobModel struct {
	ID         string
	OrderID    string
	Class      string
	Amount     int64
	OrderName  string
	RetryCount int
	MaxRetry   int
	NextRunAt  time.Time
	Recurring  bool
	PeriodSecs int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
