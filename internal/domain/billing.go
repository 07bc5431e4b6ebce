package domain

import "time"

// JobClass selects which retry tuning applies to a billing job.
type JobClass string

const (
	// JobClassCharge covers individual auto-charge attempts (tight retries).
	JobClassCharge JobClass = "CHARGE"
	// JobClassRenewal covers monthly cycle renewals (slow retries).
	JobClassRenewal JobClass = "RENEWAL"
)

// BillingJob is the persisted state of a scheduled auto-charge. It survives
// restarts so a crash mid-retry resumes from the last recorded retry count.
type BillingJob struct {
	ID         string
	OrderID    string
	Class      JobClass
	Amount     int64
	OrderName  string
	RetryCount int
	MaxRetry   int
	NextRunAt  time.Time
	Recurring  bool
	Period     time.Duration
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func NewBillingJob(id, orderID string, class JobClass, amount int64, orderName string, maxRetry int, firstRunAt time.Time, recurring bool, period time.Duration) BillingJob {
	now := time.Now()
	return BillingJob{
		ID:        id,
		OrderID:   orderID,
		Class:     class,
		Amount:    amount,
		OrderName: orderName,
		MaxRetry:  maxRetry,
		NextRunAt: firstRunAt,
		Recurring: recurring,
		Period:    period,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CycleKey identifies one logical charge attempt for idempotency purposes.
// It changes when the job advances to a new billing period, so every cycle
// gets a fresh idempotency token while duplicate triggers within a cycle
// share one.
func (j BillingJob) CycleKey() string {
	return j.ID + ":" + j.NextRunAt.UTC().Format("2006-01-02")
}

// Exhausted reports whether the job has no retries left.
func (j BillingJob) Exhausted() bool {
	return j.RetryCount >= j.MaxRetry
}
