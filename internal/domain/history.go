package domain

import "time"

// PaymentHistory is one row of the append-only audit trail. A row is written
// by the same caller that performs the transition and is never updated.
type PaymentHistory struct {
	ID           int64
	PaymentID    string
	Status       PaymentStatus
	ChangedAt    time.Time
	ReasonDetail string
}

func NewPaymentHistory(paymentID string, status PaymentStatus, reasonDetail string) PaymentHistory {
	return PaymentHistory{
		PaymentID:    paymentID,
		Status:       status,
		ChangedAt:    time.Now(),
		ReasonDetail: reasonDetail,
	}
}
