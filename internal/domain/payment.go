// Package domain encodes the payment aggregate and its lifecycle rules
package domain

import (
	"errors"
	"slices"
	"time"
)

// PaymentStatus represents the current state of a payment in its lifecycle
type PaymentStatus string

const (
	StatusReady                 PaymentStatus = "READY"
	StatusInProgress            PaymentStatus = "IN_PROGRESS"
	StatusDone                  PaymentStatus = "DONE"
	StatusCancelRequested       PaymentStatus = "CANCEL_REQUESTED"
	StatusCancelled             PaymentStatus = "CANCELLED"
	StatusAutoBillingReady      PaymentStatus = "AUTO_BILLING_READY"
	StatusAutoBillingInProgress PaymentStatus = "AUTO_BILLING_IN_PROGRESS"
	StatusAutoBillingApproved   PaymentStatus = "AUTO_BILLING_APPROVED"
	StatusAutoBillingFailed     PaymentStatus = "AUTO_BILLING_FAILED"
	StatusAborted               PaymentStatus = "ABORTED"
	StatusExpired               PaymentStatus = "EXPIRED"
	StatusFailed                PaymentStatus = "FAILED"
)

// AllStatuses lists every status the machine knows about.
// Keep in sync with the constants above; the transition closure test walks it.
var AllStatuses = []PaymentStatus{
	StatusReady, StatusInProgress, StatusDone,
	StatusCancelRequested, StatusCancelled,
	StatusAutoBillingReady, StatusAutoBillingInProgress,
	StatusAutoBillingApproved, StatusAutoBillingFailed,
	StatusAborted, StatusExpired, StatusFailed,
}

// allowedTransitions is the single source of truth for status changes.
// A status with no entry is terminal.
var allowedTransitions = map[PaymentStatus][]PaymentStatus{
	StatusReady: {
		StatusInProgress, StatusDone, StatusFailed, StatusExpired,
		StatusAborted, StatusAutoBillingReady, StatusCancelRequested,
	},
	StatusInProgress:      {StatusDone, StatusFailed, StatusExpired, StatusAborted},
	StatusDone:            {StatusCancelRequested},
	StatusCancelRequested: {StatusCancelled},
	StatusAutoBillingReady: {
		StatusAutoBillingInProgress, StatusAutoBillingApproved,
		StatusAutoBillingFailed, StatusAborted,
	},
	StatusAutoBillingInProgress: {
		StatusAutoBillingApproved, StatusAutoBillingFailed, StatusAborted,
	},
	// cycle reset after a successful recurring charge
	StatusAutoBillingApproved: {StatusAutoBillingReady},
}

// CanTransitionTo reports whether the table allows s -> target.
func (s PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	return slices.Contains(allowedTransitions[s], target)
}

// IsTerminal reports whether the status has no outgoing edges.
func (s PaymentStatus) IsTerminal() bool {
	return len(allowedTransitions[s]) == 0
}

// Payment is the aggregate root. It has value semantics: every transition
// method returns a fresh Payment and leaves the receiver untouched, so a
// caller holding the old value still sees the pre-transition state.
type Payment struct {
	ID       string
	OrderID  string
	MemberID string
	PlanID   string

	PaymentKey  *string
	BillingKey  *string
	CustomerKey string

	TotalAmount int64
	Method      string

	Status        PaymentStatus
	FailureReason *string
	CancelReason  *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewPayment(id, orderID, memberID, planID, customerKey string, totalAmount int64, method string) (Payment, error) {
	if id == "" {
		return Payment{}, errors.New("payment ID is required")
	}
	if orderID == "" {
		return Payment{}, errors.New("order ID is required")
	}
	if memberID == "" {
		return Payment{}, errors.New("member ID is required")
	}
	if totalAmount <= 0 {
		return Payment{}, NewInvalidAmountError(totalAmount)
	}

	now := time.Now()
	return Payment{
		ID:          id,
		OrderID:     orderID,
		MemberID:    memberID,
		PlanID:      planID,
		CustomerKey: customerKey,
		TotalAmount: totalAmount,
		Method:      method,
		Status:      StatusReady,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (p Payment) transition(target PaymentStatus) (Payment, error) {
	if !p.Status.CanTransitionTo(target) {
		return Payment{}, NewInvalidTransitionError(p.Status, target)
	}
	next := p
	next.Status = target
	next.UpdatedAt = time.Now()
	return next, nil
}

// StartConfirm marks a one-time charge as underway. It is persisted before
// the provider is asked to move money, so a payment that can never reach DONE
// is rejected while no charge exists yet. A payment already IN_PROGRESS is
// returned unchanged: that is a re-drive after an earlier attempt died
// between this write and the provider call.
func (p Payment) StartConfirm() (Payment, error) {
	if p.Status == StatusInProgress {
		return p, nil
	}
	return p.transition(StatusInProgress)
}

// Confirm records the provider payment key and moves the payment to DONE.
func (p Payment) Confirm(paymentKey string) (Payment, error) {
	next, err := p.transition(StatusDone)
	if err != nil {
		return Payment{}, err
	}
	next.PaymentKey = &paymentKey
	return next, nil
}

// RequestCancel marks the cancellation intent before the provider is called.
func (p Payment) RequestCancel(reason string) (Payment, error) {
	next, err := p.transition(StatusCancelRequested)
	if err != nil {
		return Payment{}, err
	}
	next.CancelReason = &reason
	return next, nil
}

// CompleteCancel finishes a previously requested cancellation.
func (p Payment) CompleteCancel() (Payment, error) {
	return p.transition(StatusCancelled)
}

// RegisterBillingKey stores the recurring-consent token issued by the provider.
func (p Payment) RegisterBillingKey(billingKey string) (Payment, error) {
	next, err := p.transition(StatusAutoBillingReady)
	if err != nil {
		return Payment{}, err
	}
	next.BillingKey = &billingKey
	return next, nil
}

// StartAutoBilling marks a recurring charge as underway, with the same
// re-drive tolerance as StartConfirm.
func (p Payment) StartAutoBilling() (Payment, error) {
	if p.Status == StatusAutoBillingInProgress {
		return p, nil
	}
	return p.transition(StatusAutoBillingInProgress)
}

// ApproveAutoBilling records a successful recurring charge.
func (p Payment) ApproveAutoBilling(paymentKey string) (Payment, error) {
	next, err := p.transition(StatusAutoBillingApproved)
	if err != nil {
		return Payment{}, err
	}
	next.PaymentKey = &paymentKey
	return next, nil
}

func (p Payment) FailAutoBilling(reason string) (Payment, error) {
	next, err := p.transition(StatusAutoBillingFailed)
	if err != nil {
		return Payment{}, err
	}
	next.FailureReason = &reason
	return next, nil
}

// ClearBillingKey drops the recurring-consent token. Not a status change, so
// it does not consult the transition table.
func (p Payment) ClearBillingKey() Payment {
	next := p
	next.BillingKey = nil
	next.UpdatedAt = time.Now()
	return next
}

// ResetForNextCycle re-arms an approved recurring payment for its next
// billing period and clears any stale reason fields.
func (p Payment) ResetForNextCycle() (Payment, error) {
	next, err := p.transition(StatusAutoBillingReady)
	if err != nil {
		return Payment{}, err
	}
	next.FailureReason = nil
	next.CancelReason = nil
	return next, nil
}

// ForceCancel unconditionally moves the payment to CANCELLED, bypassing the
// transition table. Reserved for the compensation path, which must converge
// from whatever state the record was left in.
func (p Payment) ForceCancel(reason string) Payment {
	next := p
	next.Status = StatusCancelled
	next.CancelReason = &reason
	next.UpdatedAt = time.Now()
	return next
}

func (p Payment) IsTerminal() bool {
	return p.Status.IsTerminal()
}

// Reconstitute - special constructor for loading from the database
func Reconstitute(
	id, orderID, memberID, planID string,
	paymentKey, billingKey *string,
	customerKey string,
	totalAmount int64, method string,
	status PaymentStatus,
	failureReason, cancelReason *string,
	createdAt, updatedAt time.Time,
) Payment {
	return Payment{
		ID:            id,
		OrderID:       orderID,
		MemberID:      memberID,
		PlanID:        planID,
		PaymentKey:    paymentKey,
		BillingKey:    billingKey,
		CustomerKey:   customerKey,
		TotalAmount:   totalAmount,
		Method:        method,
		Status:        status,
		FailureReason: failureReason,
		CancelReason:  cancelReason,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}
}
