package application

import (
	"context"
	"time"

	"github.com/hyeonwoo-dev/subpay/internal/domain"
)

// PaymentGateway is the port for the external payment provider.
// Every call is a blocking network round-trip; adapters must carry an
// explicit timeout.
type PaymentGateway interface {
	ConfirmPayment(ctx context.Context, req ConfirmPaymentRequest) (*ConfirmPaymentResponse, error)
	CancelPayment(ctx context.Context, req CancelPaymentRequest) (*CancelPaymentResponse, error)
	IssueBillingKey(ctx context.Context, req IssueBillingKeyRequest) (*IssueBillingKeyResponse, error)
	ChargeBillingKey(ctx context.Context, req ChargeBillingKeyRequest) (*ChargeBillingKeyResponse, error)
}

// PaymentRepository is the port for persistence of payments and their audit
// history. FindByOrderIDForUpdate is only meaningful inside WithTx: the row
// lock it takes is held until the enclosing transaction commits, which is
// what keeps read-check-write sequences on the same order serialized.
type PaymentRepository interface {
	Create(ctx context.Context, payment domain.Payment) error
	FindByID(ctx context.Context, id string) (*domain.Payment, error)
	FindByOrderID(ctx context.Context, orderID string) (*domain.Payment, error)
	FindByOrderIDForUpdate(ctx context.Context, orderID string) (*domain.Payment, error)
	FindStaleCancelRequests(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Payment, error)
	Update(ctx context.Context, payment domain.Payment) error
	AppendHistory(ctx context.Context, history domain.PaymentHistory) error
	WithTx(ctx context.Context, fn func(repo PaymentRepository) error) error
}

// IdempotencyStore is the port for the shared key-value cache backing the
// idempotency guard. SetIfAbsent must be a single atomic conditional set:
// of two concurrent calls with the same key exactly one may return true.
type IdempotencyStore interface {
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, keys ...string) error
}

// BillingJobRepository persists scheduled auto-charge jobs.
type BillingJobRepository interface {
	Create(ctx context.Context, job domain.BillingJob) error
	FindDue(ctx context.Context, now time.Time, limit int) ([]domain.BillingJob, error)
	Update(ctx context.Context, job domain.BillingJob) error
	Delete(ctx context.Context, id string) error
}

// Gateway request/response shapes. Amounts are minor currency units.

type ConfirmPaymentRequest struct {
	PaymentKey string
	OrderID    string
	Amount     int64
}

type ConfirmPaymentResponse struct {
	PaymentKey string
	OrderID    string
	Status     string
	Method     string
	ApprovedAt time.Time
}

type CancelPaymentRequest struct {
	PaymentKey   string
	CancelReason string
	CancelAmount int64
}

type CancelPaymentResponse struct {
	PaymentKey  string
	Status      string
	CancelledAt time.Time
}

type IssueBillingKeyRequest struct {
	AuthKey     string
	CustomerKey string
}

type IssueBillingKeyResponse struct {
	BillingKey  string
	CustomerKey string
}

type ChargeBillingKeyRequest struct {
	BillingKey         string
	CustomerKey        string
	Amount             int64
	OrderID            string
	OrderName          string
	CustomerEmail      string
	CustomerName       string
	TaxFreeAmount      int64
	TaxExemptionAmount int64
}

type ChargeBillingKeyResponse struct {
	PaymentKey string
	OrderID    string
	Status     string
	ApprovedAt time.Time
}

// GatewayStatusDone is the provider's terminal success status for a charge.
const GatewayStatusDone = "DONE"
