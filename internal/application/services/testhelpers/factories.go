package testhelpers

import (
	"github.com/google/uuid"

	"github.com/hyeonwoo-dev/subpay/internal/application/services"
	"github.com/hyeonwoo-dev/subpay/internal/domain"
)

// DefaultCheckoutCommand returns a valid checkout command for testing
func DefaultCheckoutCommand() services.CheckoutCommand {
	return services.CheckoutCommand{
		OrderID:     "order-" + uuid.NewString(),
		MemberID:    "member-" + uuid.NewString(),
		PlanID:      "plan-basic",
		CustomerKey: "cust-" + uuid.NewString(),
		Amount:      9900,
		Method:      "CARD",
	}
}

// NewReadyPayment builds a READY payment without touching storage.
func NewReadyPayment(orderID string, amount int64) domain.Payment {
	payment, err := domain.NewPayment(
		uuid.NewString(), orderID, "member-"+uuid.NewString(), "plan-basic",
		"cust-"+uuid.NewString(), amount, "CARD",
	)
	if err != nil {
		panic(err)
	}
	return payment
}

// NewSubscribedPayment builds an AUTO_BILLING_READY payment holding a billing key.
func NewSubscribedPayment(orderID string, amount int64) domain.Payment {
	payment := NewReadyPayment(orderID, amount)
	subscribed, err := payment.RegisterBillingKey("bk-" + uuid.NewString())
	if err != nil {
		panic(err)
	}
	return subscribed
}
