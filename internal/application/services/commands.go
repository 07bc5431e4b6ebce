package services

// CheckoutCommand creates the READY payment record a confirm starts from.
type CheckoutCommand struct {
	OrderID     string
	MemberID    string
	PlanID      string
	CustomerKey string
	Amount      int64
	Method      string
}

type ConfirmCommand struct {
	PaymentKey string
	OrderID    string
	Amount     int64
}

type CancelCommand struct {
	OrderID      string
	CancelReason string
}

type IssueBillingKeyCommand struct {
	OrderID string
	AuthKey string
}

type AutoChargeCommand struct {
	OrderID       string
	Amount        int64
	OrderName     string
	CustomerEmail string
	CustomerName  string

	// Optional tax breakdown; nil means zero.
	TaxFreeAmount      *int64
	TaxExemptionAmount *int64
}
