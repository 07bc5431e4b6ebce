package gateway

import "time"

// Wire-level payloads for the provider's REST API. Field names follow the
// provider's JSON contract; the client maps them onto the application DTOs.

type confirmRequest struct {
	PaymentKey string `json:"paymentKey"`
	OrderID    string `json:"orderId"`
	Amount     int64  `json:"amount"`
}

type confirmResponse struct {
	PaymentKey  string    `json:"paymentKey"`
	OrderID     string    `json:"orderId"`
	Status      string    `json:"status"`
	Method      string    `json:"method"`
	TotalAmount int64     `json:"totalAmount"`
	ApprovedAt  time.Time `json:"approvedAt"`
}

type cancelRequest struct {
	CancelReason string `json:"cancelReason"`
	CancelAmount int64  `json:"cancelAmount,omitempty"`
}

type cancelResponse struct {
	PaymentKey  string    `json:"paymentKey"`
	OrderID     string    `json:"orderId"`
	Status      string    `json:"status"`
	CancelledAt time.Time `json:"canceledAt"`
}

type issueBillingKeyRequest struct {
	AuthKey     string `json:"authKey"`
	CustomerKey string `json:"customerKey"`
}

type issueBillingKeyResponse struct {
	BillingKey  string `json:"billingKey"`
	CustomerKey string `json:"customerKey"`
	Method      string `json:"method"`
	CardCompany string `json:"cardCompany"`
}

type chargeRequest struct {
	CustomerKey        string `json:"customerKey"`
	Amount             int64  `json:"amount"`
	OrderID            string `json:"orderId"`
	OrderName          string `json:"orderName"`
	CustomerEmail      string `json:"customerEmail,omitempty"`
	CustomerName       string `json:"customerName,omitempty"`
	TaxFreeAmount      int64  `json:"taxFreeAmount"`
	TaxExemptionAmount int64  `json:"taxExemptionAmount"`
}

type chargeResponse struct {
	PaymentKey string    `json:"paymentKey"`
	OrderID    string    `json:"orderId"`
	Status     string    `json:"status"`
	ApprovedAt time.Time `json:"approvedAt"`
}
