package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hyeonwoo-dev/subpay/internal/application"
	"github.com/hyeonwoo-dev/subpay/internal/domain"
)

type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// PaymentResponse is the wire shape of a payment.
type PaymentResponse struct {
	ID            string    `json:"id"`
	OrderID       string    `json:"orderId"`
	MemberID      string    `json:"memberId"`
	PlanID        string    `json:"planId,omitempty"`
	PaymentKey    string    `json:"paymentKey,omitempty"`
	CustomerKey   string    `json:"customerKey,omitempty"`
	TotalAmount   int64     `json:"totalAmount"`
	Method        string    `json:"method,omitempty"`
	Status        string    `json:"status"`
	FailureReason string    `json:"failureReason,omitempty"`
	CancelReason  string    `json:"cancelReason,omitempty"`
	HasBillingKey bool      `json:"hasBillingKey"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ToPaymentResponse maps the aggregate onto the wire shape. The billing key
// itself never leaves the service; only its presence is reported.
func ToPaymentResponse(p *domain.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:            p.ID,
		OrderID:       p.OrderID,
		MemberID:      p.MemberID,
		PlanID:        p.PlanID,
		CustomerKey:   p.CustomerKey,
		TotalAmount:   p.TotalAmount,
		Method:        p.Method,
		Status:        string(p.Status),
		HasBillingKey: p.BillingKey != nil,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}

	if p.PaymentKey != nil {
		resp.PaymentKey = *p.PaymentKey
	}
	if p.FailureReason != nil {
		resp.FailureReason = *p.FailureReason
	}
	if p.CancelReason != nil {
		resp.CancelReason = *p.CancelReason
	}

	return resp
}

func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(SuccessResponse{Success: true, Data: data})
}

// WriteError maps application errors to HTTP responses
func WriteError(w http.ResponseWriter, err error) {
	statusCode := application.ToHTTPStatus(err)
	errorCode := application.ToErrorCode(err)

	response := ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Code:    errorCode,
			Message: err.Error(),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}
