package handlers

import (
	"net/http"

	"github.com/hyeonwoo-dev/subpay/internal/application/services"
	"github.com/hyeonwoo-dev/subpay/internal/interfaces/rest"
)

type confirmRequest struct {
	PaymentKey string `json:"paymentKey" validate:"required"`
	OrderID    string `json:"orderId" validate:"required"`
	Amount     int64  `json:"amount" validate:"required,gt=0"`
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	token, err := idempotencyKey(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req confirmRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	cmd := services.ConfirmCommand{
		PaymentKey: req.PaymentKey,
		OrderID:    req.OrderID,
		Amount:     req.Amount,
	}
	payment, err := h.confirmService.Confirm(r.Context(), cmd, token)
	if err != nil {
		writeError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.ToPaymentResponse(payment))
}
