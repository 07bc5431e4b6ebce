package handlers

import (
	"net/http"

	"github.com/hyeonwoo-dev/subpay/internal/application/services"
	"github.com/hyeonwoo-dev/subpay/internal/interfaces/rest"
)

type checkoutRequest struct {
	OrderID     string `json:"orderId" validate:"required"`
	MemberID    string `json:"memberId" validate:"required"`
	PlanID      string `json:"planId"`
	CustomerKey string `json:"customerKey" validate:"required"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Method      string `json:"method"`
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	cmd := services.CheckoutCommand{
		OrderID:     req.OrderID,
		MemberID:    req.MemberID,
		PlanID:      req.PlanID,
		CustomerKey: req.CustomerKey,
		Amount:      req.Amount,
		Method:      req.Method,
	}
	payment, err := h.checkoutService.Checkout(r.Context(), cmd)
	if err != nil {
		writeError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.ToPaymentResponse(payment))
}
