package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hyeonwoo-dev/subpay/internal/application/services"
	"github.com/hyeonwoo-dev/subpay/internal/interfaces/rest"
)

type cancelRequest struct {
	CancelReason string `json:"cancelReason" validate:"required"`
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	cmd := services.CancelCommand{
		OrderID:      chi.URLParam(r, "orderID"),
		CancelReason: req.CancelReason,
	}
	payment, err := h.cancelService.Cancel(r.Context(), cmd)
	if err != nil {
		writeError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.ToPaymentResponse(payment))
}
