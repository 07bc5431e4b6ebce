package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hyeonwoo-dev/subpay/internal/interfaces/rest"
)

func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	payment, err := h.queryService.GetByOrderID(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.ToPaymentResponse(payment))
}
