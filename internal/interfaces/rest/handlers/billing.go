package handlers

import (
	"net/http"
	"time"

	"github.com/hyeonwoo-dev/subpay/internal/application/services"
	"github.com/hyeonwoo-dev/subpay/internal/domain"
	"github.com/hyeonwoo-dev/subpay/internal/interfaces/rest"
)

type issueKeyRequest struct {
	OrderID string `json:"orderId" validate:"required"`
	AuthKey string `json:"authKey" validate:"required"`
}

func (h *Handler) IssueBillingKey(w http.ResponseWriter, r *http.Request) {
	var req issueKeyRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	cmd := services.IssueBillingKeyCommand{
		OrderID: req.OrderID,
		AuthKey: req.AuthKey,
	}
	payment, err := h.issueKeyService.IssueBillingKey(r.Context(), cmd)
	if err != nil {
		writeError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.ToPaymentResponse(payment))
}

type chargeRequest struct {
	OrderID            string `json:"orderId" validate:"required"`
	Amount             int64  `json:"amount" validate:"required,gt=0"`
	OrderName          string `json:"orderName" validate:"required"`
	CustomerEmail      string `json:"customerEmail"`
	CustomerName       string `json:"customerName"`
	TaxFreeAmount      *int64 `json:"taxFreeAmount"`
	TaxExemptionAmount *int64 `json:"taxExemptionAmount"`
}

func (h *Handler) Charge(w http.ResponseWriter, r *http.Request) {
	token, err := idempotencyKey(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req chargeRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	cmd := services.AutoChargeCommand{
		OrderID:            req.OrderID,
		Amount:             req.Amount,
		OrderName:          req.OrderName,
		CustomerEmail:      req.CustomerEmail,
		CustomerName:       req.CustomerName,
		TaxFreeAmount:      req.TaxFreeAmount,
		TaxExemptionAmount: req.TaxExemptionAmount,
	}
	payment, err := h.chargeService.Charge(r.Context(), cmd, token)
	if err != nil {
		writeError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.ToPaymentResponse(payment))
}

type scheduleRequest struct {
	OrderID    string    `json:"orderId" validate:"required"`
	Class      string    `json:"class" validate:"required,oneof=CHARGE RENEWAL"`
	Amount     int64     `json:"amount" validate:"required,gt=0"`
	OrderName  string    `json:"orderName" validate:"required"`
	MaxRetry   int       `json:"maxRetry" validate:"required,gt=0"`
	FirstRunAt time.Time `json:"firstRunAt" validate:"required"`
	Recurring  bool      `json:"recurring"`
	PeriodDays int       `json:"periodDays"`
}

type scheduleResponse struct {
	JobID     string    `json:"jobId"`
	OrderID   string    `json:"orderId"`
	Class     string    `json:"class"`
	NextRunAt time.Time `json:"nextRunAt"`
	Recurring bool      `json:"recurring"`
}

func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	cmd := services.ScheduleCommand{
		OrderID:    req.OrderID,
		Class:      domain.JobClass(req.Class),
		Amount:     req.Amount,
		OrderName:  req.OrderName,
		MaxRetry:   req.MaxRetry,
		FirstRunAt: req.FirstRunAt,
		Recurring:  req.Recurring,
		Period:     time.Duration(req.PeriodDays) * 24 * time.Hour,
	}
	job, err := h.scheduleService.Schedule(r.Context(), cmd)
	if err != nil {
		writeError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, scheduleResponse{
		JobID:     job.ID,
		OrderID:   job.OrderID,
		Class:     string(job.Class),
		NextRunAt: job.NextRunAt,
		Recurring: job.Recurring,
	})
}
