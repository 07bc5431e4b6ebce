package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator"

	"github.com/hyeonwoo-dev/subpay/internal/application"
	"github.com/hyeonwoo-dev/subpay/internal/application/services"
	"github.com/hyeonwoo-dev/subpay/internal/interfaces/rest"
)

type Handler struct {
	checkoutService *services.CheckoutService
	confirmService  *services.ConfirmService
	cancelService   *services.CancelService
	issueKeyService *services.IssueBillingKeyService
	chargeService   *services.AutoChargeService
	scheduleService *services.ScheduleService
	queryService    *services.QueryService
	validate        *validator.Validate
	logger          *slog.Logger
}

func NewHandler(
	checkoutService *services.CheckoutService,
	confirmService *services.ConfirmService,
	cancelService *services.CancelService,
	issueKeyService *services.IssueBillingKeyService,
	chargeService *services.AutoChargeService,
	scheduleService *services.ScheduleService,
	queryService *services.QueryService,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		checkoutService: checkoutService,
		confirmService:  confirmService,
		cancelService:   cancelService,
		issueKeyService: issueKeyService,
		chargeService:   chargeService,
		scheduleService: scheduleService,
		queryService:    queryService,
		validate:        validator.New(),
		logger:          logger,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/payments/checkout", h.Checkout)
		r.Post("/payments/confirm", h.Confirm)
		r.Post("/payments/{orderID}/cancel", h.Cancel)
		r.Get("/payments/{orderID}", h.GetPayment)

		r.Post("/billing/key", h.IssueBillingKey)
		r.Post("/billing/charge", h.Charge)
		r.Post("/billing/schedule", h.Schedule)
	})
}

// decode parses and validates a JSON request body.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return application.NewInvalidInputError(err)
	}
	if err := h.validate.Struct(dst); err != nil {
		return application.NewInvalidInputError(err)
	}
	return nil
}

var errMissingIdempotencyKey = errors.New("Idempotency-Key header is required")

// idempotencyKey extracts the mandatory dedup token header.
func idempotencyKey(r *http.Request) (string, error) {
	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		return "", application.NewInvalidInputError(errMissingIdempotencyKey)
	}
	return key, nil
}

func writeError(w http.ResponseWriter, err error) {
	rest.WriteError(w, err)
}
