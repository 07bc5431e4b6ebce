package application

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/hyeonwoo-dev/subpay/internal/domain"
)

// SagaError is the application-level error surface. Callers never see a raw
// storage or network error: by the time a flow returns, the cause has been
// classified into one of the codes below.
type SagaError struct {
	Code    string
	Message string
	Err     error
}

func (e *SagaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *SagaError) Unwrap() error {
	return e.Err
}

const (
	// ErrCodeCompensated - the operation did not complete as requested, but a
	// recovery function repaired internal state; the system is consistent.
	ErrCodeCompensated        = "SAGA_COMPENSATED"
	// ErrCodeCompensationFailed - the recovery function itself failed; the
	// record needs manual reconciliation.
	ErrCodeCompensationFailed = "SAGA_COMPENSATION_FAILED"
	// ErrCodeInFlight - a duplicate request arrived while the original is
	// still being processed; the caller may retry later.
	ErrCodeInFlight           = "IDEMPOTENCY_IN_FLIGHT"
	ErrCodeGateway            = "GATEWAY_ERROR"
	// ErrCodeChargeDeclined - the provider processed the charge request and
	// declined it; recorded as AUTO_BILLING_FAILED, not compensated.
	ErrCodeChargeDeclined     = "CHARGE_DECLINED"
	ErrCodeInternal           = "INTERNAL_ERROR"
	ErrCodeInvalidInput       = "INVALID_INPUT"
)

func NewChargeDeclinedError(orderID, providerStatus string) *SagaError {
	return &SagaError{
		Code:    ErrCodeChargeDeclined,
		Message: fmt.Sprintf("charge for order %s declined with provider status %s", orderID, providerStatus),
	}
}

func NewCompensatedError(operation string, cause error) *SagaError {
	return &SagaError{
		Code:    ErrCodeCompensated,
		Message: fmt.Sprintf("%s was rolled back by compensation", operation),
		Err:     cause,
	}
}

func NewCompensationFailedError(operation string, cause error) *SagaError {
	return &SagaError{
		Code:    ErrCodeCompensationFailed,
		Message: fmt.Sprintf("compensation for %s failed, manual reconciliation required", operation),
		Err:     cause,
	}
}

func NewInFlightError(token string) *SagaError {
	return &SagaError{
		Code:    ErrCodeInFlight,
		Message: fmt.Sprintf("request with idempotency token %s is already being processed", token),
	}
}

func NewGatewayError(cause error) *SagaError {
	return &SagaError{
		Code:    ErrCodeGateway,
		Message: "payment gateway call failed",
		Err:     cause,
	}
}

func NewInternalError(cause error) *SagaError {
	return &SagaError{
		Code:    ErrCodeInternal,
		Message: "an internal error occurred",
		Err:     cause,
	}
}

func NewInvalidInputError(cause error) *SagaError {
	return &SagaError{
		Code:    ErrCodeInvalidInput,
		Message: "invalid input",
		Err:     cause,
	}
}

func IsSagaError(err error) (*SagaError, bool) {
	var sagaErr *SagaError
	ok := errors.As(err, &sagaErr)
	return sagaErr, ok
}

func IsErrorCode(err error, code string) bool {
	if sagaErr, ok := IsSagaError(err); ok {
		return sagaErr.Code == code
	}
	return false
}

// ToHTTPStatus maps domain and saga errors to response codes for the REST
// surface.
func ToHTTPStatus(err error) int {
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		switch domainErr.Code {
		case domain.ErrCodePaymentNotFound:
			return http.StatusNotFound
		case domain.ErrCodeInvalidTransition, domain.ErrCodeDuplicateOrder:
			return http.StatusConflict
		default:
			return http.StatusBadRequest
		}
	}

	if sagaErr, ok := IsSagaError(err); ok {
		switch sagaErr.Code {
		case ErrCodeInFlight:
			return http.StatusConflict
		case ErrCodeInvalidInput:
			return http.StatusBadRequest
		case ErrCodeGateway:
			return http.StatusBadGateway
		case ErrCodeChargeDeclined:
			return http.StatusPaymentRequired
		case ErrCodeCompensated:
			return http.StatusUnprocessableEntity
		default:
			return http.StatusInternalServerError
		}
	}

	return http.StatusInternalServerError
}

// ToErrorCode extracts the stable machine-readable code from an error chain.
func ToErrorCode(err error) string {
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	if sagaErr, ok := IsSagaError(err); ok {
		return sagaErr.Code
	}
	return ErrCodeInternal
}
