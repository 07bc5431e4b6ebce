package gateway

import (
	"errors"
	"fmt"
)

// Provider error codes this system reacts to by name.
const (
	// CodeAlreadyCancelled is returned when cancelling a payment the provider
	// has already cancelled. Re-driven cancellations treat it as success.
	CodeAlreadyCancelled = "ALREADY_CANCELED_PAYMENT"
)

type GatewayError struct {
	Code       string
	Message    string
	StatusCode int
}

type gatewayErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error [%s]: %s (status: %d)", e.Code, e.Message, e.StatusCode)
}

func (e *GatewayError) IsRetryable() bool {
	return e.StatusCode >= 500
}

func IsGatewayError(err error) (*GatewayError, bool) {
	var gwErr *GatewayError
	ok := errors.As(err, &gwErr)
	return gwErr, ok
}
