package services

import (
	"github.com/hyeonwoo-dev/subpay/internal/infrastructure/gateway"
)

func isAlreadyCancelled(err error) bool {
	if gwErr, ok := gateway.IsGatewayError(err); ok {
		return gwErr.Code == gateway.CodeAlreadyCancelled
	}
	return false
}

func coalesce(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
