package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyeonwoo-dev/subpay/internal/application"
	"github.com/hyeonwoo-dev/subpay/internal/domain"
	"github.com/hyeonwoo-dev/subpay/internal/infrastructure/gateway"
)

func newCancelService(repo *MockPaymentRepository, gw *MockGateway) *CancelService {
	comp := NewCompensationHandler(repo, gw, testLogger())
	return NewCancelService(repo, gw, testExecutor(), comp, testLogger())
}

func confirmedPayment(t *testing.T, orderID string, amount int64) domain.Payment {
	p := readyPayment(t, orderID, amount)
	done, err := p.Confirm("pk-" + orderID)
	require.NoError(t, err)
	return done
}

func TestCancelWritesRequestBeforeProviderCall(t *testing.T) {
	repo := NewMockPaymentRepository()
	gw := NewMockGateway()
	svc := newCancelService(repo, gw)
	ctx := context.Background()

	repo.Seed(confirmedPayment(t, "ord-1", 1000))

	// The durable CANCEL_REQUESTED marker must already be visible when the
	// provider is asked to cancel; a crash at this point leaves a record the
	// recovery worker can pick up.
	var statusAtProviderCall domain.PaymentStatus
	gw.CancelFn = func(ctx context.Context, req application.CancelPaymentRequest) (*application.CancelPaymentResponse, error) {
		stored, ok := repo.Get("ord-1")
		require.True(t, ok)
		statusAtProviderCall = stored.Status
		return &application.CancelPaymentResponse{PaymentKey: req.PaymentKey, Status: "CANCELED"}, nil
	}

	cancelled, err := svc.Cancel(ctx, CancelCommand{OrderID: "ord-1", CancelReason: "customer request"})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCancelRequested, statusAtProviderCall)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Equal(t, 1, gw.CancelCalls)
}

func TestCancelBeforeConfirmSkipsProvider(t *testing.T) {
	repo := NewMockPaymentRepository()
	gw := NewMockGateway()
	svc := newCancelService(repo, gw)

	repo.Seed(readyPayment(t, "ord-1", 1000))

	cancelled, err := svc.Cancel(context.Background(), CancelCommand{OrderID: "ord-1", CancelReason: "changed mind"})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Equal(t, 0, gw.CancelCalls, "nothing external exists to cancel before confirm")
}

func TestCancelRejectsTerminalPayment(t *testing.T) {
	repo := NewMockPaymentRepository()
	gw := NewMockGateway()
	svc := newCancelService(repo, gw)

	done := confirmedPayment(t, "ord-1", 1000)
	alreadyCancelled := done.ForceCancel("earlier cancellation")
	repo.Seed(alreadyCancelled)

	_, err := svc.Cancel(context.Background(), CancelCommand{OrderID: "ord-1", CancelReason: "again"})
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidTransition))
	assert.Equal(t, 0, gw.CancelCalls)
}

func TestCancelRequestWriteFailureLeavesPaymentDone(t *testing.T) {
	repo := NewMockPaymentRepository()
	gw := NewMockGateway()
	svc := newCancelService(repo, gw)

	repo.Seed(confirmedPayment(t, "ord-1", 1000))

	// The CANCEL_REQUESTED marker never persists, so the provider is never
	// asked to cancel. The charge stands: recovery must leave the record at
	// DONE rather than declare a cancellation that never happened.
	repo.UpdateFn = func(ctx context.Context, p domain.Payment) error {
		if p.Status == domain.StatusCancelRequested {
			return errors.New("write timeout")
		}
		repo.mu.Lock()
		repo.payments[p.ID] = p
		repo.mu.Unlock()
		return nil
	}

	_, err := svc.Cancel(context.Background(), CancelCommand{OrderID: "ord-1", CancelReason: "customer request"})
	assert.True(t, application.IsErrorCode(err, application.ErrCodeCompensated))
	assert.Equal(t, 0, gw.CancelCalls, "the provider still holds the charge and must not be cancelled")

	stored, ok := repo.Get("ord-1")
	require.True(t, ok)
	assert.Equal(t, domain.StatusDone, stored.Status)
	assert.Nil(t, stored.CancelReason)
}

func TestResumeFinishesStuckCancellation(t *testing.T) {
	repo := NewMockPaymentRepository()
	gw := NewMockGateway()
	svc := newCancelService(repo, gw)

	// Simulates a crash between the request write and the provider call.
	done := confirmedPayment(t, "ord-1", 1000)
	stuck, err := done.RequestCancel("customer request")
	require.NoError(t, err)
	repo.Seed(stuck)

	cancelled, err := svc.Resume(context.Background(), stuck)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Equal(t, 1, gw.CancelCalls)
}

func TestResumeTreatsAlreadyCancelledAsSuccess(t *testing.T) {
	repo := NewMockPaymentRepository()
	gw := NewMockGateway()
	svc := newCancelService(repo, gw)

	// The first drive reached the provider but crashed before the final
	// write; re-driving gets the provider's "already cancelled" answer.
	done := confirmedPayment(t, "ord-1", 1000)
	stuck, err := done.RequestCancel("customer request")
	require.NoError(t, err)
	repo.Seed(stuck)

	gw.CancelFn = func(ctx context.Context, req application.CancelPaymentRequest) (*application.CancelPaymentResponse, error) {
		return nil, &gateway.GatewayError{
			Code:       gateway.CodeAlreadyCancelled,
			Message:    "already cancelled payment",
			StatusCode: 400,
		}
	}

	cancelled, err := svc.Resume(context.Background(), stuck)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
}

func TestResumeRequiresCancelRequestedStatus(t *testing.T) {
	repo := NewMockPaymentRepository()
	gw := NewMockGateway()
	svc := newCancelService(repo, gw)

	done := confirmedPayment(t, "ord-1", 1000)
	repo.Seed(done)

	_, err := svc.Resume(context.Background(), done)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidTransition))
	assert.Equal(t, 0, gw.CancelCalls)
}
