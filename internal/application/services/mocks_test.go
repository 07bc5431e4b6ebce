package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/hyeonwoo-dev/subpay/internal/application"
	"github.com/hyeonwoo-dev/subpay/internal/domain"
)

// MockPaymentRepository keeps payments in memory and lets tests override any
// method through the Fn hooks.
type MockPaymentRepository struct {
	mu        sync.RWMutex
	payments  map[string]domain.Payment
	histories []domain.PaymentHistory

	CreateFn                  func(ctx context.Context, payment domain.Payment) error
	FindByIDFn                func(ctx context.Context, id string) (*domain.Payment, error)
	FindByOrderIDFn           func(ctx context.Context, orderID string) (*domain.Payment, error)
	FindByOrderIDForUpdateFn  func(ctx context.Context, orderID string) (*domain.Payment, error)
	FindStaleCancelRequestsFn func(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Payment, error)
	UpdateFn                  func(ctx context.Context, payment domain.Payment) error
	AppendHistoryFn           func(ctx context.Context, history domain.PaymentHistory) error
	WithTxFn                  func(ctx context.Context, fn func(repo application.PaymentRepository) error) error
}

func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{payments: make(map[string]domain.Payment)}
}

func (m *MockPaymentRepository) Seed(payment domain.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[payment.ID] = payment
}

func (m *MockPaymentRepository) Get(orderID string) (domain.Payment, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payments {
		if p.OrderID == orderID {
			return p, true
		}
	}
	return domain.Payment{}, false
}

func (m *MockPaymentRepository) HistoriesFor(paymentID string) []domain.PaymentHistory {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.PaymentHistory
	for _, h := range m.histories {
		if h.PaymentID == paymentID {
			out = append(out, h)
		}
	}
	return out
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment domain.Payment) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, payment)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.OrderID == payment.OrderID {
			return domain.NewDuplicateOrderError(payment.OrderID)
		}
	}
	m.payments[payment.ID] = payment
	return nil
}

func (m *MockPaymentRepository) FindByID(ctx context.Context, id string) (*domain.Payment, error) {
	if m.FindByIDFn != nil {
		return m.FindByIDFn(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.payments[id]; ok {
		return &p, nil
	}
	return nil, domain.NewPaymentNotFoundError(id)
}

func (m *MockPaymentRepository) FindByOrderID(ctx context.Context, orderID string) (*domain.Payment, error) {
	if m.FindByOrderIDFn != nil {
		return m.FindByOrderIDFn(ctx, orderID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payments {
		if p.OrderID == orderID {
			found := p
			return &found, nil
		}
	}
	return nil, domain.NewPaymentNotFoundError(orderID)
}

func (m *MockPaymentRepository) FindByOrderIDForUpdate(ctx context.Context, orderID string) (*domain.Payment, error) {
	if m.FindByOrderIDForUpdateFn != nil {
		return m.FindByOrderIDForUpdateFn(ctx, orderID)
	}
	return m.FindByOrderID(ctx, orderID)
}

func (m *MockPaymentRepository) FindStaleCancelRequests(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Payment, error) {
	if m.FindStaleCancelRequestsFn != nil {
		return m.FindStaleCancelRequestsFn(ctx, cutoff, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Payment
	for _, p := range m.payments {
		if p.Status == domain.StatusCancelRequested && p.UpdatedAt.Before(cutoff) {
			found := p
			out = append(out, &found)
		}
	}
	return out, nil
}

func (m *MockPaymentRepository) Update(ctx context.Context, payment domain.Payment) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, payment)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[payment.ID]; !ok {
		return domain.NewPaymentNotFoundError(payment.OrderID)
	}
	m.payments[payment.ID] = payment
	return nil
}

func (m *MockPaymentRepository) AppendHistory(ctx context.Context, history domain.PaymentHistory) error {
	if m.AppendHistoryFn != nil {
		return m.AppendHistoryFn(ctx, history)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histories = append(m.histories, history)
	return nil
}

func (m *MockPaymentRepository) WithTx(ctx context.Context, fn func(repo application.PaymentRepository) error) error {
	if m.WithTxFn != nil {
		return m.WithTxFn(ctx, fn)
	}
	return fn(m)
}

// MockGateway answers provider calls with canned responses and counts them.
type MockGateway struct {
	mu sync.Mutex

	ConfirmFn func(ctx context.Context, req application.ConfirmPaymentRequest) (*application.ConfirmPaymentResponse, error)
	CancelFn  func(ctx context.Context, req application.CancelPaymentRequest) (*application.CancelPaymentResponse, error)
	IssueFn   func(ctx context.Context, req application.IssueBillingKeyRequest) (*application.IssueBillingKeyResponse, error)
	ChargeFn  func(ctx context.Context, req application.ChargeBillingKeyRequest) (*application.ChargeBillingKeyResponse, error)

	ConfirmCalls int
	CancelCalls  int
	IssueCalls   int
	ChargeCalls  int
}

func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (g *MockGateway) ConfirmPayment(ctx context.Context, req application.ConfirmPaymentRequest) (*application.ConfirmPaymentResponse, error) {
	g.mu.Lock()
	g.ConfirmCalls++
	g.mu.Unlock()
	if g.ConfirmFn != nil {
		return g.ConfirmFn(ctx, req)
	}
	return &application.ConfirmPaymentResponse{
		PaymentKey: req.PaymentKey,
		OrderID:    req.OrderID,
		Status:     application.GatewayStatusDone,
		Method:     "CARD",
		ApprovedAt: time.Now(),
	}, nil
}

func (g *MockGateway) CancelPayment(ctx context.Context, req application.CancelPaymentRequest) (*application.CancelPaymentResponse, error) {
	g.mu.Lock()
	g.CancelCalls++
	g.mu.Unlock()
	if g.CancelFn != nil {
		return g.CancelFn(ctx, req)
	}
	return &application.CancelPaymentResponse{
		PaymentKey:  req.PaymentKey,
		Status:      "CANCELED",
		CancelledAt: time.Now(),
	}, nil
}

func (g *MockGateway) IssueBillingKey(ctx context.Context, req application.IssueBillingKeyRequest) (*application.IssueBillingKeyResponse, error) {
	g.mu.Lock()
	g.IssueCalls++
	g.mu.Unlock()
	if g.IssueFn != nil {
		return g.IssueFn(ctx, req)
	}
	return &application.IssueBillingKeyResponse{
		BillingKey:  "bk-issued",
		CustomerKey: req.CustomerKey,
	}, nil
}

func (g *MockGateway) ChargeBillingKey(ctx context.Context, req application.ChargeBillingKeyRequest) (*application.ChargeBillingKeyResponse, error) {
	g.mu.Lock()
	g.ChargeCalls++
	g.mu.Unlock()
	if g.ChargeFn != nil {
		return g.ChargeFn(ctx, req)
	}
	return &application.ChargeBillingKeyResponse{
		PaymentKey: "pk-auto",
		OrderID:    req.OrderID,
		Status:     application.GatewayStatusDone,
		ApprovedAt: time.Now(),
	}, nil
}

// MemoryIdempotencyStore is an in-process store with the same atomic
// set-if-absent contract as the Redis adapter.
type MemoryIdempotencyStore struct {
	mu   sync.Mutex
	data map[string]string
}

func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{data: make(map[string]string)}
}

func (s *MemoryIdempotencyStore) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	s.data[key] = value
	return true, nil
}

func (s *MemoryIdempotencyStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *MemoryIdempotencyStore) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

func readyPayment(t interface{ Fatalf(string, ...any) }, orderID string, amount int64) domain.Payment {
	p, err := domain.NewPayment("pay-"+orderID, orderID, "member-1", "plan-basic", "cust-"+orderID, amount, "CARD")
	if err != nil {
		t.Fatalf("build payment fixture: %v", err)
	}
	return p
}

func subscribedPayment(t interface{ Fatalf(string, ...any) }, orderID string, amount int64) domain.Payment {
	p := readyPayment(t, orderID, amount)
	armed, err := p.RegisterBillingKey("bk-" + orderID)
	if err != nil {
		t.Fatalf("arm payment fixture: %v", err)
	}
	return armed
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testExecutor() *TxExecutor {
	return NewTxExecutor(3, time.Millisecond, testLogger())
}

func testGuard() *IdempotencyGuard {
	return NewIdempotencyGuard(NewMemoryIdempotencyStore(), time.Hour)
}
