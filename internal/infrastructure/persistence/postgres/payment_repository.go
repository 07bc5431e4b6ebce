package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyeonwoo-dev/subpay/internal/application"
	"github.com/hyeonwoo-dev/subpay/internal/domain"
	"github.com/hyeonwoo-dev/subpay/internal/infrastructure/persistence"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const paymentColumns = `id, order_id, member_id, plan_id, payment_key, billing_key,
	customer_key, total_amount, method, status, failure_reason, cancel_reason,
	created_at, updated_at`

// PaymentRepository persists payments and their audit history. Outside WithTx
// it runs each statement on the pool; inside WithTx every call shares the
// transaction, so FOR UPDATE row locks are held until the commit.
type PaymentRepository struct {
	pool *pgxpool.Pool
	q    persistence.Executor
}

func NewPaymentRepository(db *persistence.DB) *PaymentRepository {
	return &PaymentRepository{pool: db.Pool, q: db.Pool}
}

func (r *PaymentRepository) Create(ctx context.Context, payment domain.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	m := toDBModel(payment)
	_, err := r.q.Exec(ctx, query,
		m.ID, m.OrderID, m.MemberID, m.PlanID, m.PaymentKey, m.BillingKey,
		m.CustomerKey, m.TotalAmount, m.Method, m.Status, m.FailureReason, m.CancelReason,
		m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		if persistence.IsUniqueViolation(err) {
			return domain.NewDuplicateOrderError(payment.OrderID)
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return nil
}

func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return scanPayment(r.q.QueryRow(ctx, query, id), id)
}

func (r *PaymentRepository) FindByOrderID(ctx context.Context, orderID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1`
	return scanPayment(r.q.QueryRow(ctx, query, orderID), orderID)
}

// FindByOrderIDForUpdate retrieves a payment with a row-level lock. Only
// meaningful inside WithTx; on the bare pool the lock is released as soon as
// the statement finishes.
func (r *PaymentRepository) FindByOrderIDForUpdate(ctx context.Context, orderID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1 FOR UPDATE`
	return scanPayment(r.q.QueryRow(ctx, query, orderID), orderID)
}

// FindStaleCancelRequests returns payments stuck in CANCEL_REQUESTED since
// before the cutoff, oldest first. The recovery worker re-drives them.
func (r *PaymentRepository) FindStaleCancelRequests(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = 'CANCEL_REQUESTED'
		  AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("query stale cancel requests: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Payment, error) {
		var m PaymentModel
		err := row.Scan(
			&m.ID, &m.OrderID, &m.MemberID, &m.PlanID, &m.PaymentKey, &m.BillingKey,
			&m.CustomerKey, &m.TotalAmount, &m.Method, &m.Status, &m.FailureReason, &m.CancelReason,
			&m.CreatedAt, &m.UpdatedAt,
		)
		return toDomainModel(m), err
	})
	if err != nil {
		return nil, fmt.Errorf("scan stale cancel requests: %w", err)
	}

	return results, nil
}

func (r *PaymentRepository) Update(ctx context.Context, payment domain.Payment) error {
	query := `
		UPDATE payments
		SET payment_key = $1, billing_key = $2, method = $3, status = $4,
			failure_reason = $5, cancel_reason = $6, updated_at = $7
		WHERE id = $8
	`

	m := toDBModel(payment)
	result, err := r.q.Exec(ctx, query,
		m.PaymentKey, m.BillingKey, m.Method, m.Status,
		m.FailureReason, m.CancelReason, m.UpdatedAt,
		m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewPaymentNotFoundError(payment.OrderID)
	}

	return nil
}

func (r *PaymentRepository) AppendHistory(ctx context.Context, history domain.PaymentHistory) error {
	query := `
		INSERT INTO payment_histories (payment_id, status, changed_at, reason_detail)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.q.Exec(ctx, query,
		history.PaymentID, string(history.Status), history.ChangedAt, history.ReasonDetail,
	)
	if err != nil {
		return fmt.Errorf("failed to append payment history: %w", err)
	}

	return nil
}

// WithTx runs fn against a repository bound to a single transaction. A nested
// call reuses the transaction already in scope.
func (r *PaymentRepository) WithTx(ctx context.Context, fn func(repo application.PaymentRepository) error) error {
	if _, inTx := r.q.(pgx.Tx); inTx {
		return fn(r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	txRepo := &PaymentRepository{pool: r.pool, q: tx}
	if err := fn(txRepo); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func scanPayment(row pgx.Row, key string) (*domain.Payment, error) {
	var m PaymentModel
	err := row.Scan(
		&m.ID, &m.OrderID, &m.MemberID, &m.PlanID, &m.PaymentKey, &m.BillingKey,
		&m.CustomerKey, &m.TotalAmount, &m.Method, &m.Status, &m.FailureReason, &m.CancelReason,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewPaymentNotFoundError(key)
		}
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}

	return toDomainModel(m), nil
}
