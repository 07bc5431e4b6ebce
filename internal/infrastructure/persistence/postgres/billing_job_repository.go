package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/hyeonwoo-dev/subpay/internal/domain"
	"github.com/hyeonwoo-dev/subpay/internal/infrastructure/persistence"
	"github.com/jackc/pgx/v5"
)

const billingJobColumns = `id, order_id, class, amount, order_name, retry_count,
	max_retry, next_run_at, recurring, period_secs, created_at, updated_at`

// BillingJobRepository persists the schedule the auto-charge worker drains.
type BillingJobRepository struct {
	db *persistence.DB
}

func NewBillingJobRepository(db *persistence.DB) *BillingJobRepository {
	return &BillingJobRepository{db: db}
}

func (r *BillingJobRepository) Create(ctx context.Context, job domain.BillingJob) error {
	query := `
		INSERT INTO billing_jobs (` + billingJobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	m := toJobModel(job)
	_, err := r.db.Pool.Exec(ctx, query,
		m.ID, m.OrderID, m.Class, m.Amount, m.OrderName, m.RetryCount,
		m.MaxRetry, m.NextRunAt, m.Recurring, m.PeriodSecs, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create billing job: %w", err)
	}

	return nil
}

// FindDue returns jobs whose next run time has passed, oldest first.
func (r *BillingJobRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]domain.BillingJob, error) {
	query := `
		SELECT ` + billingJobColumns + `
		FROM billing_jobs
		WHERE next_run_at <= $1
		ORDER BY next_run_at ASC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query due billing jobs: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.BillingJob, error) {
		var m BillingJobModel
		err := row.Scan(
			&m.ID, &m.OrderID, &m.Class, &m.Amount, &m.OrderName, &m.RetryCount,
			&m.MaxRetry, &m.NextRunAt, &m.Recurring, &m.PeriodSecs, &m.CreatedAt, &m.UpdatedAt,
		)
		return toDomainJob(m), err
	})
	if err != nil {
		return nil, fmt.Errorf("scan due billing jobs: %w", err)
	}

	return results, nil
}

func (r *BillingJobRepository) Update(ctx context.Context, job domain.BillingJob) error {
	query := `
		UPDATE billing_jobs
		SET retry_count = $1, next_run_at = $2, recurring = $3, updated_at = $4
		WHERE id = $5
	`

	m := toJobModel(job)
	result, err := r.db.Pool.Exec(ctx, query,
		m.RetryCount, m.NextRunAt, m.Recurring, time.Now(), m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update billing job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("billing job %s not found", job.ID)
	}

	return nil
}

func (r *BillingJobRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM billing_jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete billing job: %w", err)
	}
	return nil
}
