package worker

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/hyeonwoo-dev/subpay/internal/application"
	"github.com/hyeonwoo-dev/subpay/internal/application/services"
	"github.com/hyeonwoo-dev/subpay/internal/config"
	"github.com/hyeonwoo-dev/subpay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJobRepo struct {
	jobs    map[string]domain.BillingJob
	deleted []string
}

func newStubJobRepo(jobs ...domain.BillingJob) *stubJobRepo {
	r := &stubJobRepo{jobs: make(map[string]domain.BillingJob)}
	for _, j := range jobs {
		r.jobs[j.ID] = j
	}
	return r
}

func (r *stubJobRepo) Create(ctx context.Context, job domain.BillingJob) error {
	r.jobs[job.ID] = job
	return nil
}

func (r *stubJobRepo) FindDue(ctx context.Context, now time.Time, limit int) ([]domain.BillingJob, error) {
	var due []domain.BillingJob
	for _, j := range r.jobs {
		if !j.NextRunAt.After(now) {
			due = append(due, j)
		}
	}
	return due, nil
}

func (r *stubJobRepo) Update(ctx context.Context, job domain.BillingJob) error {
	r.jobs[job.ID] = job
	return nil
}

func (r *stubJobRepo) Delete(ctx context.Context, id string) error {
	delete(r.jobs, id)
	r.deleted = append(r.deleted, id)
	return nil
}

type stubCharger struct {
	chargeFn    func(ctx context.Context, cmd services.AutoChargeCommand, token string) (*domain.Payment, error)
	failedWith  []string
	resetOrders []string
}

func (c *stubCharger) Charge(ctx context.Context, cmd services.AutoChargeCommand, token string) (*domain.Payment, error) {
	return c.chargeFn(ctx, cmd, token)
}

func (c *stubCharger) MarkPermanentlyFailed(ctx context.Context, orderID, reason string) error {
	c.failedWith = append(c.failedWith, orderID)
	return nil
}

func (c *stubCharger) ResetCycle(ctx context.Context, orderID string) error {
	c.resetOrders = append(c.resetOrders, orderID)
	return nil
}

type stubTokens struct{}

func (stubTokens) GetOrCreateKey(ctx context.Context, recordKey string) (string, error) {
	return "tok-" + recordKey, nil
}

func testPolicy() RetryPolicy {
	return NewRetryPolicy(config.RetryConfig{
		BaseDelay:  time.Minute,
		MaxDelay:   time.Hour,
		MaxRetries: 3,
	})
}

func newTestWorker(jobs *stubJobRepo, charger *stubCharger) *AutoChargeWorker {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return NewAutoChargeWorker(jobs, charger, stubTokens{}, testPolicy(), testPolicy(), time.Minute, 10, logger)
}

func dueJob(id string, recurring bool, retryCount int) domain.BillingJob {
	job := domain.NewBillingJob(
		id, "ord-"+id, domain.JobClassRenewal, 9900, "monthly plan",
		3, time.Now().Add(-time.Minute), recurring, 30*24*time.Hour,
	)
	job.RetryCount = retryCount
	return job
}

func TestRecurringJobAdvancesOnSuccess(t *testing.T) {
	job := dueJob("j1", true, 2)
	repo := newStubJobRepo(job)
	charger := &stubCharger{
		chargeFn: func(ctx context.Context, cmd services.AutoChargeCommand, token string) (*domain.Payment, error) {
			return &domain.Payment{OrderID: cmd.OrderID, Status: domain.StatusAutoBillingApproved}, nil
		},
	}

	w := newTestWorker(repo, charger)
	require.NoError(t, w.ProcessDueJobs(context.Background()))

	updated := repo.jobs["j1"]
	assert.Equal(t, 0, updated.RetryCount)
	assert.Equal(t, job.NextRunAt.Add(job.Period), updated.NextRunAt)
	assert.Equal(t, []string{"ord-j1"}, charger.resetOrders)
	assert.Empty(t, repo.deleted)
}

func TestOneShotJobDeletedOnSuccess(t *testing.T) {
	repo := newStubJobRepo(dueJob("j1", false, 0))
	charger := &stubCharger{
		chargeFn: func(ctx context.Context, cmd services.AutoChargeCommand, token string) (*domain.Payment, error) {
			return &domain.Payment{OrderID: cmd.OrderID}, nil
		},
	}

	w := newTestWorker(repo, charger)
	require.NoError(t, w.ProcessDueJobs(context.Background()))

	assert.Equal(t, []string{"j1"}, repo.deleted)
	assert.Empty(t, charger.resetOrders)
}

func TestTransientFailureSchedulesBoundedRetry(t *testing.T) {
	repo := newStubJobRepo(dueJob("j1", true, 1))
	charger := &stubCharger{
		chargeFn: func(ctx context.Context, cmd services.AutoChargeCommand, token string) (*domain.Payment, error) {
			return nil, application.NewGatewayError(errors.New("connection refused"))
		},
	}

	w := newTestWorker(repo, charger)
	start := time.Now()
	require.NoError(t, w.ProcessDueJobs(context.Background()))

	updated := repo.jobs["j1"]
	assert.Equal(t, 2, updated.RetryCount)
	// pre-jitter delay for retryCount=1 is 2*base; jitter removes under one base
	assert.True(t, updated.NextRunAt.After(start.Add(time.Minute)))
	assert.True(t, updated.NextRunAt.Before(start.Add(3*time.Minute)))
	assert.Empty(t, charger.failedWith)
}

func TestDeclineGoesPermanent(t *testing.T) {
	repo := newStubJobRepo(dueJob("j1", true, 0))
	charger := &stubCharger{
		chargeFn: func(ctx context.Context, cmd services.AutoChargeCommand, token string) (*domain.Payment, error) {
			return nil, application.NewChargeDeclinedError(cmd.OrderID, "ERROR")
		},
	}

	w := newTestWorker(repo, charger)
	require.NoError(t, w.ProcessDueJobs(context.Background()))

	assert.Equal(t, []string{"ord-j1"}, charger.failedWith)
	assert.Equal(t, []string{"j1"}, repo.deleted)
}

func TestExhaustedRetriesGoPermanent(t *testing.T) {
	repo := newStubJobRepo(dueJob("j1", true, 3))
	charger := &stubCharger{
		chargeFn: func(ctx context.Context, cmd services.AutoChargeCommand, token string) (*domain.Payment, error) {
			return nil, application.NewGatewayError(errors.New("still down"))
		},
	}

	w := newTestWorker(repo, charger)
	require.NoError(t, w.ProcessDueJobs(context.Background()))

	assert.Equal(t, []string{"ord-j1"}, charger.failedWith)
	assert.Equal(t, []string{"j1"}, repo.deleted)
}

func TestInFlightCycleLeavesJobUntouched(t *testing.T) {
	job := dueJob("j1", true, 1)
	repo := newStubJobRepo(job)
	charger := &stubCharger{
		chargeFn: func(ctx context.Context, cmd services.AutoChargeCommand, token string) (*domain.Payment, error) {
			return nil, application.NewInFlightError(token)
		},
	}

	w := newTestWorker(repo, charger)
	require.NoError(t, w.ProcessDueJobs(context.Background()))

	untouched := repo.jobs["j1"]
	assert.Equal(t, job.RetryCount, untouched.RetryCount)
	assert.Equal(t, job.NextRunAt, untouched.NextRunAt)
	assert.Empty(t, repo.deleted)
	assert.Empty(t, charger.failedWith)
}
