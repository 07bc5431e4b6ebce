package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/hyeonwoo-dev/subpay/internal/application"
	"github.com/hyeonwoo-dev/subpay/internal/application/services/testhelpers"
	"github.com/hyeonwoo-dev/subpay/internal/domain"
	"github.com/hyeonwoo-dev/subpay/internal/infrastructure/persistence/postgres"
)

type RepositoryTestSuite struct {
	suite.Suite
	testDB      *testhelpers.TestDatabase
	paymentRepo *postgres.PaymentRepository
	jobRepo     *postgres.BillingJobRepository
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

func (suite *RepositoryTestSuite) SetupSuite() {
	suite.testDB = testhelpers.SetupTestDatabase(suite.T())
	suite.paymentRepo = postgres.NewPaymentRepository(suite.testDB.DB)
	suite.jobRepo = postgres.NewBillingJobRepository(suite.testDB.DB)
}

func (suite *RepositoryTestSuite) TearDownSuite() {
	suite.testDB.Cleanup(suite.T())
}

func (suite *RepositoryTestSuite) TearDownTest() {
	suite.testDB.CleanTables(suite.T())
}

func (suite *RepositoryTestSuite) TestCreateAndFindPayment() {
	ctx := context.Background()
	payment := testhelpers.NewSubscribedPayment("ord-"+uuid.NewString(), 9900)

	suite.Require().NoError(suite.paymentRepo.Create(ctx, payment))

	found, err := suite.paymentRepo.FindByOrderID(ctx, payment.OrderID)
	suite.Require().NoError(err)
	suite.Equal(payment.ID, found.ID)
	suite.Equal(domain.StatusAutoBillingReady, found.Status)
	suite.Require().NotNil(found.BillingKey)
	suite.Equal(*payment.BillingKey, *found.BillingKey)
	suite.Nil(found.PaymentKey)

	byID, err := suite.paymentRepo.FindByID(ctx, payment.ID)
	suite.Require().NoError(err)
	suite.Equal(payment.OrderID, byID.OrderID)
}

func (suite *RepositoryTestSuite) TestCreateDuplicateOrderRejected() {
	ctx := context.Background()
	payment := testhelpers.NewReadyPayment("ord-"+uuid.NewString(), 1000)

	suite.Require().NoError(suite.paymentRepo.Create(ctx, payment))

	dup := testhelpers.NewReadyPayment(payment.OrderID, 1000)
	err := suite.paymentRepo.Create(ctx, dup)
	suite.True(domain.IsErrorCode(err, domain.ErrCodeDuplicateOrder))
}

func (suite *RepositoryTestSuite) TestFindMissingPayment() {
	_, err := suite.paymentRepo.FindByOrderID(context.Background(), "ord-missing")
	suite.True(domain.IsErrorCode(err, domain.ErrCodePaymentNotFound))
}

func (suite *RepositoryTestSuite) TestUpdatePersistsTransition() {
	ctx := context.Background()
	payment := testhelpers.NewReadyPayment("ord-"+uuid.NewString(), 1000)
	suite.Require().NoError(suite.paymentRepo.Create(ctx, payment))

	confirmed, err := payment.Confirm("pk-1")
	suite.Require().NoError(err)
	suite.Require().NoError(suite.paymentRepo.Update(ctx, confirmed))

	found, err := suite.paymentRepo.FindByOrderID(ctx, payment.OrderID)
	suite.Require().NoError(err)
	suite.Equal(domain.StatusDone, found.Status)
	suite.Require().NotNil(found.PaymentKey)
	suite.Equal("pk-1", *found.PaymentKey)
}

func (suite *RepositoryTestSuite) TestUpdateMissingPayment() {
	payment := testhelpers.NewReadyPayment("ord-"+uuid.NewString(), 1000)
	err := suite.paymentRepo.Update(context.Background(), payment)
	suite.True(domain.IsErrorCode(err, domain.ErrCodePaymentNotFound))
}

func (suite *RepositoryTestSuite) TestAppendHistory() {
	ctx := context.Background()
	payment := testhelpers.NewReadyPayment("ord-"+uuid.NewString(), 1000)
	suite.Require().NoError(suite.paymentRepo.Create(ctx, payment))

	history := domain.NewPaymentHistory(payment.ID, domain.StatusReady, "payment created")
	suite.Require().NoError(suite.paymentRepo.AppendHistory(ctx, history))

	var count int
	err := suite.testDB.DB.Pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM payment_histories WHERE payment_id = $1", payment.ID).Scan(&count)
	suite.Require().NoError(err)
	suite.Equal(1, count)
}

func (suite *RepositoryTestSuite) TestWithTxCommitsOnSuccess() {
	ctx := context.Background()
	payment := testhelpers.NewReadyPayment("ord-"+uuid.NewString(), 1000)
	suite.Require().NoError(suite.paymentRepo.Create(ctx, payment))

	err := suite.paymentRepo.WithTx(ctx, func(repo application.PaymentRepository) error {
		current, err := repo.FindByOrderIDForUpdate(ctx, payment.OrderID)
		if err != nil {
			return err
		}
		confirmed, err := current.Confirm("pk-tx")
		if err != nil {
			return err
		}
		return repo.Update(ctx, confirmed)
	})
	suite.Require().NoError(err)

	found, err := suite.paymentRepo.FindByOrderID(ctx, payment.OrderID)
	suite.Require().NoError(err)
	suite.Equal(domain.StatusDone, found.Status)
}

func (suite *RepositoryTestSuite) TestWithTxRollsBackOnError() {
	ctx := context.Background()
	payment := testhelpers.NewReadyPayment("ord-"+uuid.NewString(), 1000)
	suite.Require().NoError(suite.paymentRepo.Create(ctx, payment))

	boom := errors.New("abort the unit of work")
	err := suite.paymentRepo.WithTx(ctx, func(repo application.PaymentRepository) error {
		current, err := repo.FindByOrderIDForUpdate(ctx, payment.OrderID)
		if err != nil {
			return err
		}
		confirmed, err := current.Confirm("pk-tx")
		if err != nil {
			return err
		}
		if err := repo.Update(ctx, confirmed); err != nil {
			return err
		}
		return boom
	})
	suite.Require().ErrorIs(err, boom)

	found, err := suite.paymentRepo.FindByOrderID(ctx, payment.OrderID)
	suite.Require().NoError(err)
	suite.Equal(domain.StatusReady, found.Status, "the rolled-back write must not be visible")
}

func (suite *RepositoryTestSuite) TestBillingJobLifecycle() {
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	due := domain.NewBillingJob(uuid.NewString(), "ord-due", domain.JobClassRenewal,
		9900, "monthly plan", 5, now.Add(-time.Minute), true, 30*24*time.Hour)
	future := domain.NewBillingJob(uuid.NewString(), "ord-future", domain.JobClassCharge,
		9900, "monthly plan", 3, now.Add(time.Hour), false, 0)

	suite.Require().NoError(suite.jobRepo.Create(ctx, due))
	suite.Require().NoError(suite.jobRepo.Create(ctx, future))

	found, err := suite.jobRepo.FindDue(ctx, now, 10)
	suite.Require().NoError(err)
	suite.Require().Len(found, 1)
	suite.Equal(due.ID, found[0].ID)
	suite.Equal(domain.JobClassRenewal, found[0].Class)
	suite.Equal(due.Period, found[0].Period)

	found[0].RetryCount = 2
	found[0].NextRunAt = now.Add(2 * time.Hour)
	suite.Require().NoError(suite.jobRepo.Update(ctx, found[0]))

	none, err := suite.jobRepo.FindDue(ctx, now, 10)
	suite.Require().NoError(err)
	suite.Empty(none)

	suite.Require().NoError(suite.jobRepo.Delete(ctx, due.ID))
	suite.Require().NoError(suite.jobRepo.Delete(ctx, future.ID))
}

func (suite *RepositoryTestSuite) TestFindStaleCancelRequests() {
	ctx := context.Background()

	payment := testhelpers.NewReadyPayment("ord-"+uuid.NewString(), 1000)
	confirmed, err := payment.Confirm("pk-1")
	suite.Require().NoError(err)
	stuck, err := confirmed.RequestCancel("customer request")
	suite.Require().NoError(err)
	suite.Require().NoError(suite.paymentRepo.Create(ctx, stuck))

	// updated_at is in the past relative to a future cutoff, so the row counts
	// as stale; with a past cutoff it does not.
	stale, err := suite.paymentRepo.FindStaleCancelRequests(ctx, time.Now().Add(time.Minute), 10)
	suite.Require().NoError(err)
	suite.Require().Len(stale, 1)
	suite.Equal(stuck.OrderID, stale[0].OrderID)

	fresh, err := suite.paymentRepo.FindStaleCancelRequests(ctx, time.Now().Add(-time.Hour), 10)
	suite.Require().NoError(err)
	suite.Empty(fresh)
}
