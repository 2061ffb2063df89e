package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"homecare-booking/internal/data/entity"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type RepositoryTestSuite struct {
	suite.Suite
	mock pgxmock.PgxPoolIface
	repo *Repository
	ctx  context.Context
	now  time.Time
}

func (s *RepositoryTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	require.NoError(s.T(), err)
	s.mock = mock
	s.repo = NewRepository(mock, zap.NewNop())
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
}

func (s *RepositoryTestSuite) TearDownTest() {
	assert.NoError(s.T(), s.mock.ExpectationsWereMet())
	s.mock.Close()
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

func (s *RepositoryTestSuite) TestBookingUpdate_BumpsVersion() {
	booking := &entity.Booking{Status: entity.BookingStatusConfirmed, Version: 3}
	booking.ID = uuid.New()

	s.mock.ExpectExec(`UPDATE bookings`).
		WithArgs(booking.ID, int64(3), pgxmock.AnyArg(), booking.Status, pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.repo.Booking.Update(s.ctx, booking, 3)
	s.NoError(err)
	s.Equal(int64(4), booking.Version)
}

func (s *RepositoryTestSuite) TestBookingUpdate_StaleVersionConflicts() {
	booking := &entity.Booking{Status: entity.BookingStatusCompleted, Version: 5}
	booking.ID = uuid.New()

	s.mock.ExpectExec(`UPDATE bookings`).
		WithArgs(booking.ID, int64(5), pgxmock.AnyArg(), booking.Status, pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.repo.Booking.Update(s.ctx, booking, 5)
	s.ErrorIs(err, ErrConflict)
	s.Equal(int64(5), booking.Version)
}

func (s *RepositoryTestSuite) TestBookingFindByID_NotFound() {
	id := uuid.New()
	s.mock.ExpectQuery(`FROM bookings WHERE id = \$1`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	booking, err := s.repo.Booking.FindByID(s.ctx, id)
	s.NoError(err)
	s.Nil(booking)
}

func (s *RepositoryTestSuite) TestBookingCountByFilter_BuildsWhereClause() {
	nurseID := uuid.New()
	status := entity.BookingStatusPending

	s.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bookings WHERE nurse_id = \$1 AND status = \$2`).
		WithArgs(nurseID, status).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(7)))

	count, err := s.repo.Booking.CountByFilter(s.ctx, BookingFilter{NurseID: &nurseID, Status: &status})
	s.NoError(err)
	s.Equal(int64(7), count)
}

func (s *RepositoryTestSuite) TestIncrementUsage_UnderLimit() {
	id := uuid.New()
	s.mock.ExpectQuery(`bookings_used < booking_limit`).
		WithArgs(id, s.now).
		WillReturnRows(pgxmock.NewRows([]string{"bookings_used"}).AddRow(5))

	used, err := s.repo.Subscription.IncrementUsage(s.ctx, id, s.now)
	s.NoError(err)
	s.Equal(5, used)
}

func (s *RepositoryTestSuite) TestIncrementUsage_AtLimitConflicts() {
	id := uuid.New()
	s.mock.ExpectQuery(`bookings_used < booking_limit`).
		WithArgs(id, s.now).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.repo.Subscription.IncrementUsage(s.ctx, id, s.now)
	s.ErrorIs(err, ErrConflict)
}

func (s *RepositoryTestSuite) TestFindCurrentForNurseForUpdate_LocksRow() {
	nurseID := uuid.New()
	s.mock.ExpectQuery(`status IN \('ACTIVE', 'TRIAL'\)(.|\n)*FOR UPDATE`).
		WithArgs(nurseID, s.now).
		WillReturnError(pgx.ErrNoRows)

	sub, err := s.repo.Subscription.FindCurrentForNurseForUpdate(s.ctx, nurseID, s.now)
	s.NoError(err)
	s.Nil(sub)
}

func (s *RepositoryTestSuite) TestFindByTokenForUpdate_NonUUIDTokenStopsAfterProviderLookup() {
	s.mock.ExpectQuery(`WHERE order_id = \$1 FOR UPDATE`).
		WithArgs("cs_test_123").
		WillReturnError(pgx.ErrNoRows)
	s.mock.ExpectQuery(`WHERE provider_subscription_id = \$1 FOR UPDATE`).
		WithArgs("cs_test_123").
		WillReturnError(pgx.ErrNoRows)

	sub, err := s.repo.Subscription.FindByTokenForUpdate(s.ctx, "cs_test_123")
	s.NoError(err)
	s.Nil(sub)
}

func (s *RepositoryTestSuite) TestSweeps_ReturnAffectedRows() {
	s.mock.ExpectExec(`SET bookings_used = 0`).
		WithArgs(s.now, 30).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	s.mock.ExpectExec(`SET status = 'EXPIRED'`).
		WithArgs(s.now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	reset, err := s.repo.Subscription.ResetMonthlyBookings(s.ctx, s.now, 30*24*time.Hour)
	s.NoError(err)
	s.Equal(int64(2), reset)

	expired, err := s.repo.Subscription.ExpireSubscriptions(s.ctx, s.now)
	s.NoError(err)
	s.Equal(int64(3), expired)
}

func (s *RepositoryTestSuite) TestPaymentEventInsert_DuplicateReference() {
	event := &entity.PaymentEvent{Reference: "txn_1", Kind: entity.PaymentEventSuccess}
	event.ID = uuid.New()

	s.mock.ExpectExec(`ON CONFLICT \(reference\) DO NOTHING`).
		WithArgs(event.ID, event.SubscriptionID, event.Reference, event.Kind, event.RawEvent, event.Amount, event.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	inserted, err := s.repo.PaymentEvent.Insert(s.ctx, event)
	s.NoError(err)
	s.False(inserted)
}

func (s *RepositoryTestSuite) TestInTx_CommitsOnSuccess() {
	nurseID := uuid.New()
	keepID := uuid.New()

	s.mock.ExpectBegin()
	s.mock.ExpectExec(`SET status = 'CANCELLED'`).
		WithArgs(nurseID, keepID, s.now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	s.mock.ExpectCommit()

	err := s.repo.InTx(s.ctx, func(tx *Repository) error {
		n, err := tx.Subscription.CancelOtherCurrent(s.ctx, nurseID, keepID, s.now)
		s.Equal(int64(1), n)
		return err
	})
	s.NoError(err)
}

func (s *RepositoryTestSuite) TestInTx_RollsBackOnError() {
	boom := errors.New("boom")

	s.mock.ExpectBegin()
	s.mock.ExpectRollback()

	err := s.repo.InTx(s.ctx, func(tx *Repository) error {
		// nested calls join the outer transaction
		return tx.InTx(s.ctx, func(*Repository) error { return boom })
	})
	s.ErrorIs(err, boom)
}
