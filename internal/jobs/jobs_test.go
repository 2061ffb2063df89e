package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"homecare-booking/internal/data/entity"
	"homecare-booking/internal/data/repository"
	"homecare-booking/internal/data/repository/memory"
	"homecare-booking/pkg/mailer"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg mailer.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

type emailFixture struct {
	repo    *repository.Repository
	sender  *recordingSender
	handler *EmailHandler
	booking *entity.Booking
}

func newEmailFixture(t *testing.T) *emailFixture {
	t.Helper()
	ctx := context.Background()
	repo, store := memory.NewRepository(clockwork.NewFakeClock())

	patient := &entity.User{Base: entity.Base{ID: uuid.New()}, Email: "pat@homecare.test", FullName: "Pat Doe", Role: entity.RolePatient, IsActive: true}
	nurse := &entity.User{Base: entity.Base{ID: uuid.New()}, Email: "nina@homecare.test", FullName: "Nina Nurse", Role: entity.RoleNurse, IsActive: true}
	store.PutUser(patient)
	store.PutUser(nurse)

	booking := &entity.Booking{
		Base:        entity.Base{ID: uuid.New()},
		PatientID:   patient.ID,
		NurseID:     &nurse.ID,
		ServiceType: "wound care",
		ScheduledAt: time.Date(2026, 4, 7, 10, 0, 0, 0, time.UTC),
		Address:     "12 Elm Street",
		Status:      entity.BookingStatusPending,
		Version:     1,
	}
	require.NoError(t, repo.Booking.Create(ctx, booking))

	sender := &recordingSender{}
	return &emailFixture{
		repo:    repo,
		sender:  sender,
		handler: NewEmailHandler(repo, sender, zap.NewNop()),
		booking: booking,
	}
}

func TestNewBookingCreatedTask(t *testing.T) {
	id := uuid.New()
	task, err := NewBookingCreatedTask(id)
	require.NoError(t, err)
	assert.Equal(t, TypeBookingCreated, task.Type())

	var payload BookingCreatedPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, id, payload.BookingID)
}

func TestHandleBookingCreated_SendsToNurse(t *testing.T) {
	f := newEmailFixture(t)
	task, err := NewBookingCreatedTask(f.booking.ID)
	require.NoError(t, err)

	require.NoError(t, f.handler.HandleBookingCreated(context.Background(), task))

	require.Len(t, f.sender.sent, 1)
	msg := f.sender.sent[0]
	assert.Equal(t, "nina@homecare.test", msg.To)
	assert.Equal(t, "New home visit request: wound care", msg.Subject)
	assert.Contains(t, msg.Body, "Pat Doe")
	assert.Contains(t, msg.Body, "12 Elm Street")
}

func TestHandleBookingCreated_BadPayloadIsNotRetried(t *testing.T) {
	f := newEmailFixture(t)
	err := f.handler.HandleBookingCreated(context.Background(), asynq.NewTask(TypeBookingCreated, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleBookingCreated_MissingBookingIsNotRetried(t *testing.T) {
	f := newEmailFixture(t)
	err := f.handler.SendBookingCreated(context.Background(), uuid.New())
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, f.sender.sent)
}

func TestHandleBookingCreated_SenderFailureIsRetried(t *testing.T) {
	f := newEmailFixture(t)
	f.sender.err = errors.New("smtp down")

	err := f.handler.SendBookingCreated(context.Background(), f.booking.ID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestInlineNotifier(t *testing.T) {
	f := newEmailFixture(t)
	n := NewInlineNotifier(f.handler)

	require.NoError(t, n.BookingCreated(context.Background(), f.booking))
	assert.Len(t, f.sender.sent, 1)

	unassigned := &entity.Booking{Base: entity.Base{ID: uuid.New()}}
	assert.NoError(t, n.BookingCreated(context.Background(), unassigned))
	assert.Len(t, f.sender.sent, 1)
}

type mockMaintenance struct {
	mock.Mock
}

func (m *mockMaintenance) ResetMonthlyBookings(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockMaintenance) ExpireSubscriptions(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func TestScheduler_RunSweeps(t *testing.T) {
	m := &mockMaintenance{}
	m.On("ExpireSubscriptions", mock.Anything).Return(int64(2), nil).Once()
	m.On("ResetMonthlyBookings", mock.Anything).Return(int64(3), nil).Once()

	s, err := NewScheduler(m, time.Hour, clockwork.NewRealClock(), zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, s.runSweeps(context.Background()))
	m.AssertExpectations(t)
}

func TestScheduler_ExpiryFailureSkipsReset(t *testing.T) {
	m := &mockMaintenance{}
	m.On("ExpireSubscriptions", mock.Anything).Return(int64(0), errors.New("db down")).Once()

	s, err := NewScheduler(m, time.Hour, clockwork.NewRealClock(), zap.NewNop())
	require.NoError(t, err)

	assert.Error(t, s.runSweeps(context.Background()))
	m.AssertNotCalled(t, "ResetMonthlyBookings", mock.Anything)
}

func TestScheduler_RunsImmediatelyOnStart(t *testing.T) {
	m := &mockMaintenance{}
	ran := make(chan struct{}, 1)
	m.On("ExpireSubscriptions", mock.Anything).Return(int64(0), nil)
	m.On("ResetMonthlyBookings", mock.Anything).Return(int64(0), nil).Run(func(mock.Arguments) {
		select {
		case ran <- struct{}{}:
		default:
		}
	})

	s, err := NewScheduler(m, time.Hour, clockwork.NewRealClock(), zap.NewNop())
	require.NoError(t, err)
	s.Start()
	defer func() { require.NoError(t, s.Stop()) }()

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("sweeps did not run on start")
	}
}
