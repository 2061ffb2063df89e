package usecase

import (
	"context"
	"time"

	"homecare-booking/internal/data/entity"
	"homecare-booking/internal/data/repository"
	"homecare-booking/internal/data/repository/memory"
	"homecare-booking/pkg/utils"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

var t0 = time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateSubscriptionCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	args := m.Called(ctx, req)
	if c := args.Get(0); c != nil {
		return c.(*Charge), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) CancelCharge(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) BookingCreated(ctx context.Context, booking *entity.Booking) error {
	return m.Called(ctx, booking).Error(0)
}

// mapCache is an in-memory StatusCache.
type mapCache struct {
	entries map[string][]byte
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string][]byte)}
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, error) {
	return c.entries[key], nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte) error {
	c.entries[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	delete(c.entries, key)
	return nil
}

func (c *mapCache) Flush(_ context.Context) error {
	clear(c.entries)
	return nil
}

// serviceSuite wires every service against the memory store and a fake clock.
type serviceSuite struct {
	suite.Suite
	ctx      context.Context
	clock    *clockwork.FakeClock
	repo     *repository.Repository
	store    *memory.Store
	gateway  *mockGateway
	notifier *mockNotifier
	cache    *mapCache
	config   *utils.Config
	svc      *Service

	patient Actor
	nurse   Actor
	admin   Actor
}

func (s *serviceSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = clockwork.NewFakeClockAt(t0)
	s.repo, s.store = memory.NewRepository(s.clock)
	s.gateway = new(mockGateway)
	s.notifier = new(mockNotifier)
	s.cache = newMapCache()
	s.config = &utils.Config{
		Payment: utils.PaymentConfig{
			Currency:      "usd",
			SuccessURL:    "https://app.test/ok",
			CancelURL:     "https://app.test/cancel",
			WebhookSecret: "whsec_test",
		},
		Subscription: utils.SubscriptionConfig{TrialDays: 14},
	}
	s.svc = NewService(s.repo, s.config, Collaborators{
		Clock:    s.clock,
		Gateway:  s.gateway,
		Notifier: s.notifier,
		Cache:    s.cache,
	}, zap.NewNop())

	s.patient = s.addUser(entity.RolePatient, nil)
	rate := int64(100)
	s.nurse = s.addUser(entity.RoleNurse, &rate)
	s.admin = s.addUser(entity.RoleAdmin, nil)
}

func (s *serviceSuite) addUser(role entity.UserRole, rate *int64) Actor {
	u := &entity.User{
		Base:       entity.Base{ID: uuid.New(), CreatedAt: t0, UpdatedAt: t0},
		Email:      string(role) + "-" + uuid.NewString()[:8] + "@example.test",
		FullName:   string(role),
		Role:       role,
		HourlyRate: rate,
		IsActive:   true,
	}
	s.store.PutUser(u)
	return Actor{ID: u.ID, Role: role}
}

func (s *serviceSuite) addSubscription(nurseID uuid.UUID, status entity.SubscriptionStatus, plan string, limit, used int) *entity.NurseSubscription {
	now := s.clock.Now()
	end := now.Add(BillingPeriod)
	sub := &entity.NurseSubscription{
		Base:            entity.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		NurseID:         nurseID,
		Plan:            plan,
		Status:          status,
		Currency:        "usd",
		BookingLimit:    limit,
		BookingsUsed:    used,
		StartDate:       &now,
		EndDate:         &end,
		NextBillingDate: &end,
	}
	s.store.PutSubscription(sub)
	return sub
}

// addBooking stores a PENDING booking for the suite's patient directly.
func (s *serviceSuite) addBooking(nurseID *uuid.UUID) *entity.Booking {
	now := s.clock.Now()
	b := &entity.Booking{
		Base:        entity.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		PatientID:   s.patient.ID,
		NurseID:     nurseID,
		ServiceType: "wound care",
		ScheduledAt: now.Add(24 * time.Hour),
		Address:     "12 Harbour Road",
		Status:      entity.BookingStatusPending,
	}
	s.Require().NoError(s.repo.Booking.Create(s.ctx, b))
	return b
}

func (s *serviceSuite) subscription(id uuid.UUID) *entity.NurseSubscription {
	sub, err := s.repo.Subscription.FindByID(s.ctx, id)
	s.Require().NoError(err)
	s.Require().NotNil(sub)
	return sub
}

func (s *serviceSuite) booking(id uuid.UUID) *entity.Booking {
	b, err := s.repo.Booking.FindByID(s.ctx, id)
	s.Require().NoError(err)
	s.Require().NotNil(b)
	return b
}
