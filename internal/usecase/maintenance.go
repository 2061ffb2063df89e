package usecase

import (
	"context"
	"fmt"

	"homecare-booking/internal/data/repository"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// MaintenanceService holds the periodic subscription sweeps.
type MaintenanceService interface {
	ResetMonthlyBookings(ctx context.Context) (int64, error)
	ExpireSubscriptions(ctx context.Context) (int64, error)
}

type maintenanceService struct {
	repo  *repository.Repository
	cache *statusCache
	clock clockwork.Clock
	log   *zap.Logger
}

func NewMaintenanceService(repo *repository.Repository, cache StatusCache, clock clockwork.Clock, log *zap.Logger) MaintenanceService {
	return &maintenanceService{
		repo:  repo,
		cache: newStatusCache(cache, log),
		clock: clock,
		log:   log.With(zap.String("service", "maintenance")),
	}
}

func (s *maintenanceService) ResetMonthlyBookings(ctx context.Context) (int64, error) {
	n, err := s.repo.Subscription.ResetMonthlyBookings(ctx, s.clock.Now(), BillingPeriod)
	if err != nil {
		return 0, fmt.Errorf("reset monthly bookings: %w", err)
	}
	if n > 0 {
		s.cache.flush(ctx)
	}
	s.log.Info("Monthly booking counters reset", zap.Int64("subscriptions", n))
	return n, nil
}

func (s *maintenanceService) ExpireSubscriptions(ctx context.Context) (int64, error) {
	n, err := s.repo.Subscription.ExpireSubscriptions(ctx, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("expire subscriptions: %w", err)
	}
	if n > 0 {
		s.cache.flush(ctx)
	}
	s.log.Info("Subscriptions expired", zap.Int64("subscriptions", n))
	return n, nil
}
