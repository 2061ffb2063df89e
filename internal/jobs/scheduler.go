package jobs

import (
	"context"
	"fmt"
	"time"

	"homecare-booking/internal/usecase"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Scheduler runs the subscription sweeps on a fixed interval.
type Scheduler struct {
	scheduler   gocron.Scheduler
	maintenance usecase.MaintenanceService
	log         *zap.Logger
}

func NewScheduler(maintenance usecase.MaintenanceService, interval time.Duration, clock clockwork.Clock, log *zap.Logger) (*Scheduler, error) {
	scheduler, err := gocron.NewScheduler(gocron.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	s := &Scheduler{
		scheduler:   scheduler,
		maintenance: maintenance,
		log:         log.With(zap.String("job", "scheduler")),
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.runSweeps, context.Background()),
		gocron.WithName("subscription-sweeps"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return nil, fmt.Errorf("register subscription sweeps: %w", err)
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.log.Info("Starting background job scheduler")
	s.scheduler.Start()
}

func (s *Scheduler) Stop() error {
	s.log.Info("Stopping background job scheduler")
	return s.scheduler.Shutdown()
}

// runSweeps expires lapsed subscriptions first so a subscription that ended
// is not handed a fresh monthly allowance.
func (s *Scheduler) runSweeps(ctx context.Context) error {
	expired, err := s.maintenance.ExpireSubscriptions(ctx)
	if err != nil {
		s.log.Error("Subscription expiry sweep failed", zap.Error(err))
		return err
	}

	reset, err := s.maintenance.ResetMonthlyBookings(ctx)
	if err != nil {
		s.log.Error("Monthly usage reset failed", zap.Error(err))
		return err
	}

	s.log.Info("Subscription sweeps finished",
		zap.Int64("expired", expired),
		zap.Int64("reset", reset),
	)
	return nil
}
