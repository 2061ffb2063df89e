package usecase

import (
	"homecare-booking/internal/data/repository"
	"homecare-booking/pkg/utils"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Collaborators are the external systems the services talk to.
type Collaborators struct {
	Clock    clockwork.Clock
	Gateway  PaymentGateway
	Notifier BookingNotifier
	Cache    StatusCache
}

type Service struct {
	Booking      BookingService
	Quota        QuotaGuard
	Subscription SubscriptionService
	Webhook      WebhookService
	Maintenance  MaintenanceService
}

func NewService(repo *repository.Repository, config *utils.Config, deps Collaborators, log *zap.Logger) *Service {
	return &Service{
		Booking:      NewBookingService(repo, deps.Cache, deps.Notifier, deps.Clock, log),
		Quota:        NewQuotaGuard(repo, deps.Cache, deps.Clock, log),
		Subscription: NewSubscriptionService(repo, deps.Gateway, deps.Cache, deps.Clock, config, log),
		Webhook:      NewWebhookService(repo, deps.Cache, deps.Clock, config, log),
		Maintenance:  NewMaintenanceService(repo, deps.Cache, deps.Clock, log),
	}
}
