package wire

import (
	"homecare-booking/internal/adaptor"
	"homecare-booking/internal/data/entity"
	"homecare-booking/internal/data/repository"
	"homecare-booking/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireSubscription(
	r chi.Router,
	subscriptionHandler *adaptor.SubscriptionHandler,
	repo *repository.Repository,
	log *zap.Logger,
) {
	r.Route("/api/subscriptions", func(r chi.Router) {
		// GET /api/subscriptions/plans - plan table (public)
		r.Get("/plans", subscriptionHandler.ListPlans)

		// Everything else belongs to the calling nurse
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthSession(repo.Session, repo.User, log))
			r.Use(middleware.RequireRole(log, entity.RoleNurse))

			r.Get("/status", subscriptionHandler.GetStatus)
			r.Get("/quota", subscriptionHandler.GetQuota)
			r.Post("/trial", subscriptionHandler.StartTrial)
			r.Post("/checkout", subscriptionHandler.Checkout)
			r.Post("/change-plan", subscriptionHandler.ChangePlan)
			r.Post("/cancel", subscriptionHandler.Cancel)
		})
	})
}
