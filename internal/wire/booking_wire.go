package wire

import (
	"homecare-booking/internal/adaptor"
	"homecare-booking/internal/data/repository"
	"homecare-booking/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireBooking(
	r chi.Router,
	bookingHandler *adaptor.BookingHandler,
	repo *repository.Repository,
	log *zap.Logger,
) {
	// ==================== PROTECTED ROUTES (require auth) ====================
	r.Route("/api/bookings", func(r chi.Router) {
		r.Use(middleware.AuthSession(repo.Session, repo.User, log))

		r.Post("/", bookingHandler.CreateBooking)
		r.Get("/", bookingHandler.ListBookings)
		r.Get("/{id}", bookingHandler.GetBooking)
		r.Patch("/{id}/status", bookingHandler.UpdateStatus)

		r.Post("/{id}/accept", bookingHandler.Accept)
		r.Post("/{id}/cancel", bookingHandler.Cancel)
		r.Post("/{id}/arrival", bookingHandler.MarkArrival)
		r.Post("/{id}/confirm-arrival", bookingHandler.ConfirmArrival)
		r.Post("/{id}/start-service", bookingHandler.StartService)
		r.Post("/{id}/stop-service", bookingHandler.StopService)
	})

	// ==================== ADMIN ROUTES ====================
	r.Route("/api/admin/bookings", func(r chi.Router) {
		r.Use(middleware.AuthSession(repo.Session, repo.User, log))
		r.Use(middleware.Admin(log))

		r.Post("/{id}/resolve-arrival", bookingHandler.ResolveLapsedArrival)
	})
}
