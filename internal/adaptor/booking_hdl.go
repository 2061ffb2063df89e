package adaptor

import (
	"net/http"

	"homecare-booking/internal/data/entity"
	"homecare-booking/internal/dto/request"
	"homecare-booking/internal/dto/response"
	"homecare-booking/internal/usecase"
	"homecare-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type BookingHandler struct {
	service usecase.BookingService
	log     *zap.Logger
}

func NewBookingHandler(service usecase.BookingService, log *zap.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log.With(zap.String("handler", "booking")),
	}
}

// CreateBooking handles POST /api/bookings
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req request.CreateBookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	booking, err := h.service.CreateBooking(r.Context(), actor, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "create booking")
		return
	}

	utils.ResponseCreated(w, "Booking created", booking)
}

// ListBookings handles GET /api/bookings
func (h *BookingHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	req := &request.ListBookingsRequest{
		PaginatedRequest: request.PaginatedRequest{
			Page:    utils.ParseInt(query.Get("page"), 1),
			PerPage: utils.ParseInt(query.Get("per_page"), 10),
		},
		Status: query.Get("status"),
	}

	bookings, err := h.service.ListBookings(r.Context(), actor, req)
	if err != nil {
		writeServiceError(w, h.log, err, "list bookings")
		return
	}

	utils.ResponseSuccess(w, "success", bookings)
}

// GetBooking handles GET /api/bookings/{id}
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := bookingIDParam(w, r)
	if !ok {
		return
	}

	booking, err := h.service.GetBooking(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, h.log, err, "get booking")
		return
	}

	utils.ResponseSuccess(w, "success", booking)
}

// UpdateStatus handles PATCH /api/bookings/{id}/status
func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req request.UpdateBookingStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", errs)
		return
	}

	h.transition(w, r, "update booking status", func(actor usecase.Actor, id uuid.UUID) (*response.BookingResponse, error) {
		return h.service.UpdateStatus(r.Context(), actor, id, entity.BookingStatus(req.Status))
	})
}

// Accept handles POST /api/bookings/{id}/accept
func (h *BookingHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "accept booking", func(actor usecase.Actor, id uuid.UUID) (*response.BookingResponse, error) {
		return h.service.Accept(r.Context(), actor, id)
	})
}

// Cancel handles POST /api/bookings/{id}/cancel
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "cancel booking", func(actor usecase.Actor, id uuid.UUID) (*response.BookingResponse, error) {
		return h.service.Cancel(r.Context(), actor, id)
	})
}

// MarkArrival handles POST /api/bookings/{id}/arrival
func (h *BookingHandler) MarkArrival(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "mark arrival", func(actor usecase.Actor, id uuid.UUID) (*response.BookingResponse, error) {
		return h.service.MarkArrival(r.Context(), actor, id)
	})
}

// ConfirmArrival handles POST /api/bookings/{id}/confirm-arrival
func (h *BookingHandler) ConfirmArrival(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "confirm arrival", func(actor usecase.Actor, id uuid.UUID) (*response.BookingResponse, error) {
		return h.service.ConfirmArrival(r.Context(), actor, id)
	})
}

// StartService handles POST /api/bookings/{id}/start-service
func (h *BookingHandler) StartService(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "start service", func(actor usecase.Actor, id uuid.UUID) (*response.BookingResponse, error) {
		return h.service.StartService(r.Context(), actor, id)
	})
}

// StopService handles POST /api/bookings/{id}/stop-service
func (h *BookingHandler) StopService(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "stop service", func(actor usecase.Actor, id uuid.UUID) (*response.BookingResponse, error) {
		return h.service.StopService(r.Context(), actor, id)
	})
}

// ResolveLapsedArrival handles POST /api/admin/bookings/{id}/resolve-arrival (admin only)
func (h *BookingHandler) ResolveLapsedArrival(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "resolve lapsed arrival", func(actor usecase.Actor, id uuid.UUID) (*response.BookingResponse, error) {
		return h.service.ResolveLapsedArrival(r.Context(), actor, id)
	})
}

func (h *BookingHandler) transition(
	w http.ResponseWriter,
	r *http.Request,
	operation string,
	fn func(actor usecase.Actor, id uuid.UUID) (*response.BookingResponse, error),
) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := bookingIDParam(w, r)
	if !ok {
		return
	}

	booking, err := fn(actor, id)
	if err != nil {
		writeServiceError(w, h.log, err, operation)
		return
	}

	utils.ResponseSuccess(w, "success", booking)
}
