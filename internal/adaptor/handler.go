package adaptor

import (
	"encoding/json"
	"errors"
	"net/http"

	"homecare-booking/internal/usecase"
	"homecare-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Handler struct {
	Booking      *BookingHandler
	Subscription *SubscriptionHandler
	Webhook      *WebhookHandler
}

func NewHandler(service *usecase.Service, log *zap.Logger) *Handler {
	return &Handler{
		Booking:      NewBookingHandler(service.Booking, log),
		Subscription: NewSubscriptionHandler(service.Subscription, log),
		Webhook:      NewWebhookHandler(service.Webhook, log),
	}
}

// actorFromRequest reads the caller set by the auth middleware.
func actorFromRequest(w http.ResponseWriter, r *http.Request) (usecase.Actor, bool) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return usecase.Actor{}, false
	}
	role, _ := utils.GetRoleFromContext(r.Context())
	return usecase.Actor{ID: userID, Role: role}, true
}

func bookingIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		utils.ResponseBadRequest(w, "Invalid booking ID", nil)
		return uuid.Nil, false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return false
	}
	return true
}

// writeServiceError maps the usecase error kinds onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error, operation string) {
	var quotaErr *usecase.QuotaError
	var validationErr *usecase.ValidationError

	switch {
	case errors.As(err, &quotaErr):
		log.Warn(operation+" denied by quota",
			zap.String("operation", operation),
			zap.String("reason", quotaErr.Decision.Reason))
		utils.ResponseJSON(w, http.StatusPaymentRequired, false, err.Error(), quotaErr.Decision.ToResponse(), nil)

	case errors.As(err, &validationErr):
		utils.ResponseBadRequest(w, "Validation failed", validationErr.Fields)

	case errors.Is(err, usecase.ErrValidation):
		utils.ResponseBadRequest(w, err.Error(), nil)

	case errors.Is(err, usecase.ErrNotFound):
		utils.ResponseNotFound(w, err.Error())

	case errors.Is(err, usecase.ErrForbidden):
		log.Warn(operation+" failed - forbidden",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseForbidden(w, err.Error())

	case errors.Is(err, usecase.ErrInvalidTransition):
		utils.ResponseError(w, http.StatusConflict, err.Error(), nil)

	case errors.Is(err, usecase.ErrPreconditionFailed):
		utils.ResponseError(w, http.StatusPreconditionFailed, err.Error(), nil)

	case errors.Is(err, usecase.ErrWindowExpired):
		log.Warn(operation+" failed - window expired",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseError(w, http.StatusUnprocessableEntity, err.Error(), nil)

	case errors.Is(err, usecase.ErrQuotaExceeded):
		utils.ResponseError(w, http.StatusPaymentRequired, err.Error(), nil)

	case errors.Is(err, usecase.ErrInvalidSignature):
		log.Warn(operation+" failed - invalid signature", zap.String("operation", operation))
		utils.ResponseUnauthorized(w, err.Error())

	default:
		log.Error("Failed to "+operation,
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseInternalError(w, "Internal server error")
	}
}
