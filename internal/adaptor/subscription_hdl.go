package adaptor

import (
	"net/http"

	"homecare-booking/internal/dto/request"
	"homecare-booking/internal/usecase"
	"homecare-booking/pkg/utils"

	"go.uber.org/zap"
)

type SubscriptionHandler struct {
	service usecase.SubscriptionService
	log     *zap.Logger
}

func NewSubscriptionHandler(service usecase.SubscriptionService, log *zap.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		service: service,
		log:     log.With(zap.String("handler", "subscription")),
	}
}

// GetStatus handles GET /api/subscriptions/status
func (h *SubscriptionHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	status, err := h.service.GetStatus(r.Context(), actor)
	if err != nil {
		writeServiceError(w, h.log, err, "get subscription status")
		return
	}

	utils.ResponseSuccess(w, "success", status)
}

// GetQuota handles GET /api/subscriptions/quota
func (h *SubscriptionHandler) GetQuota(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	quota, err := h.service.GetQuota(r.Context(), actor)
	if err != nil {
		writeServiceError(w, h.log, err, "get quota")
		return
	}

	utils.ResponseSuccess(w, "success", quota)
}

// ListPlans handles GET /api/subscriptions/plans
func (h *SubscriptionHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	utils.ResponseSuccess(w, "success", h.service.ListPlans(r.Context()))
}

// StartTrial handles POST /api/subscriptions/trial
func (h *SubscriptionHandler) StartTrial(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	sub, err := h.service.StartTrial(r.Context(), actor)
	if err != nil {
		writeServiceError(w, h.log, err, "start trial")
		return
	}

	utils.ResponseCreated(w, "Trial started", sub)
}

// Checkout handles POST /api/subscriptions/checkout
func (h *SubscriptionHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req request.CheckoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	checkout, err := h.service.Checkout(r.Context(), actor, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "checkout")
		return
	}

	utils.ResponseCreated(w, "Checkout created", checkout)
}

// ChangePlan handles POST /api/subscriptions/change-plan
func (h *SubscriptionHandler) ChangePlan(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req request.ChangePlanRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	checkout, err := h.service.ChangePlan(r.Context(), actor, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "change plan")
		return
	}

	utils.ResponseCreated(w, "Checkout created", checkout)
}

// Cancel handles POST /api/subscriptions/cancel
func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	sub, err := h.service.Cancel(r.Context(), actor)
	if err != nil {
		writeServiceError(w, h.log, err, "cancel subscription")
		return
	}

	utils.ResponseSuccess(w, "Subscription cancelled", sub)
}
