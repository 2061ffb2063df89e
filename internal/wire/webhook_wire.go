package wire

import (
	"homecare-booking/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

// The payment provider authenticates with the body signature, not a session.
func wireWebhook(r chi.Router, webhookHandler *adaptor.WebhookHandler) {
	r.Post("/api/webhooks/payment", webhookHandler.PaymentWebhook)
}
