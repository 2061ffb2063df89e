// Package gateway holds the payment collaborators behind usecase.PaymentGateway.
package gateway

import (
	"homecare-booking/internal/usecase"
	"homecare-booking/pkg/utils"

	"go.uber.org/zap"
)

// New picks Stripe when a secret key is configured and the sandbox otherwise.
func New(config utils.PaymentConfig, log *zap.Logger) usecase.PaymentGateway {
	if config.StripeSecretKey == "" {
		log.Warn("STRIPE_SECRET_KEY not set, using sandbox payment gateway")
		return NewSandboxGateway(log)
	}
	return NewStripeGateway(config.StripeSecretKey, log)
}
