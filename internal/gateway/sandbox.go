package gateway

import (
	"context"
	"net/url"
	"sync"

	"homecare-booking/internal/usecase"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SandboxGateway stands in for the provider when no key is configured.
// Charges are only recorded; activation has to be driven through the
// webhook endpoint.
type SandboxGateway struct {
	mu        sync.Mutex
	cancelled map[string]bool
	log       *zap.Logger
}

func NewSandboxGateway(log *zap.Logger) *SandboxGateway {
	return &SandboxGateway{
		cancelled: make(map[string]bool),
		log:       log.With(zap.String("gateway", "sandbox")),
	}
}

func (g *SandboxGateway) CreateSubscriptionCharge(_ context.Context, req usecase.ChargeRequest) (*usecase.Charge, error) {
	token := "sbx_" + uuid.NewString()

	checkout := req.SuccessURL
	if u, err := url.Parse(req.SuccessURL); err == nil && req.SuccessURL != "" {
		q := u.Query()
		q.Set("session_id", token)
		u.RawQuery = q.Encode()
		checkout = u.String()
	}

	g.log.Info("Sandbox charge created",
		zap.String("token", token),
		zap.String("subscription_id", req.SubscriptionID),
		zap.Int64("amount", req.Amount),
	)
	return &usecase.Charge{Token: token, CheckoutURL: checkout}, nil
}

func (g *SandboxGateway) CancelCharge(_ context.Context, token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelled[token] = true
	g.log.Info("Sandbox charge cancelled", zap.String("token", token))
	return nil
}

// Cancelled reports whether token was cancelled.
func (g *SandboxGateway) Cancelled(token string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cancelled[token]
}
