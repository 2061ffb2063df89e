package usecase

import (
	"context"

	"homecare-booking/internal/data/entity"
)

// ChargeRequest describes a recurring monthly charge for a subscription.
type ChargeRequest struct {
	SubscriptionID string
	Plan           string
	Amount         int64
	Currency       string
	CustomerEmail  string
	SuccessURL     string
	CancelURL      string
}

// Charge is the provider's answer to a charge request. Token is what the
// provider later quotes back in webhooks.
type Charge struct {
	Token                  string
	CheckoutURL            string
	ProviderSubscriptionID string
}

type PaymentGateway interface {
	CreateSubscriptionCharge(ctx context.Context, req ChargeRequest) (*Charge, error)
	CancelCharge(ctx context.Context, token string) error
}

// BookingNotifier delivers booking notifications. Delivery is best-effort.
type BookingNotifier interface {
	BookingCreated(ctx context.Context, booking *entity.Booking) error
}

// StatusCache stores serialized subscription status per key. Get returns
// nil, nil on a miss.
type StatusCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Flush(ctx context.Context) error
}
