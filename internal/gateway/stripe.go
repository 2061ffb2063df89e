package gateway

import (
	"context"
	"fmt"
	"strings"

	"homecare-booking/internal/usecase"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/subscription"
	"go.uber.org/zap"
)

// StripeGateway opens Stripe Checkout sessions in subscription mode.
type StripeGateway struct {
	log *zap.Logger
}

// NewStripeGateway sets the process-wide Stripe key.
func NewStripeGateway(secretKey string, log *zap.Logger) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{log: log.With(zap.String("gateway", "stripe"))}
}

func (g *StripeGateway) CreateSubscriptionCharge(ctx context.Context, req usecase.ChargeRequest) (*usecase.Charge, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(req.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("Nurse %s plan", req.Plan)),
					},
					Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
						Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
					},
					UnitAmount: stripe.Int64(req.Amount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.SubscriptionID),
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.AddMetadata("subscription_id", req.SubscriptionID)
	params.AddMetadata("plan", req.Plan)
	params.Context = ctx

	s, err := session.New(params)
	if err != nil {
		g.log.Error("Failed to create checkout session",
			zap.Error(err),
			zap.String("subscription_id", req.SubscriptionID),
		)
		return nil, fmt.Errorf("stripe checkout session: %w", err)
	}

	charge := &usecase.Charge{Token: s.ID, CheckoutURL: s.URL}
	if s.Subscription != nil {
		charge.ProviderSubscriptionID = s.Subscription.ID
	}
	return charge, nil
}

// CancelCharge cancels a live Stripe subscription or expires a checkout
// session that was never completed, depending on the token's prefix.
func (g *StripeGateway) CancelCharge(ctx context.Context, token string) error {
	var err error
	switch {
	case strings.HasPrefix(token, "sub_"):
		params := &stripe.SubscriptionCancelParams{}
		params.Context = ctx
		_, err = subscription.Cancel(token, params)
	case strings.HasPrefix(token, "cs_"):
		params := &stripe.CheckoutSessionExpireParams{}
		params.Context = ctx
		_, err = session.Expire(token, params)
	default:
		return fmt.Errorf("unrecognised stripe token %q", token)
	}
	if err != nil {
		g.log.Error("Failed to cancel stripe charge", zap.Error(err), zap.String("token", token))
		return fmt.Errorf("stripe cancel %s: %w", token, err)
	}
	return nil
}
