package response

import (
	"time"

	"homecare-booking/internal/data/entity"
)

type SubscriptionResponse struct {
	ID              string                    `json:"id"`
	NurseID         string                    `json:"nurse_id"`
	Plan            string                    `json:"plan"`
	Status          entity.SubscriptionStatus `json:"status"`
	Amount          int64                     `json:"amount"`
	Currency        string                    `json:"currency"`
	BookingLimit    int                       `json:"booking_limit"`
	BookingsUsed    int                       `json:"bookings_used"`
	StartDate       *time.Time                `json:"start_date,omitempty"`
	EndDate         *time.Time                `json:"end_date,omitempty"`
	TrialEndsAt     *time.Time                `json:"trial_ends_at,omitempty"`
	NextBillingDate *time.Time                `json:"next_billing_date,omitempty"`
	LastPaymentDate *time.Time                `json:"last_payment_date,omitempty"`
	FailedPayments  int                       `json:"failed_payments"`
	CancelledAt     *time.Time                `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time                 `json:"created_at"`
}

func SubscriptionToResponse(s *entity.NurseSubscription) *SubscriptionResponse {
	return &SubscriptionResponse{
		ID:              s.ID.String(),
		NurseID:         s.NurseID.String(),
		Plan:            s.Plan,
		Status:          s.Status,
		Amount:          s.Amount,
		Currency:        s.Currency,
		BookingLimit:    s.BookingLimit,
		BookingsUsed:    s.BookingsUsed,
		StartDate:       s.StartDate,
		EndDate:         s.EndDate,
		TrialEndsAt:     s.TrialEndsAt,
		NextBillingDate: s.NextBillingDate,
		LastPaymentDate: s.LastPaymentDate,
		FailedPayments:  s.FailedPayments,
		CancelledAt:     s.CancelledAt,
		CreatedAt:       s.CreatedAt,
	}
}

type QuotaResponse struct {
	Allowed          bool    `json:"allowed"`
	Reason           string  `json:"reason,omitempty"`
	Plan             string  `json:"plan,omitempty"`
	BookingsUsed     int     `json:"bookings_used"`
	BookingLimit     int     `json:"booking_limit"`
	Remaining        *int    `json:"remaining,omitempty"` // nil when unlimited
	SuggestedUpgrade *string `json:"suggested_upgrade,omitempty"`
}

type SubscriptionStatusResponse struct {
	Subscription *SubscriptionResponse `json:"subscription,omitempty"`
	Quota        QuotaResponse         `json:"quota"`
}

type CheckoutResponse struct {
	Subscription *SubscriptionResponse `json:"subscription"`
	CheckoutURL  string                `json:"checkout_url"`
}

type PlanResponse struct {
	Name         string `json:"name"`
	BookingLimit int    `json:"booking_limit"`
	PriceMonthly int64  `json:"price_monthly"`
	Currency     string `json:"currency"`
}

type WebhookResponse struct {
	Outcome        string  `json:"outcome"`
	SubscriptionID *string `json:"subscription_id,omitempty"`
}
