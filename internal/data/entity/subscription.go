package entity

import (
	"time"

	"github.com/google/uuid"
)

type SubscriptionStatus string

const (
	SubscriptionStatusPending       SubscriptionStatus = "PENDING"
	SubscriptionStatusTrial         SubscriptionStatus = "TRIAL"
	SubscriptionStatusActive        SubscriptionStatus = "ACTIVE"
	SubscriptionStatusPaused        SubscriptionStatus = "PAUSED"
	SubscriptionStatusPaymentFailed SubscriptionStatus = "PAYMENT_FAILED"
	SubscriptionStatusCancelled     SubscriptionStatus = "CANCELLED"
	SubscriptionStatusExpired       SubscriptionStatus = "EXPIRED"
)

func (s SubscriptionStatus) IsTerminal() bool {
	return s == SubscriptionStatusCancelled || s == SubscriptionStatusExpired
}

// IsCurrent reports whether the status counts toward the one-active-per-nurse rule.
func (s SubscriptionStatus) IsCurrent() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusTrial
}

// UnlimitedBookings is the BookingLimit sentinel for plans without a cap.
const UnlimitedBookings = -1

type NurseSubscription struct {
	Base
	NurseID  uuid.UUID          `db:"nurse_id"`
	Plan     string             `db:"plan"`
	Status   SubscriptionStatus `db:"status"`
	Amount   int64              `db:"amount"`
	Currency string             `db:"currency"`

	BookingLimit int `db:"booking_limit"`
	BookingsUsed int `db:"bookings_used"`

	StartDate         *time.Time `db:"start_date"`
	EndDate           *time.Time `db:"end_date"`
	TrialEndsAt       *time.Time `db:"trial_ends_at"`
	NextBillingDate   *time.Time `db:"next_billing_date"`
	LastPaymentDate   *time.Time `db:"last_payment_date"`
	LastPaymentAmount *int64     `db:"last_payment_amount"`
	FailedPayments    int        `db:"failed_payments"`
	CancelledAt       *time.Time `db:"cancelled_at"`

	// Provider correlation. A webhook token may match either of these or the record id.
	OrderID                *string `db:"order_id"`
	ProviderSubscriptionID *string `db:"provider_subscription_id"`
}

// HasCapacity reports whether one more booking fits under the limit.
func (s *NurseSubscription) HasCapacity() bool {
	return s.BookingLimit == UnlimitedBookings || s.BookingsUsed < s.BookingLimit
}

func (s *NurseSubscription) Clone() *NurseSubscription {
	c := *s
	c.StartDate = cloneTime(s.StartDate)
	c.EndDate = cloneTime(s.EndDate)
	c.TrialEndsAt = cloneTime(s.TrialEndsAt)
	c.NextBillingDate = cloneTime(s.NextBillingDate)
	c.LastPaymentDate = cloneTime(s.LastPaymentDate)
	c.CancelledAt = cloneTime(s.CancelledAt)
	c.OrderID = cloneString(s.OrderID)
	c.ProviderSubscriptionID = cloneString(s.ProviderSubscriptionID)
	if s.LastPaymentAmount != nil {
		v := *s.LastPaymentAmount
		c.LastPaymentAmount = &v
	}
	return &c
}
