package entity

import (
	"github.com/google/uuid"
)

type PaymentEventKind string

const (
	PaymentEventSuccess PaymentEventKind = "success"
	PaymentEventFailure PaymentEventKind = "failure"
)

// PaymentEvent records one applied provider event. Reference is unique and
// acts as the replay guard for webhook redelivery.
type PaymentEvent struct {
	BaseSimple
	SubscriptionID *uuid.UUID       `db:"subscription_id"`
	Reference      string           `db:"reference"`
	Kind           PaymentEventKind `db:"kind"`
	RawEvent       string           `db:"raw_event"`
	Amount         *int64           `db:"amount"`
}
