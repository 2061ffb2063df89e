package repository

import (
	"context"
	"fmt"

	"homecare-booking/internal/data/entity"
	"homecare-booking/pkg/database"

	"go.uber.org/zap"
)

type PaymentEventRepository interface {
	// Insert records the event and reports false when its reference was
	// already recorded.
	Insert(ctx context.Context, event *entity.PaymentEvent) (bool, error)
}

type paymentEventRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewPaymentEventRepository(db database.Querier, log *zap.Logger) PaymentEventRepository {
	return &paymentEventRepository{
		db:  db,
		log: log.With(zap.String("repository", "payment_event")),
	}
}

func (r *paymentEventRepository) Insert(ctx context.Context, event *entity.PaymentEvent) (bool, error) {
	query := `
		INSERT INTO payment_events (id, subscription_id, reference, kind, raw_event, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (reference) DO NOTHING
	`

	result, err := r.db.Exec(ctx, query,
		event.ID,
		event.SubscriptionID,
		event.Reference,
		event.Kind,
		event.RawEvent,
		event.Amount,
		event.CreatedAt,
	)
	if err != nil {
		r.log.Error("Failed to record payment event",
			zap.Error(err),
			zap.String("reference", event.Reference),
		)
		return false, fmt.Errorf("record payment event %s: %w", event.Reference, err)
	}

	return result.RowsAffected() == 1, nil
}
