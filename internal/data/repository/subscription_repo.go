package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"homecare-booking/internal/data/entity"
	"homecare-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type SubscriptionRepository interface {
	Create(ctx context.Context, sub *entity.NurseSubscription) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.NurseSubscription, error)
	// FindCurrentForNurse returns the most recent ACTIVE/TRIAL subscription whose
	// end date has not passed (or is unset).
	FindCurrentForNurse(ctx context.Context, nurseID uuid.UUID, now time.Time) (*entity.NurseSubscription, error)
	// FindCurrentForNurseForUpdate is FindCurrentForNurse with a row lock held
	// until the surrounding transaction ends.
	FindCurrentForNurseForUpdate(ctx context.Context, nurseID uuid.UUID, now time.Time) (*entity.NurseSubscription, error)
	FindLatestForNurse(ctx context.Context, nurseID uuid.UUID) (*entity.NurseSubscription, error)
	HasTrial(ctx context.Context, nurseID uuid.UUID) (bool, error)
	// FindByTokenForUpdate matches a provider token against order id, provider
	// subscription id and record id, in that order.
	FindByTokenForUpdate(ctx context.Context, token string) (*entity.NurseSubscription, error)
	Update(ctx context.Context, sub *entity.NurseSubscription) error
	// IncrementUsage bumps bookings_used only while the limit allows it and
	// returns the new count. ErrConflict when the limit is already reached.
	IncrementUsage(ctx context.Context, id uuid.UUID, now time.Time) (int, error)
	CancelOtherCurrent(ctx context.Context, nurseID, keepID uuid.UUID, now time.Time) (int64, error)
	ResetMonthlyBookings(ctx context.Context, now time.Time, period time.Duration) (int64, error)
	ExpireSubscriptions(ctx context.Context, now time.Time) (int64, error)
}

const subscriptionColumns = `id, nurse_id, plan, status, amount, currency, booking_limit, bookings_used,
		start_date, end_date, trial_ends_at, next_billing_date, last_payment_date, last_payment_amount,
		failed_payments, cancelled_at, order_id, provider_subscription_id, created_at, updated_at`

type subscriptionRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewSubscriptionRepository(db database.Querier, log *zap.Logger) SubscriptionRepository {
	return &subscriptionRepository{
		db:  db,
		log: log.With(zap.String("repository", "subscription")),
	}
}

func scanSubscription(row rowScanner) (*entity.NurseSubscription, error) {
	var s entity.NurseSubscription
	err := row.Scan(
		&s.ID,
		&s.NurseID,
		&s.Plan,
		&s.Status,
		&s.Amount,
		&s.Currency,
		&s.BookingLimit,
		&s.BookingsUsed,
		&s.StartDate,
		&s.EndDate,
		&s.TrialEndsAt,
		&s.NextBillingDate,
		&s.LastPaymentDate,
		&s.LastPaymentAmount,
		&s.FailedPayments,
		&s.CancelledAt,
		&s.OrderID,
		&s.ProviderSubscriptionID,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *subscriptionRepository) findOne(ctx context.Context, op, query string, args ...any) (*entity.NurseSubscription, error) {
	sub, err := scanSubscription(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to "+op, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

func (r *subscriptionRepository) Create(ctx context.Context, sub *entity.NurseSubscription) error {
	query := `
		INSERT INTO nurse_subscriptions (id, nurse_id, plan, status, amount, currency, booking_limit, bookings_used,
		                                 start_date, end_date, trial_ends_at, next_billing_date, failed_payments,
		                                 order_id, provider_subscription_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := r.db.Exec(ctx, query,
		sub.ID,
		sub.NurseID,
		sub.Plan,
		sub.Status,
		sub.Amount,
		sub.Currency,
		sub.BookingLimit,
		sub.BookingsUsed,
		sub.StartDate,
		sub.EndDate,
		sub.TrialEndsAt,
		sub.NextBillingDate,
		sub.FailedPayments,
		sub.OrderID,
		sub.ProviderSubscriptionID,
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create subscription",
			zap.Error(err),
			zap.String("nurse_id", sub.NurseID.String()),
			zap.String("plan", sub.Plan),
		)
		return fmt.Errorf("create subscription for nurse %s: %w", sub.NurseID, err)
	}

	return nil
}

func (r *subscriptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.NurseSubscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM nurse_subscriptions WHERE id = $1`
	return r.findOne(ctx, "find subscription by ID", query, id)
}

const currentForNurseQuery = `SELECT ` + subscriptionColumns + `
		FROM nurse_subscriptions
		WHERE nurse_id = $1
		  AND status IN ('ACTIVE', 'TRIAL')
		  AND (end_date IS NULL OR end_date >= $2)
		ORDER BY created_at DESC
		LIMIT 1`

func (r *subscriptionRepository) FindCurrentForNurse(ctx context.Context, nurseID uuid.UUID, now time.Time) (*entity.NurseSubscription, error) {
	return r.findOne(ctx, "find current subscription", currentForNurseQuery, nurseID, now)
}

func (r *subscriptionRepository) FindCurrentForNurseForUpdate(ctx context.Context, nurseID uuid.UUID, now time.Time) (*entity.NurseSubscription, error) {
	return r.findOne(ctx, "lock current subscription", currentForNurseQuery+` FOR UPDATE`, nurseID, now)
}

func (r *subscriptionRepository) FindLatestForNurse(ctx context.Context, nurseID uuid.UUID) (*entity.NurseSubscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM nurse_subscriptions
		WHERE nurse_id = $1
		ORDER BY created_at DESC
		LIMIT 1`
	return r.findOne(ctx, "find latest subscription", query, nurseID)
}

func (r *subscriptionRepository) HasTrial(ctx context.Context, nurseID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM nurse_subscriptions WHERE nurse_id = $1 AND trial_ends_at IS NOT NULL)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, nurseID).Scan(&exists); err != nil {
		r.log.Error("Failed to check trial history",
			zap.Error(err),
			zap.String("nurse_id", nurseID.String()),
		)
		return false, fmt.Errorf("check trial history: %w", err)
	}

	return exists, nil
}

func (r *subscriptionRepository) FindByTokenForUpdate(ctx context.Context, token string) (*entity.NurseSubscription, error) {
	byOrder := `SELECT ` + subscriptionColumns + ` FROM nurse_subscriptions WHERE order_id = $1 FOR UPDATE`
	sub, err := r.findOne(ctx, "find subscription by order id", byOrder, token)
	if err != nil || sub != nil {
		return sub, err
	}

	byProvider := `SELECT ` + subscriptionColumns + ` FROM nurse_subscriptions WHERE provider_subscription_id = $1 FOR UPDATE`
	sub, err = r.findOne(ctx, "find subscription by provider id", byProvider, token)
	if err != nil || sub != nil {
		return sub, err
	}

	id, parseErr := uuid.Parse(token)
	if parseErr != nil {
		return nil, nil
	}
	byID := `SELECT ` + subscriptionColumns + ` FROM nurse_subscriptions WHERE id = $1 FOR UPDATE`
	return r.findOne(ctx, "find subscription by id", byID, id)
}

func (r *subscriptionRepository) Update(ctx context.Context, sub *entity.NurseSubscription) error {
	query := `
		UPDATE nurse_subscriptions
		SET plan = $2, status = $3, amount = $4, currency = $5, booking_limit = $6, bookings_used = $7,
		    start_date = $8, end_date = $9, trial_ends_at = $10, next_billing_date = $11,
		    last_payment_date = $12, last_payment_amount = $13, failed_payments = $14, cancelled_at = $15,
		    order_id = $16, provider_subscription_id = $17, updated_at = $18
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query,
		sub.ID,
		sub.Plan,
		sub.Status,
		sub.Amount,
		sub.Currency,
		sub.BookingLimit,
		sub.BookingsUsed,
		sub.StartDate,
		sub.EndDate,
		sub.TrialEndsAt,
		sub.NextBillingDate,
		sub.LastPaymentDate,
		sub.LastPaymentAmount,
		sub.FailedPayments,
		sub.CancelledAt,
		sub.OrderID,
		sub.ProviderSubscriptionID,
		sub.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to update subscription",
			zap.Error(err),
			zap.String("subscription_id", sub.ID.String()),
		)
		return fmt.Errorf("update subscription %s: %w", sub.ID, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("update subscription %s: not found", sub.ID)
	}

	return nil
}

func (r *subscriptionRepository) IncrementUsage(ctx context.Context, id uuid.UUID, now time.Time) (int, error) {
	query := `
		UPDATE nurse_subscriptions
		SET bookings_used = bookings_used + 1, updated_at = $2
		WHERE id = $1
		  AND (booking_limit = -1 OR bookings_used < booking_limit)
		RETURNING bookings_used
	`

	var used int
	err := r.db.QueryRow(ctx, query, id, now).Scan(&used)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("increment usage on %s: %w", id, ErrConflict)
	}
	if err != nil {
		r.log.Error("Failed to increment usage",
			zap.Error(err),
			zap.String("subscription_id", id.String()),
		)
		return 0, fmt.Errorf("increment usage on %s: %w", id, err)
	}

	return used, nil
}

func (r *subscriptionRepository) CancelOtherCurrent(ctx context.Context, nurseID, keepID uuid.UUID, now time.Time) (int64, error) {
	query := `
		UPDATE nurse_subscriptions
		SET status = 'CANCELLED', cancelled_at = $3, updated_at = $3
		WHERE nurse_id = $1 AND id <> $2 AND status IN ('ACTIVE', 'TRIAL')
	`

	result, err := r.db.Exec(ctx, query, nurseID, keepID, now)
	if err != nil {
		r.log.Error("Failed to cancel superseded subscriptions",
			zap.Error(err),
			zap.String("nurse_id", nurseID.String()),
		)
		return 0, fmt.Errorf("cancel superseded subscriptions: %w", err)
	}

	return result.RowsAffected(), nil
}

func (r *subscriptionRepository) ResetMonthlyBookings(ctx context.Context, now time.Time, period time.Duration) (int64, error) {
	query := `
		UPDATE nurse_subscriptions
		SET bookings_used = 0, next_billing_date = next_billing_date + make_interval(days => $2), updated_at = $1
		WHERE status = 'ACTIVE' AND next_billing_date <= $1
	`

	result, err := r.db.Exec(ctx, query, now, int(period/(24*time.Hour)))
	if err != nil {
		r.log.Error("Failed to reset monthly bookings", zap.Error(err))
		return 0, fmt.Errorf("reset monthly bookings: %w", err)
	}

	return result.RowsAffected(), nil
}

func (r *subscriptionRepository) ExpireSubscriptions(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE nurse_subscriptions
		SET status = 'EXPIRED', updated_at = $1
		WHERE status IN ('ACTIVE', 'TRIAL') AND end_date < $1
	`

	result, err := r.db.Exec(ctx, query, now)
	if err != nil {
		r.log.Error("Failed to expire subscriptions", zap.Error(err))
		return 0, fmt.Errorf("expire subscriptions: %w", err)
	}

	return result.RowsAffected(), nil
}
