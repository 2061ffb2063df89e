package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"homecare-booking/internal/data/entity"
	"homecare-booking/internal/data/repository"
	"homecare-booking/internal/dto/response"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const (
	ReasonNoActiveSubscription = "no active subscription"
	ReasonTrialExpired         = "trial expired"
	ReasonLimitReached         = "limit reached"
)

// QuotaDecision is the guard's verdict on whether a nurse may accept one
// more booking.
type QuotaDecision struct {
	Allowed          bool
	Reason           string
	Plan             string
	BookingsUsed     int
	BookingLimit     int
	SuggestedUpgrade string

	subscription *entity.NurseSubscription
}

func (d *QuotaDecision) ToResponse() response.QuotaResponse {
	resp := response.QuotaResponse{
		Allowed:      d.Allowed,
		Reason:       d.Reason,
		Plan:         d.Plan,
		BookingsUsed: d.BookingsUsed,
		BookingLimit: d.BookingLimit,
	}
	if d.subscription != nil && d.BookingLimit != entity.UnlimitedBookings {
		remaining := max(d.BookingLimit-d.BookingsUsed, 0)
		resp.Remaining = &remaining
	}
	if d.SuggestedUpgrade != "" {
		upgrade := d.SuggestedUpgrade
		resp.SuggestedUpgrade = &upgrade
	}
	return resp
}

type QuotaGuard interface {
	CanAcceptBooking(ctx context.Context, nurseID uuid.UUID) (*QuotaDecision, error)
	IncrementUsage(ctx context.Context, nurseID uuid.UUID) (int, error)
}

type quotaGuard struct {
	repo  *repository.Repository
	cache *statusCache
	clock clockwork.Clock
	log   *zap.Logger
}

func NewQuotaGuard(repo *repository.Repository, cache StatusCache, clock clockwork.Clock, log *zap.Logger) QuotaGuard {
	return newQuotaGuard(repo, newStatusCache(cache, log), clock, log)
}

func newQuotaGuard(repo *repository.Repository, cache *statusCache, clock clockwork.Clock, log *zap.Logger) *quotaGuard {
	return &quotaGuard{
		repo:  repo,
		cache: cache,
		clock: clock,
		log:   log.With(zap.String("service", "quota")),
	}
}

// decide is the read-only part of the guard.
func decide(sub *entity.NurseSubscription, now time.Time) *QuotaDecision {
	if sub == nil {
		return &QuotaDecision{Reason: ReasonNoActiveSubscription}
	}

	d := &QuotaDecision{
		Plan:         sub.Plan,
		BookingsUsed: sub.BookingsUsed,
		BookingLimit: sub.BookingLimit,
		subscription: sub,
	}

	switch {
	case sub.Status == entity.SubscriptionStatusTrial && sub.TrialEndsAt != nil && sub.TrialEndsAt.Before(now):
		d.Reason = ReasonTrialExpired
	case !sub.HasCapacity():
		d.Reason = ReasonLimitReached
		d.SuggestedUpgrade = SuggestUpgrade(sub.Plan)
	default:
		d.Allowed = true
	}
	return d
}

// evaluate runs the guard against a locked subscription row and pauses the
// subscription when the decision is a denial. Must run inside a transaction.
func (g *quotaGuard) evaluate(ctx context.Context, tx *repository.Repository, nurseID uuid.UUID, now time.Time) (*QuotaDecision, error) {
	sub, err := tx.Subscription.FindCurrentForNurseForUpdate(ctx, nurseID, now)
	if err != nil {
		return nil, fmt.Errorf("load subscription for nurse %s: %w", nurseID, err)
	}

	d := decide(sub, now)
	if d.Allowed || sub == nil {
		return d, nil
	}

	sub.Status = entity.SubscriptionStatusPaused
	sub.UpdatedAt = now
	if err := tx.Subscription.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("pause subscription %s: %w", sub.ID, err)
	}

	g.log.Warn("Subscription paused",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("nurse_id", nurseID.String()),
		zap.String("reason", d.Reason),
		zap.Int("bookings_used", sub.BookingsUsed),
		zap.Int("booking_limit", sub.BookingLimit),
	)
	return d, nil
}

// consume increments usage on the subscription a positive decision was
// made against. Must run in the same transaction as evaluate.
func (g *quotaGuard) consume(ctx context.Context, tx *repository.Repository, d *QuotaDecision, now time.Time) error {
	used, err := tx.Subscription.IncrementUsage(ctx, d.subscription.ID, now)
	if errors.Is(err, repository.ErrConflict) {
		return &QuotaError{Decision: &QuotaDecision{
			Reason:           ReasonLimitReached,
			Plan:             d.Plan,
			BookingsUsed:     d.BookingsUsed,
			BookingLimit:     d.BookingLimit,
			SuggestedUpgrade: SuggestUpgrade(d.Plan),
		}}
	}
	if err != nil {
		return err
	}
	d.BookingsUsed = used
	return nil
}

func (g *quotaGuard) CanAcceptBooking(ctx context.Context, nurseID uuid.UUID) (*QuotaDecision, error) {
	var decision *QuotaDecision
	err := g.repo.InTx(ctx, func(tx *repository.Repository) error {
		d, err := g.evaluate(ctx, tx, nurseID, g.clock.Now())
		decision = d
		return err
	})
	if err != nil {
		g.log.Error("Failed to evaluate quota", zap.Error(err), zap.String("nurse_id", nurseID.String()))
		return nil, err
	}

	if !decision.Allowed && decision.subscription != nil {
		g.cache.invalidate(ctx, nurseID)
	}
	return decision, nil
}

func (g *quotaGuard) IncrementUsage(ctx context.Context, nurseID uuid.UUID) (int, error) {
	var used int
	err := g.repo.InTx(ctx, func(tx *repository.Repository) error {
		now := g.clock.Now()
		sub, err := tx.Subscription.FindCurrentForNurseForUpdate(ctx, nurseID, now)
		if err != nil {
			return err
		}
		if sub == nil {
			return &QuotaError{Decision: &QuotaDecision{Reason: ReasonNoActiveSubscription}}
		}
		d := decide(sub, now)
		if err := g.consume(ctx, tx, d, now); err != nil {
			return err
		}
		used = d.BookingsUsed
		return nil
	})
	if err != nil {
		return 0, err
	}

	g.cache.invalidate(ctx, nurseID)
	return used, nil
}

// statusCache wraps the cache collaborator so that cache failures are
// logged and never fail the request.
type statusCache struct {
	backend StatusCache
	log     *zap.Logger
}

func newStatusCache(backend StatusCache, log *zap.Logger) *statusCache {
	return &statusCache{backend: backend, log: log.With(zap.String("service", "status_cache"))}
}

func statusKey(nurseID uuid.UUID) string {
	return "subscription:status:" + nurseID.String()
}

func (c *statusCache) get(ctx context.Context, nurseID uuid.UUID) *response.SubscriptionStatusResponse {
	if c.backend == nil {
		return nil
	}
	data, err := c.backend.Get(ctx, statusKey(nurseID))
	if err != nil {
		c.log.Warn("Status cache read failed", zap.Error(err))
		return nil
	}
	if data == nil {
		return nil
	}
	var status response.SubscriptionStatusResponse
	if err := json.Unmarshal(data, &status); err != nil {
		c.log.Warn("Status cache entry unreadable", zap.Error(err))
		return nil
	}
	return &status
}

func (c *statusCache) set(ctx context.Context, nurseID uuid.UUID, status *response.SubscriptionStatusResponse) {
	if c.backend == nil {
		return
	}
	data, err := json.Marshal(status)
	if err != nil {
		c.log.Warn("Status cache encode failed", zap.Error(err))
		return
	}
	if err := c.backend.Set(ctx, statusKey(nurseID), data); err != nil {
		c.log.Warn("Status cache write failed", zap.Error(err))
	}
}

func (c *statusCache) invalidate(ctx context.Context, nurseID uuid.UUID) {
	if c.backend == nil {
		return
	}
	if err := c.backend.Delete(ctx, statusKey(nurseID)); err != nil {
		c.log.Warn("Status cache invalidation failed", zap.Error(err), zap.String("nurse_id", nurseID.String()))
	}
}

func (c *statusCache) flush(ctx context.Context) {
	if c.backend == nil {
		return
	}
	if err := c.backend.Flush(ctx); err != nil {
		c.log.Warn("Status cache flush failed", zap.Error(err))
	}
}
