package usecase

import (
	"context"
	"fmt"
	"time"

	"homecare-booking/internal/data/entity"
	"homecare-booking/internal/data/repository"
	"homecare-booking/internal/dto/request"
	"homecare-booking/internal/dto/response"
	"homecare-booking/pkg/utils"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// BillingPeriod is the length of one paid subscription period.
const BillingPeriod = 30 * 24 * time.Hour

type SubscriptionService interface {
	GetStatus(ctx context.Context, actor Actor) (*response.SubscriptionStatusResponse, error)
	GetQuota(ctx context.Context, actor Actor) (*response.QuotaResponse, error)
	ListPlans(ctx context.Context) []response.PlanResponse
	StartTrial(ctx context.Context, actor Actor) (*response.SubscriptionResponse, error)
	Checkout(ctx context.Context, actor Actor, req *request.CheckoutRequest) (*response.CheckoutResponse, error)
	ChangePlan(ctx context.Context, actor Actor, req *request.ChangePlanRequest) (*response.CheckoutResponse, error)
	Cancel(ctx context.Context, actor Actor) (*response.SubscriptionResponse, error)
}

type subscriptionService struct {
	repo    *repository.Repository
	quota   *quotaGuard
	cache   *statusCache
	gateway PaymentGateway
	clock   clockwork.Clock
	payment utils.PaymentConfig
	trial   time.Duration
	log     *zap.Logger
}

func NewSubscriptionService(repo *repository.Repository, gateway PaymentGateway, cache StatusCache, clock clockwork.Clock, config *utils.Config, log *zap.Logger) SubscriptionService {
	sc := newStatusCache(cache, log)
	return &subscriptionService{
		repo:    repo,
		quota:   newQuotaGuard(repo, sc, clock, log),
		cache:   sc,
		gateway: gateway,
		clock:   clock,
		payment: config.Payment,
		trial:   time.Duration(config.Subscription.TrialDays) * 24 * time.Hour,
		log:     log.With(zap.String("service", "subscription")),
	}
}

func requireNurseRole(actor Actor) error {
	if actor.Role != entity.RoleNurse {
		return fmt.Errorf("subscriptions are for nurses only: %w", ErrForbidden)
	}
	return nil
}

func (s *subscriptionService) GetStatus(ctx context.Context, actor Actor) (*response.SubscriptionStatusResponse, error) {
	if err := requireNurseRole(actor); err != nil {
		return nil, err
	}
	if cached := s.cache.get(ctx, actor.ID); cached != nil {
		return cached, nil
	}

	now := s.clock.Now()
	current, err := s.repo.Subscription.FindCurrentForNurse(ctx, actor.ID, now)
	if err != nil {
		return nil, fmt.Errorf("load current subscription: %w", err)
	}

	shown := current
	if shown == nil {
		shown, err = s.repo.Subscription.FindLatestForNurse(ctx, actor.ID)
		if err != nil {
			return nil, fmt.Errorf("load latest subscription: %w", err)
		}
	}

	status := &response.SubscriptionStatusResponse{Quota: decide(current, now).ToResponse()}
	if shown != nil {
		status.Subscription = response.SubscriptionToResponse(shown)
	}

	s.cache.set(ctx, actor.ID, status)
	return status, nil
}

func (s *subscriptionService) GetQuota(ctx context.Context, actor Actor) (*response.QuotaResponse, error) {
	if err := requireNurseRole(actor); err != nil {
		return nil, err
	}

	decision, err := s.quota.CanAcceptBooking(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	resp := decision.ToResponse()
	return &resp, nil
}

func (s *subscriptionService) ListPlans(_ context.Context) []response.PlanResponse {
	out := make([]response.PlanResponse, 0, len(plans))
	for _, p := range Plans() {
		out = append(out, response.PlanResponse{
			Name:         p.Name,
			BookingLimit: p.BookingLimit,
			PriceMonthly: p.PriceMonthly,
			Currency:     s.payment.Currency,
		})
	}
	return out
}

func (s *subscriptionService) StartTrial(ctx context.Context, actor Actor) (*response.SubscriptionResponse, error) {
	if err := requireNurseRole(actor); err != nil {
		return nil, err
	}

	basic, err := LookupPlan(PlanBasic)
	if err != nil {
		return nil, err
	}

	var trial *entity.NurseSubscription
	err = s.repo.InTx(ctx, func(tx *repository.Repository) error {
		now := s.clock.Now()
		current, err := tx.Subscription.FindCurrentForNurseForUpdate(ctx, actor.ID, now)
		if err != nil {
			return err
		}
		if current != nil {
			return fmt.Errorf("nurse already has a %s subscription: %w", current.Status, ErrPreconditionFailed)
		}

		used, err := tx.Subscription.HasTrial(ctx, actor.ID)
		if err != nil {
			return err
		}
		if used {
			return fmt.Errorf("trial already used: %w", ErrPreconditionFailed)
		}

		start := now
		end := now.Add(s.trial)
		trial = &entity.NurseSubscription{
			Base: entity.Base{
				ID:        uuid.New(),
				CreatedAt: now,
				UpdatedAt: now,
			},
			NurseID:      actor.ID,
			Plan:         basic.Name,
			Status:       entity.SubscriptionStatusTrial,
			Currency:     s.payment.Currency,
			BookingLimit: basic.BookingLimit,
			StartDate:    &start,
			EndDate:      &end,
			TrialEndsAt:  &end,
		}
		return tx.Subscription.Create(ctx, trial)
	})
	if err != nil {
		s.log.Warn("Trial not started", zap.Error(err), zap.String("nurse_id", actor.ID.String()))
		return nil, err
	}

	s.cache.invalidate(ctx, actor.ID)
	s.log.Info("Trial started",
		zap.String("subscription_id", trial.ID.String()),
		zap.String("nurse_id", actor.ID.String()),
		zap.Time("trial_ends_at", *trial.TrialEndsAt),
	)
	return response.SubscriptionToResponse(trial), nil
}

func (s *subscriptionService) Checkout(ctx context.Context, actor Actor, req *request.CheckoutRequest) (*response.CheckoutResponse, error) {
	if err := requireNurseRole(actor); err != nil {
		return nil, err
	}
	if err := validate(req); err != nil {
		return nil, err
	}
	return s.checkout(ctx, actor, req.Plan)
}

func (s *subscriptionService) ChangePlan(ctx context.Context, actor Actor, req *request.ChangePlanRequest) (*response.CheckoutResponse, error) {
	if err := requireNurseRole(actor); err != nil {
		return nil, err
	}
	if err := validate(req); err != nil {
		return nil, err
	}

	current, err := s.repo.Subscription.FindCurrentForNurse(ctx, actor.ID, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("load current subscription: %w", err)
	}
	if current == nil {
		return nil, fmt.Errorf("no subscription to change: %w", ErrPreconditionFailed)
	}
	if current.Plan == req.Plan && current.Status == entity.SubscriptionStatusActive {
		return nil, fmt.Errorf("already on plan %s: %w", req.Plan, ErrPreconditionFailed)
	}

	// the current subscription is superseded once the new one activates
	return s.checkout(ctx, actor, req.Plan)
}

// checkout opens a provider charge and records a PENDING subscription
// correlated to it.
func (s *subscriptionService) checkout(ctx context.Context, actor Actor, planName string) (*response.CheckoutResponse, error) {
	plan, err := LookupPlan(planName)
	if err != nil {
		return nil, err
	}

	nurse, err := s.repo.User.FindByID(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("load nurse %s: %w", actor.ID, err)
	}
	if nurse == nil {
		return nil, fmt.Errorf("nurse %s: %w", actor.ID, ErrNotFound)
	}

	now := s.clock.Now()
	sub := &entity.NurseSubscription{
		Base: entity.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		NurseID:      actor.ID,
		Plan:         plan.Name,
		Status:       entity.SubscriptionStatusPending,
		Amount:       plan.PriceMonthly,
		Currency:     s.payment.Currency,
		BookingLimit: plan.BookingLimit,
	}

	charge, err := s.gateway.CreateSubscriptionCharge(ctx, ChargeRequest{
		SubscriptionID: sub.ID.String(),
		Plan:           plan.Name,
		Amount:         plan.PriceMonthly,
		Currency:       s.payment.Currency,
		CustomerEmail:  nurse.Email,
		SuccessURL:     s.payment.SuccessURL,
		CancelURL:      s.payment.CancelURL,
	})
	if err != nil {
		s.log.Error("Failed to create subscription charge",
			zap.Error(err),
			zap.String("nurse_id", actor.ID.String()),
			zap.String("plan", plan.Name),
		)
		return nil, fmt.Errorf("create subscription charge: %w", err)
	}

	sub.OrderID = &charge.Token
	if charge.ProviderSubscriptionID != "" {
		sub.ProviderSubscriptionID = &charge.ProviderSubscriptionID
	}

	if err := s.repo.Subscription.Create(ctx, sub); err != nil {
		s.log.Error("Failed to record pending subscription", zap.Error(err), zap.String("order_id", charge.Token))
		if cancelErr := s.gateway.CancelCharge(ctx, charge.Token); cancelErr != nil {
			s.log.Error("Failed to cancel orphaned charge", zap.Error(cancelErr), zap.String("order_id", charge.Token))
		}
		return nil, fmt.Errorf("record subscription: %w", err)
	}

	s.cache.invalidate(ctx, actor.ID)
	s.log.Info("Checkout opened",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("nurse_id", actor.ID.String()),
		zap.String("plan", plan.Name),
		zap.String("order_id", charge.Token),
	)

	return &response.CheckoutResponse{
		Subscription: response.SubscriptionToResponse(sub),
		CheckoutURL:  charge.CheckoutURL,
	}, nil
}

// Cancel stops billing at the provider and then marks the subscription
// CANCELLED. The provider call runs before the row is locked.
func (s *subscriptionService) Cancel(ctx context.Context, actor Actor) (*response.SubscriptionResponse, error) {
	if err := requireNurseRole(actor); err != nil {
		return nil, err
	}

	current, err := s.repo.Subscription.FindCurrentForNurse(ctx, actor.ID, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("load current subscription: %w", err)
	}
	if current == nil {
		return nil, fmt.Errorf("no active subscription: %w", ErrNotFound)
	}

	token := providerToken(current)
	if token != "" {
		if err := s.gateway.CancelCharge(ctx, token); err != nil {
			s.log.Warn("Subscription not cancelled",
				zap.Error(err),
				zap.String("nurse_id", actor.ID.String()),
				zap.String("token", token),
			)
			return nil, fmt.Errorf("cancel provider charge %s: %w", token, err)
		}
	}

	var cancelled *entity.NurseSubscription
	err = s.repo.InTx(ctx, func(tx *repository.Repository) error {
		now := s.clock.Now()

		var (
			sub *entity.NurseSubscription
			err error
		)
		if token != "" {
			sub, err = tx.Subscription.FindByTokenForUpdate(ctx, token)
		} else {
			sub, err = tx.Subscription.FindCurrentForNurseForUpdate(ctx, actor.ID, now)
		}
		if err != nil {
			return err
		}
		if sub == nil || sub.ID != current.ID {
			return fmt.Errorf("subscription %s changed while cancelling: %w", current.ID, ErrPreconditionFailed)
		}

		cancelled = sub
		if sub.Status.IsTerminal() {
			return nil
		}

		at := now
		sub.Status = entity.SubscriptionStatusCancelled
		sub.CancelledAt = &at
		sub.UpdatedAt = now
		return tx.Subscription.Update(ctx, sub)
	})
	if err != nil {
		s.log.Error("Failed to record cancellation", zap.Error(err), zap.String("nurse_id", actor.ID.String()))
		return nil, err
	}

	s.cache.invalidate(ctx, actor.ID)
	s.log.Info("Subscription cancelled",
		zap.String("subscription_id", cancelled.ID.String()),
		zap.String("nurse_id", actor.ID.String()),
		zap.String("status", string(cancelled.Status)),
	)
	return response.SubscriptionToResponse(cancelled), nil
}

// providerToken prefers the recurring subscription id over the checkout token.
func providerToken(sub *entity.NurseSubscription) string {
	if sub.ProviderSubscriptionID != nil && *sub.ProviderSubscriptionID != "" {
		return *sub.ProviderSubscriptionID
	}
	if sub.OrderID != nil {
		return *sub.OrderID
	}
	return ""
}
