package usecase

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
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

// Webhook outcomes reported back to the provider. All of them are
// acknowledged with 200.
const (
	WebhookApplied    = "applied"
	WebhookDuplicate  = "duplicate"
	WebhookUnresolved = "unresolved"
	WebhookIgnored    = "ignored"
)

var eventKinds = map[string]entity.PaymentEventKind{
	"subscription.activated":      entity.PaymentEventSuccess,
	"subscription.created":        entity.PaymentEventSuccess,
	"payment.succeeded":           entity.PaymentEventSuccess,
	"subscription.cancelled":      entity.PaymentEventFailure,
	"subscription.payment_failed": entity.PaymentEventFailure,
	"payment.failed":              entity.PaymentEventFailure,
}

var legacyStates = map[string]entity.PaymentEventKind{
	"PAID":      entity.PaymentEventSuccess,
	"FAILED":    entity.PaymentEventFailure,
	"CANCELLED": entity.PaymentEventFailure,
}

// ClassifyEvent maps a raw provider event to its canonical kind.
func ClassifyEvent(p *request.PaymentWebhookPayload) (entity.PaymentEventKind, bool) {
	if p.IsLegacy() {
		kind, ok := legacyStates[strings.ToUpper(p.State)]
		return kind, ok
	}
	kind, ok := eventKinds[p.Event]
	return kind, ok
}

// SignPayload returns the lowercase hex HMAC-SHA256 of body.
func SignPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

type WebhookService interface {
	HandlePaymentWebhook(ctx context.Context, body []byte, signature string) (*response.WebhookResponse, error)
}

type webhookService struct {
	repo          *repository.Repository
	cache         *statusCache
	clock         clockwork.Clock
	secret        string
	allowUnsigned bool
	log           *zap.Logger
}

func NewWebhookService(repo *repository.Repository, cache StatusCache, clock clockwork.Clock, config *utils.Config, log *zap.Logger) WebhookService {
	return &webhookService{
		repo:          repo,
		cache:         newStatusCache(cache, log),
		clock:         clock,
		secret:        config.Payment.WebhookSecret,
		allowUnsigned: config.Payment.WebhookAllowUnsignedLegacy,
		log:           log.With(zap.String("service", "webhook")),
	}
}

func (s *webhookService) verify(body []byte, signature string) error {
	if s.secret == "" {
		return fmt.Errorf("webhook secret not configured: %w", ErrInvalidSignature)
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return fmt.Errorf("malformed signature: %w", ErrInvalidSignature)
	}
	want, _ := hex.DecodeString(SignPayload(s.secret, body))
	if !hmac.Equal(got, want) {
		return fmt.Errorf("signature mismatch: %w", ErrInvalidSignature)
	}
	return nil
}

func (s *webhookService) HandlePaymentWebhook(ctx context.Context, body []byte, signature string) (*response.WebhookResponse, error) {
	if signature != "" {
		if err := s.verify(body, signature); err != nil {
			s.log.Warn("Webhook rejected", zap.Error(err))
			return nil, err
		}
	}

	var payload request.PaymentWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &ValidationError{Fields: map[string]string{"body": "Must be a JSON object"}}
	}

	if signature == "" && !(payload.IsLegacy() && s.allowUnsigned) {
		s.log.Warn("Unsigned webhook rejected", zap.Bool("legacy", payload.IsLegacy()))
		return nil, fmt.Errorf("missing signature: %w", ErrInvalidSignature)
	}

	kind, ok := ClassifyEvent(&payload)
	if !ok {
		s.log.Info("Webhook event ignored", zap.String("event", payload.Event), zap.String("state", payload.State))
		return &response.WebhookResponse{Outcome: WebhookIgnored}, nil
	}

	tokens := tokenCandidates(&payload)
	reference := transactionReference(&payload, body)

	var (
		outcome string
		applied *entity.NurseSubscription
	)
	err := s.repo.InTx(ctx, func(tx *repository.Repository) error {
		var sub *entity.NurseSubscription
		for _, token := range tokens {
			found, err := tx.Subscription.FindByTokenForUpdate(ctx, token)
			if err != nil {
				return err
			}
			if found != nil {
				sub = found
				break
			}
		}
		if sub == nil {
			outcome = WebhookUnresolved
			return nil
		}
		applied = sub

		now := s.clock.Now()
		inserted, err := tx.PaymentEvent.Insert(ctx, &entity.PaymentEvent{
			BaseSimple:     entity.BaseSimple{ID: uuid.New(), CreatedAt: now},
			SubscriptionID: &sub.ID,
			Reference:      reference,
			Kind:           kind,
			RawEvent:       string(body),
			Amount:         payload.Data.Amount,
		})
		if err != nil {
			return err
		}
		if !inserted {
			outcome = WebhookDuplicate
			return nil
		}
		if sub.Status.IsTerminal() {
			outcome = WebhookIgnored
			return nil
		}

		recordProviderSubscription(sub, payload.Data.SubscriptionID)
		switch kind {
		case entity.PaymentEventSuccess:
			applySuccess(sub, payload.Data.Amount, now)
		case entity.PaymentEventFailure:
			applyFailure(sub, now)
		}
		sub.UpdatedAt = now

		if err := tx.Subscription.Update(ctx, sub); err != nil {
			return err
		}
		if sub.Status == entity.SubscriptionStatusActive {
			if _, err := tx.Subscription.CancelOtherCurrent(ctx, sub.NurseID, sub.ID, now); err != nil {
				return err
			}
		}
		outcome = WebhookApplied
		return nil
	})
	if err != nil {
		s.log.Error("Failed to apply payment event", zap.Error(err), zap.String("reference", reference))
		return nil, err
	}

	resp := &response.WebhookResponse{Outcome: outcome}
	if applied == nil {
		s.log.Warn("Webhook token did not match any subscription",
			zap.Strings("tokens", tokens),
			zap.String("reference", reference),
		)
		return resp, nil
	}

	id := applied.ID.String()
	resp.SubscriptionID = &id
	s.cache.invalidate(ctx, applied.NurseID)
	s.log.Info("Payment event processed",
		zap.String("outcome", outcome),
		zap.String("kind", string(kind)),
		zap.String("reference", reference),
		zap.String("subscription_id", id),
		zap.String("status", string(applied.Status)),
	)
	return resp, nil
}

// applySuccess renews the subscription for one period. A renewal of a still
// running ACTIVE period extends from its end date, not from now.
func applySuccess(sub *entity.NurseSubscription, amount *int64, now time.Time) {
	base := now
	if sub.Status == entity.SubscriptionStatusActive && sub.EndDate != nil && sub.EndDate.After(now) {
		base = *sub.EndDate
	}
	end := base.Add(BillingPeriod)
	next := end
	paidAt := now

	paid := sub.Amount
	if amount != nil {
		paid = *amount
	}

	if sub.StartDate == nil {
		start := now
		sub.StartDate = &start
	}
	if plan, err := LookupPlan(sub.Plan); err == nil {
		sub.BookingLimit = plan.BookingLimit
	}
	sub.Status = entity.SubscriptionStatusActive
	sub.EndDate = &end
	sub.NextBillingDate = &next
	sub.LastPaymentDate = &paidAt
	sub.LastPaymentAmount = &paid
	sub.BookingsUsed = 0
	sub.FailedPayments = 0
}

// recordProviderSubscription keeps the provider's recurring subscription id
// once it is known, so renewals correlate on it and cancellation targets it
// instead of the checkout token.
func recordProviderSubscription(sub *entity.NurseSubscription, id string) {
	if id == "" || sub.ProviderSubscriptionID != nil {
		return
	}
	if sub.OrderID != nil && *sub.OrderID == id {
		return
	}
	sub.ProviderSubscriptionID = &id
}

func applyFailure(sub *entity.NurseSubscription, now time.Time) {
	sub.FailedPayments++
	if sub.FailedPayments >= 2 {
		at := now
		sub.Status = entity.SubscriptionStatusCancelled
		sub.CancelledAt = &at
		return
	}
	sub.Status = entity.SubscriptionStatusPaymentFailed
}

func tokenCandidates(p *request.PaymentWebhookPayload) []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range []string{p.Data.OrderID, p.Data.SubscriptionID, p.Data.ID, p.OrderID} {
		if t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// transactionReference falls back to a hash of the raw body, so deliveries
// differ only when the bodies do.
func transactionReference(p *request.PaymentWebhookPayload, body []byte) string {
	for _, ref := range []string{p.Data.TransactionID, p.Data.Reference, p.TransactionID, p.ID} {
		if ref != "" {
			return ref
		}
	}
	sum := sha256.Sum256(body)
	return "sha256:" + hex.EncodeToString(sum[:])
}
