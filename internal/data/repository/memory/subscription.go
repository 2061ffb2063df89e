package memory

import (
	"context"
	"fmt"
	"time"

	"homecare-booking/internal/data/entity"
	"homecare-booking/internal/data/repository"

	"github.com/google/uuid"
)

type subscriptionRepo struct{ g guard }

func (r subscriptionRepo) Create(_ context.Context, sub *entity.NurseSubscription) error {
	r.g.with(func(st *state) {
		st.subs = append(st.subs, sub.Clone())
	})
	return nil
}

func (r subscriptionRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.NurseSubscription, error) {
	var out *entity.NurseSubscription
	r.g.with(func(st *state) {
		if s := findSub(st, func(s *entity.NurseSubscription) bool { return s.ID == id }); s != nil {
			out = s.Clone()
		}
	})
	return out, nil
}

// findSub scans newest first.
func findSub(st *state, pred func(*entity.NurseSubscription) bool) *entity.NurseSubscription {
	for i := len(st.subs) - 1; i >= 0; i-- {
		if pred(st.subs[i]) {
			return st.subs[i]
		}
	}
	return nil
}

func isCurrentAt(s *entity.NurseSubscription, now time.Time) bool {
	return s.Status.IsCurrent() && (s.EndDate == nil || !s.EndDate.Before(now))
}

func (r subscriptionRepo) FindCurrentForNurse(_ context.Context, nurseID uuid.UUID, now time.Time) (*entity.NurseSubscription, error) {
	var out *entity.NurseSubscription
	r.g.with(func(st *state) {
		s := findSub(st, func(s *entity.NurseSubscription) bool {
			return s.NurseID == nurseID && isCurrentAt(s, now)
		})
		if s != nil {
			out = s.Clone()
		}
	})
	return out, nil
}

func (r subscriptionRepo) FindCurrentForNurseForUpdate(ctx context.Context, nurseID uuid.UUID, now time.Time) (*entity.NurseSubscription, error) {
	return r.FindCurrentForNurse(ctx, nurseID, now)
}

func (r subscriptionRepo) FindLatestForNurse(_ context.Context, nurseID uuid.UUID) (*entity.NurseSubscription, error) {
	var out *entity.NurseSubscription
	r.g.with(func(st *state) {
		if s := findSub(st, func(s *entity.NurseSubscription) bool { return s.NurseID == nurseID }); s != nil {
			out = s.Clone()
		}
	})
	return out, nil
}

func (r subscriptionRepo) HasTrial(_ context.Context, nurseID uuid.UUID) (bool, error) {
	var found bool
	r.g.with(func(st *state) {
		found = findSub(st, func(s *entity.NurseSubscription) bool {
			return s.NurseID == nurseID && s.TrialEndsAt != nil
		}) != nil
	})
	return found, nil
}

func (r subscriptionRepo) FindByTokenForUpdate(_ context.Context, token string) (*entity.NurseSubscription, error) {
	var out *entity.NurseSubscription
	r.g.with(func(st *state) {
		preds := []func(*entity.NurseSubscription) bool{
			func(s *entity.NurseSubscription) bool { return s.OrderID != nil && *s.OrderID == token },
			func(s *entity.NurseSubscription) bool {
				return s.ProviderSubscriptionID != nil && *s.ProviderSubscriptionID == token
			},
			func(s *entity.NurseSubscription) bool { return s.ID.String() == token },
		}
		for _, pred := range preds {
			if s := findSub(st, pred); s != nil {
				out = s.Clone()
				return
			}
		}
	})
	return out, nil
}

func (r subscriptionRepo) Update(_ context.Context, sub *entity.NurseSubscription) error {
	var err error
	r.g.with(func(st *state) {
		stored := findSub(st, func(s *entity.NurseSubscription) bool { return s.ID == sub.ID })
		if stored == nil {
			err = fmt.Errorf("update subscription %s: not found", sub.ID)
			return
		}
		next := sub.Clone()
		next.NurseID = stored.NurseID
		next.CreatedAt = stored.CreatedAt
		*stored = *next
	})
	return err
}

func (r subscriptionRepo) IncrementUsage(_ context.Context, id uuid.UUID, now time.Time) (int, error) {
	var (
		used int
		err  error
	)
	r.g.with(func(st *state) {
		s := findSub(st, func(s *entity.NurseSubscription) bool { return s.ID == id })
		if s == nil || !s.HasCapacity() {
			err = fmt.Errorf("increment usage on %s: %w", id, repository.ErrConflict)
			return
		}
		s.BookingsUsed++
		s.UpdatedAt = now
		used = s.BookingsUsed
	})
	return used, err
}

func (r subscriptionRepo) CancelOtherCurrent(_ context.Context, nurseID, keepID uuid.UUID, now time.Time) (int64, error) {
	var n int64
	r.g.with(func(st *state) {
		for _, s := range st.subs {
			if s.NurseID == nurseID && s.ID != keepID && s.Status.IsCurrent() {
				at := now
				s.Status = entity.SubscriptionStatusCancelled
				s.CancelledAt = &at
				s.UpdatedAt = now
				n++
			}
		}
	})
	return n, nil
}

func (r subscriptionRepo) ResetMonthlyBookings(_ context.Context, now time.Time, period time.Duration) (int64, error) {
	var n int64
	r.g.with(func(st *state) {
		for _, s := range st.subs {
			if s.Status != entity.SubscriptionStatusActive || s.NextBillingDate == nil || s.NextBillingDate.After(now) {
				continue
			}
			next := s.NextBillingDate.Add(period)
			s.BookingsUsed = 0
			s.NextBillingDate = &next
			s.UpdatedAt = now
			n++
		}
	})
	return n, nil
}

func (r subscriptionRepo) ExpireSubscriptions(_ context.Context, now time.Time) (int64, error) {
	var n int64
	r.g.with(func(st *state) {
		for _, s := range st.subs {
			if s.Status.IsCurrent() && s.EndDate != nil && s.EndDate.Before(now) {
				s.Status = entity.SubscriptionStatusExpired
				s.UpdatedAt = now
				n++
			}
		}
	})
	return n, nil
}

type paymentEventRepo struct{ g guard }

func (r paymentEventRepo) Insert(_ context.Context, event *entity.PaymentEvent) (bool, error) {
	var inserted bool
	r.g.with(func(st *state) {
		if _, dup := st.events[event.Reference]; dup {
			return
		}
		cp := *event
		st.events[event.Reference] = &cp
		inserted = true
	})
	return inserted, nil
}
