package usecase

import (
	"fmt"

	"homecare-booking/internal/data/entity"
)

const (
	PlanBasic   = "basic"
	PlanGrowth  = "growth"
	PlanPremium = "premium"
)

// Plan is one row of the subscription price list. PriceMonthly is in the
// smallest currency unit.
type Plan struct {
	Name         string
	BookingLimit int
	PriceMonthly int64
}

var plans = []Plan{
	{Name: PlanBasic, BookingLimit: 10, PriceMonthly: 2900},
	{Name: PlanGrowth, BookingLimit: 30, PriceMonthly: 5900},
	{Name: PlanPremium, BookingLimit: entity.UnlimitedBookings, PriceMonthly: 9900},
}

func Plans() []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}

func LookupPlan(name string) (Plan, error) {
	for _, p := range plans {
		if p.Name == name {
			return p, nil
		}
	}
	return Plan{}, fmt.Errorf("%w: unknown plan %q", ErrValidation, name)
}

// SuggestUpgrade names the tier offered when a plan runs out of bookings.
func SuggestUpgrade(plan string) string {
	if plan == PlanBasic {
		return PlanGrowth
	}
	return PlanPremium
}
