package usecase

import (
	"fmt"
	"math"
	"time"
)

// Bill is the outcome of a finished visit.
type Bill struct {
	DurationMinutes int
	Cost            int64
}

// CalculateBill charges hourlyRate per started minute: the duration is
// rounded up to whole minutes, the cost to the nearest currency unit.
func CalculateBill(startedAt, endedAt time.Time, hourlyRate int64) (Bill, error) {
	if endedAt.Before(startedAt) {
		return Bill{}, fmt.Errorf("%w: service ended at %s before it started at %s",
			ErrInvalidState, endedAt.Format(time.RFC3339), startedAt.Format(time.RFC3339))
	}
	if hourlyRate < 0 {
		return Bill{}, fmt.Errorf("%w: negative hourly rate %d", ErrInvalidState, hourlyRate)
	}

	minutes := int(math.Ceil(endedAt.Sub(startedAt).Minutes()))
	cost := int64(math.Round(float64(hourlyRate) * float64(minutes) / 60))

	return Bill{DurationMinutes: minutes, Cost: cost}, nil
}
