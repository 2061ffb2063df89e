package memory

import (
	"context"
	"fmt"
	"sort"

	"homecare-booking/internal/data/entity"
	"homecare-booking/internal/data/repository"

	"github.com/google/uuid"
)

type bookingRepo struct{ g guard }

func (r bookingRepo) Create(_ context.Context, booking *entity.Booking) error {
	var err error
	r.g.with(func(st *state) {
		for _, b := range st.bookings {
			if b.ID == booking.ID {
				err = fmt.Errorf("create booking %s: duplicate id", booking.ID)
				return
			}
		}
		st.bookings = append(st.bookings, booking.Clone())
	})
	return err
}

func (r bookingRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Booking, error) {
	var out *entity.Booking
	r.g.with(func(st *state) {
		if b := findBooking(st, id); b != nil {
			out = b.Clone()
		}
	})
	return out, nil
}

func findBooking(st *state, id uuid.UUID) *entity.Booking {
	for _, b := range st.bookings {
		if b.ID == id {
			return b
		}
	}
	return nil
}

func matches(b *entity.Booking, f repository.BookingFilter) bool {
	if f.PatientID != nil && b.PatientID != *f.PatientID {
		return false
	}
	if f.NurseID != nil && (b.NurseID == nil || *b.NurseID != *f.NurseID) {
		return false
	}
	if f.DoctorID != nil && (b.DoctorID == nil || *b.DoctorID != *f.DoctorID) {
		return false
	}
	if f.Status != nil && b.Status != *f.Status {
		return false
	}
	return true
}

func (r bookingRepo) FindByFilter(_ context.Context, filter repository.BookingFilter, limit, offset int) ([]*entity.Booking, error) {
	var out []*entity.Booking
	r.g.with(func(st *state) {
		var hits []*entity.Booking
		for i := len(st.bookings) - 1; i >= 0; i-- {
			if matches(st.bookings[i], filter) {
				hits = append(hits, st.bookings[i])
			}
		}
		sort.SliceStable(hits, func(i, j int) bool {
			return hits[i].CreatedAt.After(hits[j].CreatedAt)
		})
		for i := offset; i < len(hits) && len(out) < limit; i++ {
			out = append(out, hits[i].Clone())
		}
	})
	return out, nil
}

func (r bookingRepo) CountByFilter(_ context.Context, filter repository.BookingFilter) (int64, error) {
	var n int64
	r.g.with(func(st *state) {
		for _, b := range st.bookings {
			if matches(b, filter) {
				n++
			}
		}
	})
	return n, nil
}

func (r bookingRepo) Update(_ context.Context, booking *entity.Booking, expectedVersion int64) error {
	var err error
	r.g.with(func(st *state) {
		stored := findBooking(st, booking.ID)
		if stored == nil || stored.Version != expectedVersion {
			err = fmt.Errorf("update booking %s: %w", booking.ID, repository.ErrConflict)
			return
		}
		next := booking.Clone()
		next.Version = expectedVersion + 1
		// identity and request fields are immutable
		next.PatientID = stored.PatientID
		next.DoctorID = stored.DoctorID
		next.ServiceType = stored.ServiceType
		next.ScheduledAt = stored.ScheduledAt
		next.Address = stored.Address
		next.Notes = stored.Notes
		next.CreatedAt = stored.CreatedAt
		*stored = *next
	})
	if err == nil {
		booking.Version = expectedVersion + 1
	}
	return err
}
