package entity

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusPending    BookingStatus = "PENDING"
	BookingStatusConfirmed  BookingStatus = "CONFIRMED"
	BookingStatusInProgress BookingStatus = "IN_PROGRESS"
	BookingStatusCompleted  BookingStatus = "COMPLETED"
	BookingStatusCancelled  BookingStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition may leave the status.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled
}

// Booking is a single home visit request. Sub-phases of IN_PROGRESS are
// derived from which timestamps are set.
type Booking struct {
	Base
	PatientID   uuid.UUID     `db:"patient_id"`
	NurseID     *uuid.UUID    `db:"nurse_id"`
	DoctorID    *uuid.UUID    `db:"doctor_id"`
	ServiceType string        `db:"service_type"`
	ScheduledAt time.Time     `db:"scheduled_at"`
	Address     string        `db:"address"`
	Notes       *string       `db:"notes"`
	Status      BookingStatus `db:"status"`

	NurseArrivedAt     *time.Time `db:"nurse_arrived_at"`
	ArrivalConfirmedAt *time.Time `db:"arrival_confirmed_at"`
	ServiceStartedAt   *time.Time `db:"service_started_at"`
	ServiceEndedAt     *time.Time `db:"service_ended_at"`
	CompletedAt        *time.Time `db:"completed_at"`

	ActualDuration *int   `db:"actual_duration"` // minutes
	ActualCost     *int64 `db:"actual_cost"`

	Version int64 `db:"version"`
}

// IsAssignedTo reports whether nurseID is the booking's nurse.
func (b *Booking) IsAssignedTo(nurseID uuid.UUID) bool {
	return b.NurseID != nil && *b.NurseID == nurseID
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (b *Booking) Clone() *Booking {
	c := *b
	c.NurseID = cloneUUID(b.NurseID)
	c.DoctorID = cloneUUID(b.DoctorID)
	c.Notes = cloneString(b.Notes)
	c.NurseArrivedAt = cloneTime(b.NurseArrivedAt)
	c.ArrivalConfirmedAt = cloneTime(b.ArrivalConfirmedAt)
	c.ServiceStartedAt = cloneTime(b.ServiceStartedAt)
	c.ServiceEndedAt = cloneTime(b.ServiceEndedAt)
	c.CompletedAt = cloneTime(b.CompletedAt)
	if b.ActualDuration != nil {
		v := *b.ActualDuration
		c.ActualDuration = &v
	}
	if b.ActualCost != nil {
		v := *b.ActualCost
		c.ActualCost = &v
	}
	return &c
}

func cloneUUID(v *uuid.UUID) *uuid.UUID {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
