package usecase

import (
	"fmt"
	"slices"
	"time"

	"homecare-booking/internal/data/entity"

	"github.com/google/uuid"
)

// ArrivalConfirmationWindow is how long a patient has to confirm a nurse's
// arrival. The bound is inclusive.
const ArrivalConfirmationWindow = 5 * time.Minute

// Actor is the authenticated caller of a booking operation.
type Actor struct {
	ID   uuid.UUID
	Role entity.UserRole
}

// transitions lists, per role and current status, the statuses that role may
// move a booking to through the generic status update. Roles missing here
// may not transition bookings at all.
var transitions = map[entity.UserRole]map[entity.BookingStatus][]entity.BookingStatus{
	entity.RoleNurse: {
		entity.BookingStatusPending:   {entity.BookingStatusConfirmed, entity.BookingStatusCancelled, entity.BookingStatusCompleted},
		entity.BookingStatusConfirmed: {entity.BookingStatusCancelled, entity.BookingStatusCompleted},
	},
	entity.RolePatient: {
		entity.BookingStatusPending:   {entity.BookingStatusCancelled},
		entity.BookingStatusConfirmed: {entity.BookingStatusCancelled},
	},
}

// AllowedTargets returns the statuses role may move a booking in from to.
func AllowedTargets(role entity.UserRole, from entity.BookingStatus) []entity.BookingStatus {
	return slices.Clone(transitions[role][from])
}

// checkTransition applies role, ownership and status rules in that order.
func checkTransition(actor Actor, b *entity.Booking, target entity.BookingStatus) error {
	rows, ok := transitions[actor.Role]
	if !ok {
		return fmt.Errorf("role %s cannot change booking status: %w", actor.Role, ErrForbidden)
	}

	switch actor.Role {
	case entity.RolePatient:
		if b.PatientID != actor.ID {
			return fmt.Errorf("booking %s belongs to another patient: %w", b.ID, ErrForbidden)
		}
	case entity.RoleNurse:
		// an unassigned booking can only be claimed, not cancelled or completed
		if b.NurseID == nil && target != entity.BookingStatusConfirmed {
			return fmt.Errorf("booking %s is not assigned to nurse %s: %w", b.ID, actor.ID, ErrForbidden)
		}
		if b.NurseID != nil && *b.NurseID != actor.ID {
			return fmt.Errorf("booking %s is assigned to another nurse: %w", b.ID, ErrForbidden)
		}
	}

	if !slices.Contains(rows[b.Status], target) {
		return fmt.Errorf("%s cannot move booking %s from %s to %s: %w",
			actor.Role, b.ID, b.Status, target, ErrInvalidTransition)
	}

	if target == entity.BookingStatusCompleted && b.ServiceEndedAt == nil {
		return fmt.Errorf("booking %s cannot complete before the service is stopped: %w", b.ID, ErrPreconditionFailed)
	}

	return nil
}

// requireNurse checks that actor is the nurse assigned to b.
func requireNurse(actor Actor, b *entity.Booking) error {
	if actor.Role != entity.RoleNurse || !b.IsAssignedTo(actor.ID) {
		return fmt.Errorf("booking %s is not assigned to caller: %w", b.ID, ErrForbidden)
	}
	return nil
}

// requirePatient checks that actor is the patient who owns b.
func requirePatient(actor Actor, b *entity.Booking) error {
	if actor.Role != entity.RolePatient || b.PatientID != actor.ID {
		return fmt.Errorf("booking %s does not belong to caller: %w", b.ID, ErrForbidden)
	}
	return nil
}

func isParty(actor Actor, b *entity.Booking) bool {
	switch actor.Role {
	case entity.RoleAdmin:
		return true
	case entity.RolePatient:
		return b.PatientID == actor.ID
	case entity.RoleNurse:
		return b.IsAssignedTo(actor.ID)
	case entity.RoleDoctor:
		return b.DoctorID != nil && *b.DoctorID == actor.ID
	}
	return false
}

// stamp returns now as the next timestamp in the booking's sequence. A clock
// that runs backwards past the previous stamp is a defect.
func stamp(prev time.Time, now time.Time, field string) (*time.Time, error) {
	if now.Before(prev) {
		return nil, fmt.Errorf("%w: %s at %s precedes previous step at %s",
			ErrInvalidState, field, now.Format(time.RFC3339Nano), prev.Format(time.RFC3339Nano))
	}
	t := now
	return &t, nil
}

// lastStamp is the latest timestamp already recorded on b.
func lastStamp(b *entity.Booking) time.Time {
	last := b.CreatedAt
	for _, t := range []*time.Time{b.NurseArrivedAt, b.ArrivalConfirmedAt, b.ServiceStartedAt, b.ServiceEndedAt, b.CompletedAt} {
		if t != nil && t.After(last) {
			last = *t
		}
	}
	return last
}
