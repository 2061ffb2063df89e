package usecase

import (
	"testing"
	"time"

	"homecare-booking/internal/data/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowedTargets(t *testing.T) {
	assert.ElementsMatch(t,
		[]entity.BookingStatus{entity.BookingStatusConfirmed, entity.BookingStatusCancelled, entity.BookingStatusCompleted},
		AllowedTargets(entity.RoleNurse, entity.BookingStatusPending))
	assert.ElementsMatch(t,
		[]entity.BookingStatus{entity.BookingStatusCancelled, entity.BookingStatusCompleted},
		AllowedTargets(entity.RoleNurse, entity.BookingStatusConfirmed))
	assert.Equal(t, []entity.BookingStatus{entity.BookingStatusCancelled},
		AllowedTargets(entity.RolePatient, entity.BookingStatusConfirmed))
	assert.Empty(t, AllowedTargets(entity.RolePatient, entity.BookingStatusInProgress))
	assert.Empty(t, AllowedTargets(entity.RoleDoctor, entity.BookingStatusPending))
	assert.Empty(t, AllowedTargets(entity.RoleAdmin, entity.BookingStatusPending))
}

func TestAllowedTargets_ReturnsCopy(t *testing.T) {
	targets := AllowedTargets(entity.RolePatient, entity.BookingStatusPending)
	targets[0] = entity.BookingStatusCompleted

	assert.Equal(t, []entity.BookingStatus{entity.BookingStatusCancelled},
		AllowedTargets(entity.RolePatient, entity.BookingStatusPending))
}

func TestCheckTransition_NurseConfirmedToConfirmed(t *testing.T) {
	nurse := Actor{ID: uuid.New(), Role: entity.RoleNurse}
	b := &entity.Booking{NurseID: &nurse.ID, Status: entity.BookingStatusConfirmed}

	assert.ErrorIs(t, checkTransition(nurse, b, entity.BookingStatusConfirmed), ErrInvalidTransition)
}

func TestStamp(t *testing.T) {
	prev := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

	got, err := stamp(prev, prev, "service_started_at")
	require.NoError(t, err)
	assert.Equal(t, prev, *got)

	_, err = stamp(prev, prev.Add(-time.Nanosecond), "service_started_at")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestLastStamp(t *testing.T) {
	created := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	arrived := created.Add(time.Hour)
	b := &entity.Booking{NurseArrivedAt: &arrived}
	b.CreatedAt = created

	assert.Equal(t, arrived, lastStamp(b))
}
