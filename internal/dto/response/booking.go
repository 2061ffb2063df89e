package response

import (
	"time"

	"homecare-booking/internal/data/entity"
)

type BookingResponse struct {
	ID                 string               `json:"id"`
	PatientID          string               `json:"patient_id"`
	NurseID            *string              `json:"nurse_id,omitempty"`
	DoctorID           *string              `json:"doctor_id,omitempty"`
	ServiceType        string               `json:"service_type"`
	ScheduledAt        time.Time            `json:"scheduled_at"`
	Address            string               `json:"address"`
	Notes              *string              `json:"notes,omitempty"`
	Status             entity.BookingStatus `json:"status"`
	NurseArrivedAt     *time.Time           `json:"nurse_arrived_at,omitempty"`
	ArrivalConfirmedAt *time.Time           `json:"arrival_confirmed_at,omitempty"`
	ServiceStartedAt   *time.Time           `json:"service_started_at,omitempty"`
	ServiceEndedAt     *time.Time           `json:"service_ended_at,omitempty"`
	CompletedAt        *time.Time           `json:"completed_at,omitempty"`
	ActualDuration     *int                 `json:"actual_duration,omitempty"`
	ActualCost         *int64               `json:"actual_cost,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

func BookingToResponse(b *entity.Booking) BookingResponse {
	resp := BookingResponse{
		ID:                 b.ID.String(),
		PatientID:          b.PatientID.String(),
		ServiceType:        b.ServiceType,
		ScheduledAt:        b.ScheduledAt,
		Address:            b.Address,
		Notes:              b.Notes,
		Status:             b.Status,
		NurseArrivedAt:     b.NurseArrivedAt,
		ArrivalConfirmedAt: b.ArrivalConfirmedAt,
		ServiceStartedAt:   b.ServiceStartedAt,
		ServiceEndedAt:     b.ServiceEndedAt,
		CompletedAt:        b.CompletedAt,
		ActualDuration:     b.ActualDuration,
		ActualCost:         b.ActualCost,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
	}
	if b.NurseID != nil {
		id := b.NurseID.String()
		resp.NurseID = &id
	}
	if b.DoctorID != nil {
		id := b.DoctorID.String()
		resp.DoctorID = &id
	}
	return resp
}
