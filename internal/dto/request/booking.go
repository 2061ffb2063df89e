package request

import "time"

type CreateBookingRequest struct {
	NurseID     *string   `json:"nurse_id,omitempty" validate:"omitempty,uuid4"`
	DoctorID    *string   `json:"doctor_id,omitempty" validate:"omitempty,uuid4"`
	ServiceType string    `json:"service_type" validate:"required,min=3,max=100"`
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
	Address     string    `json:"address" validate:"required,min=5,max=500"`
	Notes       *string   `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

type ListBookingsRequest struct {
	PaginatedRequest
	Status string `json:"status" validate:"omitempty,oneof=PENDING CONFIRMED IN_PROGRESS COMPLETED CANCELLED"`
}

type UpdateBookingStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=CONFIRMED CANCELLED COMPLETED"`
}
