// Package jobs holds the background work: booking notification emails
// delivered through asynq and the periodic subscription sweeps.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"homecare-booking/internal/data/entity"
	"homecare-booking/internal/data/repository"
	"homecare-booking/pkg/mailer"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const TypeBookingCreated = "booking:created"

type BookingCreatedPayload struct {
	BookingID uuid.UUID `json:"booking_id"`
}

func NewBookingCreatedTask(bookingID uuid.UUID) (*asynq.Task, error) {
	data, err := json.Marshal(BookingCreatedPayload{BookingID: bookingID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeBookingCreated, data), nil
}

// EmailHandler renders and sends booking emails.
type EmailHandler struct {
	repo   *repository.Repository
	sender mailer.Sender
	log    *zap.Logger
}

func NewEmailHandler(repo *repository.Repository, sender mailer.Sender, log *zap.Logger) *EmailHandler {
	return &EmailHandler{
		repo:   repo,
		sender: sender,
		log:    log.With(zap.String("job", "email")),
	}
}

func (h *EmailHandler) HandleBookingCreated(ctx context.Context, t *asynq.Task) error {
	var payload BookingCreatedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal booking payload: %w: %w", err, asynq.SkipRetry)
	}
	return h.SendBookingCreated(ctx, payload.BookingID)
}

// SendBookingCreated emails the assigned nurse about a new booking. A booking
// that has disappeared or has no nurse is not retried.
func (h *EmailHandler) SendBookingCreated(ctx context.Context, bookingID uuid.UUID) error {
	booking, err := h.repo.Booking.FindByID(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("load booking: %w", err)
	}
	if booking == nil || booking.NurseID == nil {
		h.log.Warn("Skipping booking email", zap.String("booking_id", bookingID.String()))
		return fmt.Errorf("booking %s not notifiable: %w", bookingID, asynq.SkipRetry)
	}

	nurse, err := h.repo.User.FindByID(ctx, *booking.NurseID)
	if err != nil {
		return fmt.Errorf("load nurse: %w", err)
	}
	patient, err := h.repo.User.FindByID(ctx, booking.PatientID)
	if err != nil {
		return fmt.Errorf("load patient: %w", err)
	}
	if nurse == nil || patient == nil {
		return fmt.Errorf("booking %s parties missing: %w", bookingID, asynq.SkipRetry)
	}

	if err := h.sender.Send(ctx, bookingCreatedMessage(booking, nurse, patient)); err != nil {
		return err
	}
	h.log.Info("Booking email sent",
		zap.String("booking_id", bookingID.String()),
		zap.String("nurse_id", nurse.ID.String()),
	)
	return nil
}

func bookingCreatedMessage(b *entity.Booking, nurse, patient *entity.User) mailer.Message {
	body := fmt.Sprintf(
		"Hello %s,\n\n%s has requested a home visit.\n\nService: %s\nWhen: %s\nAddress: %s\n\nPlease accept or decline the booking in the app.\n",
		nurse.FullName,
		patient.FullName,
		b.ServiceType,
		b.ScheduledAt.UTC().Format(time.RFC1123),
		b.Address,
	)
	return mailer.Message{
		To:      nurse.Email,
		Subject: "New home visit request: " + b.ServiceType,
		Body:    body,
	}
}

// QueueNotifier enqueues booking emails for the worker.
type QueueNotifier struct {
	client *asynq.Client
	log    *zap.Logger
}

func NewQueueNotifier(client *asynq.Client, log *zap.Logger) *QueueNotifier {
	return &QueueNotifier{client: client, log: log.With(zap.String("notifier", "queue"))}
}

func (n *QueueNotifier) BookingCreated(ctx context.Context, booking *entity.Booking) error {
	task, err := NewBookingCreatedTask(booking.ID)
	if err != nil {
		return err
	}
	info, err := n.client.EnqueueContext(ctx, task, asynq.MaxRetry(5), asynq.Timeout(30*time.Second))
	if err != nil {
		return fmt.Errorf("enqueue booking email: %w", err)
	}
	n.log.Debug("Booking email queued", zap.String("task_id", info.ID))
	return nil
}

// InlineNotifier sends the email in the request path. Used when no queue is
// configured.
type InlineNotifier struct {
	handler *EmailHandler
}

func NewInlineNotifier(handler *EmailHandler) *InlineNotifier {
	return &InlineNotifier{handler: handler}
}

func (n *InlineNotifier) BookingCreated(ctx context.Context, booking *entity.Booking) error {
	err := n.handler.SendBookingCreated(ctx, booking.ID)
	if errors.Is(err, asynq.SkipRetry) {
		return nil
	}
	return err
}
