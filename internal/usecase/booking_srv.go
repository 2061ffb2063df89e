package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"homecare-booking/internal/data/entity"
	"homecare-booking/internal/data/repository"
	"homecare-booking/internal/dto/request"
	"homecare-booking/internal/dto/response"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

type BookingService interface {
	CreateBooking(ctx context.Context, actor Actor, req *request.CreateBookingRequest) (*response.BookingResponse, error)
	GetBooking(ctx context.Context, actor Actor, bookingID uuid.UUID) (*response.BookingResponse, error)
	ListBookings(ctx context.Context, actor Actor, req *request.ListBookingsRequest) (*response.PaginatedResponse[response.BookingResponse], error)

	// UpdateStatus is the generic role-gated transition.
	UpdateStatus(ctx context.Context, actor Actor, bookingID uuid.UUID, target entity.BookingStatus) (*response.BookingResponse, error)
	Accept(ctx context.Context, actor Actor, bookingID uuid.UUID) (*response.BookingResponse, error)
	Cancel(ctx context.Context, actor Actor, bookingID uuid.UUID) (*response.BookingResponse, error)

	// Visit flow
	MarkArrival(ctx context.Context, actor Actor, bookingID uuid.UUID) (*response.BookingResponse, error)
	ConfirmArrival(ctx context.Context, actor Actor, bookingID uuid.UUID) (*response.BookingResponse, error)
	StartService(ctx context.Context, actor Actor, bookingID uuid.UUID) (*response.BookingResponse, error)
	StopService(ctx context.Context, actor Actor, bookingID uuid.UUID) (*response.BookingResponse, error)

	// Admin
	ResolveLapsedArrival(ctx context.Context, actor Actor, bookingID uuid.UUID) (*response.BookingResponse, error)
}

type bookingService struct {
	repo     *repository.Repository
	quota    *quotaGuard
	notifier BookingNotifier
	clock    clockwork.Clock
	log      *zap.Logger
}

func NewBookingService(repo *repository.Repository, cache StatusCache, notifier BookingNotifier, clock clockwork.Clock, log *zap.Logger) BookingService {
	return &bookingService{
		repo:     repo,
		quota:    newQuotaGuard(repo, newStatusCache(cache, log), clock, log),
		notifier: notifier,
		clock:    clock,
		log:      log.With(zap.String("service", "booking")),
	}
}

func (s *bookingService) CreateBooking(ctx context.Context, actor Actor, req *request.CreateBookingRequest) (*response.BookingResponse, error) {
	if actor.Role != entity.RolePatient {
		return nil, fmt.Errorf("only patients create bookings: %w", ErrForbidden)
	}
	if err := validate(req); err != nil {
		s.log.Warn("Create booking validation failed", zap.Error(err))
		return nil, err
	}

	nurseID, err := s.parseParty(ctx, req.NurseID, entity.RoleNurse)
	if err != nil {
		return nil, err
	}
	doctorID, err := s.parseParty(ctx, req.DoctorID, entity.RoleDoctor)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	booking := &entity.Booking{
		Base: entity.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		PatientID:   actor.ID,
		NurseID:     nurseID,
		DoctorID:    doctorID,
		ServiceType: req.ServiceType,
		ScheduledAt: req.ScheduledAt,
		Address:     req.Address,
		Notes:       req.Notes,
		Status:      entity.BookingStatusPending,
	}

	if err := s.repo.Booking.Create(ctx, booking); err != nil {
		s.log.Error("Failed to create booking",
			zap.Error(err),
			zap.String("patient_id", actor.ID.String()),
		)
		return nil, fmt.Errorf("create booking: %w", err)
	}

	s.log.Info("Booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("patient_id", actor.ID.String()),
		zap.Bool("nurse_assigned", nurseID != nil),
	)

	if nurseID != nil && s.notifier != nil {
		if err := s.notifier.BookingCreated(ctx, booking); err != nil {
			s.log.Warn("Booking confirmation email not queued",
				zap.Error(err),
				zap.String("booking_id", booking.ID.String()),
			)
		}
	}

	resp := response.BookingToResponse(booking)
	return &resp, nil
}

// parseParty resolves an optional user reference and checks its role.
func (s *bookingService) parseParty(ctx context.Context, raw *string, role entity.UserRole) (*uuid.UUID, error) {
	if raw == nil {
		return nil, nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return nil, &ValidationError{Fields: map[string]string{string(role) + "_id": "Must be a valid UUID"}}
	}
	user, err := s.repo.User.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load %s %s: %w", role, id, err)
	}
	if user == nil || user.Role != role || !user.IsActive {
		return nil, &ValidationError{Fields: map[string]string{string(role) + "_id": fmt.Sprintf("Unknown %s", role)}}
	}
	return &id, nil
}

func (s *bookingService) GetBooking(ctx context.Context, actor Actor, bookingID uuid.UUID) (*response.BookingResponse, error) {
	booking, err := s.repo.Booking.FindByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get booking %s: %w", bookingID, err)
	}
	if booking == nil {
		return nil, fmt.Errorf("booking %s: %w", bookingID, ErrNotFound)
	}
	if !isParty(actor, booking) {
		return nil, fmt.Errorf("booking %s: %w", bookingID, ErrForbidden)
	}

	resp := response.BookingToResponse(booking)
	return &resp, nil
}

func (s *bookingService) ListBookings(ctx context.Context, actor Actor, req *request.ListBookingsRequest) (*response.PaginatedResponse[response.BookingResponse], error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	var filter repository.BookingFilter
	switch actor.Role {
	case entity.RolePatient:
		filter.PatientID = &actor.ID
	case entity.RoleNurse:
		filter.NurseID = &actor.ID
	case entity.RoleDoctor:
		filter.DoctorID = &actor.ID
	case entity.RoleAdmin:
	default:
		return nil, fmt.Errorf("role %s cannot list bookings: %w", actor.Role, ErrForbidden)
	}
	if req.Status != "" {
		status := entity.BookingStatus(req.Status)
		filter.Status = &status
	}

	bookings, err := s.repo.Booking.FindByFilter(ctx, filter, req.Limit(), req.Offset())
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	total, err := s.repo.Booking.CountByFilter(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count bookings: %w", err)
	}

	data := make([]response.BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		data = append(data, response.BookingToResponse(b))
	}

	return response.NewPaginatedResponse(data, req.CurrentPage(), req.Limit(), total), nil
}

// errCommitOnly lets a mutation commit its side writes while leaving the
// booking itself unchanged.
var errCommitOnly = errors.New("commit without booking write")

// mutate loads a booking, applies fn and writes it back with a version check,
// all in one transaction. A concurrent writer that got there first turns into
// ErrPreconditionFailed.
func (s *bookingService) mutate(ctx context.Context, op string, actor Actor, bookingID uuid.UUID,
	fn func(tx *repository.Repository, b *entity.Booking, now time.Time) error) (*entity.Booking, error) {
	var (
		updated *entity.Booking
		from    entity.BookingStatus
		skipped bool
	)

	err := s.repo.InTx(ctx, func(tx *repository.Repository) error {
		booking, err := tx.Booking.FindByID(ctx, bookingID)
		if err != nil {
			return fmt.Errorf("load booking %s: %w", bookingID, err)
		}
		if booking == nil {
			return fmt.Errorf("booking %s: %w", bookingID, ErrNotFound)
		}

		version := booking.Version
		from = booking.Status
		now := s.clock.Now()

		if err := fn(tx, booking, now); err != nil {
			if errors.Is(err, errCommitOnly) {
				skipped = true
				return nil
			}
			return err
		}

		booking.UpdatedAt = now
		if err := tx.Booking.Update(ctx, booking, version); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("booking %s was modified concurrently: %w", bookingID, ErrPreconditionFailed)
			}
			return err
		}
		updated = booking
		return nil
	})
	if err != nil {
		s.logFailure(op, actor, bookingID, err)
		return nil, err
	}
	if skipped {
		return nil, errCommitOnly
	}

	s.log.Info("Booking "+op,
		zap.String("booking_id", bookingID.String()),
		zap.String("actor_id", actor.ID.String()),
		zap.String("actor_role", string(actor.Role)),
		zap.String("from", string(from)),
		zap.String("to", string(updated.Status)),
	)
	return updated, nil
}

func (s *bookingService) logFailure(op string, actor Actor, bookingID uuid.UUID, err error) {
	fields := []zap.Field{
		zap.Error(err),
		zap.String("op", op),
		zap.String("booking_id", bookingID.String()),
		zap.String("actor_id", actor.ID.String()),
	}
	switch {
	case errors.Is(err, ErrInvalidState):
		s.log.Error("Booking state inconsistent", fields...)
	case errors.Is(err, ErrWindowExpired), errors.Is(err, ErrQuotaExceeded):
		s.log.Warn("Booking action denied", fields...)
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrForbidden),
		errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrPreconditionFailed):
		s.log.Info("Booking action rejected", fields...)
	default:
		s.log.Error("Booking action failed", fields...)
	}
}

func respond(b *entity.Booking, err error) (*response.BookingResponse, error) {
	if err != nil {
		return nil, err
	}
	resp := response.BookingToResponse(b)
	return &resp, nil
}

func (s *bookingService) UpdateStatus(ctx context.Context, actor Actor, bookingID uuid.UUID, target entity.BookingStatus) (*response.BookingResponse, error) {
	switch target {
	case entity.BookingStatusConfirmed:
		return s.Accept(ctx, actor, bookingID)
	case entity.BookingStatusCancelled:
		return s.Cancel(ctx, actor, bookingID)
	}

	return respond(s.mutate(ctx, "status updated", actor, bookingID, func(_ *repository.Repository, b *entity.Booking, now time.Time) error {
		if err := checkTransition(actor, b, target); err != nil {
			return err
		}
		b.Status = target
		return nil
	}))
}

// Accept confirms a booking for the calling nurse, consuming one booking from
// the nurse's subscription in the same transaction.
func (s *bookingService) Accept(ctx context.Context, actor Actor, bookingID uuid.UUID) (*response.BookingResponse, error) {
	var denied *QuotaDecision

	booking, err := s.mutate(ctx, "accepted", actor, bookingID, func(tx *repository.Repository, b *entity.Booking, now time.Time) error {
		if err := checkTransition(actor, b, entity.BookingStatusConfirmed); err != nil {
			return err
		}

		d, err := s.admit(ctx, tx, actor.ID, now)
		if err != nil {
			denied = d
			return err
		}

		if b.NurseID == nil {
			nurseID := actor.ID
			b.NurseID = &nurseID
		}
		b.Status = entity.BookingStatusConfirmed
		return nil
	})
	return s.admitted(ctx, "accepted", actor, bookingID, denied, booking, err)
}

// admit runs the quota guard for nurseID and consumes one booking when it
// allows. A denial returns the decision with errCommitOnly so the pause
// commits while the booking stays untouched.
func (s *bookingService) admit(ctx context.Context, tx *repository.Repository, nurseID uuid.UUID, now time.Time) (*QuotaDecision, error) {
	decision, err := s.quota.evaluate(ctx, tx, nurseID, now)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return decision, errCommitOnly
	}
	return nil, s.quota.consume(ctx, tx, decision, now)
}

// admitted finishes a mutation that went through admit.
func (s *bookingService) admitted(ctx context.Context, op string, actor Actor, bookingID uuid.UUID,
	denied *QuotaDecision, booking *entity.Booking, err error) (*response.BookingResponse, error) {
	switch {
	case errors.Is(err, errCommitOnly):
		s.quota.cache.invalidate(ctx, actor.ID)
		qerr := &QuotaError{Decision: denied}
		s.logFailure(op, actor, bookingID, qerr)
		return nil, qerr
	case err == nil:
		s.quota.cache.invalidate(ctx, actor.ID)
	}
	return respond(booking, err)
}

func (s *bookingService) Cancel(ctx context.Context, actor Actor, bookingID uuid.UUID) (*response.BookingResponse, error) {
	return respond(s.mutate(ctx, "cancelled", actor, bookingID, func(_ *repository.Repository, b *entity.Booking, _ time.Time) error {
		if err := checkTransition(actor, b, entity.BookingStatusCancelled); err != nil {
			return err
		}
		b.Status = entity.BookingStatusCancelled
		return nil
	}))
}

// MarkArrival records the nurse at the door. Arriving on a PENDING booking
// the nurse was pre-assigned to counts as accepting it, so the quota guard
// runs first.
func (s *bookingService) MarkArrival(ctx context.Context, actor Actor, bookingID uuid.UUID) (*response.BookingResponse, error) {
	var (
		denied         *QuotaDecision
		implicitAccept bool
	)

	booking, err := s.mutate(ctx, "arrival marked", actor, bookingID, func(tx *repository.Repository, b *entity.Booking, now time.Time) error {
		if err := requireNurse(actor, b); err != nil {
			return err
		}
		if b.Status != entity.BookingStatusConfirmed && b.Status != entity.BookingStatusPending {
			return fmt.Errorf("cannot mark arrival on %s booking %s: %w", b.Status, b.ID, ErrInvalidTransition)
		}
		if b.ServiceStartedAt != nil || b.NurseArrivedAt != nil {
			return fmt.Errorf("arrival already recorded on booking %s: %w", b.ID, ErrPreconditionFailed)
		}

		arrived, err := stamp(lastStamp(b), now, "nurse_arrived_at")
		if err != nil {
			return err
		}

		if b.Status == entity.BookingStatusPending {
			implicitAccept = true
			d, err := s.admit(ctx, tx, actor.ID, now)
			if err != nil {
				denied = d
				return err
			}
		}

		b.NurseArrivedAt = arrived
		b.Status = entity.BookingStatusInProgress
		return nil
	})
	if !implicitAccept {
		return respond(booking, err)
	}
	return s.admitted(ctx, "arrival marked", actor, bookingID, denied, booking, err)
}

func (s *bookingService) ConfirmArrival(ctx context.Context, actor Actor, bookingID uuid.UUID) (*response.BookingResponse, error) {
	return respond(s.mutate(ctx, "arrival confirmed", actor, bookingID, func(_ *repository.Repository, b *entity.Booking, now time.Time) error {
		if err := requirePatient(actor, b); err != nil {
			return err
		}
		if b.Status != entity.BookingStatusInProgress || b.NurseArrivedAt == nil {
			return fmt.Errorf("nurse has not arrived for booking %s: %w", b.ID, ErrPreconditionFailed)
		}
		if b.ArrivalConfirmedAt != nil {
			return fmt.Errorf("arrival already confirmed on booking %s: %w", b.ID, ErrPreconditionFailed)
		}
		if now.Sub(*b.NurseArrivedAt) > ArrivalConfirmationWindow {
			return fmt.Errorf("arrival confirmation for booking %s closed at %s: %w",
				b.ID, b.NurseArrivedAt.Add(ArrivalConfirmationWindow).Format(time.RFC3339), ErrWindowExpired)
		}

		confirmed, err := stamp(lastStamp(b), now, "arrival_confirmed_at")
		if err != nil {
			return err
		}
		b.ArrivalConfirmedAt = confirmed
		return nil
	}))
}

func (s *bookingService) StartService(ctx context.Context, actor Actor, bookingID uuid.UUID) (*response.BookingResponse, error) {
	return respond(s.mutate(ctx, "service started", actor, bookingID, func(_ *repository.Repository, b *entity.Booking, now time.Time) error {
		if err := requireNurse(actor, b); err != nil {
			return err
		}
		if b.Status != entity.BookingStatusInProgress || b.ArrivalConfirmedAt == nil {
			return fmt.Errorf("arrival not confirmed on booking %s: %w", b.ID, ErrPreconditionFailed)
		}
		if b.ServiceStartedAt != nil {
			return fmt.Errorf("service already started on booking %s: %w", b.ID, ErrPreconditionFailed)
		}

		started, err := stamp(lastStamp(b), now, "service_started_at")
		if err != nil {
			return err
		}
		b.ServiceStartedAt = started
		return nil
	}))
}

// StopService ends the visit and bills it. Any billing failure aborts the
// whole transition.
func (s *bookingService) StopService(ctx context.Context, actor Actor, bookingID uuid.UUID) (*response.BookingResponse, error) {
	return respond(s.mutate(ctx, "service stopped", actor, bookingID, func(tx *repository.Repository, b *entity.Booking, now time.Time) error {
		if requireNurse(actor, b) != nil && requirePatient(actor, b) != nil {
			return fmt.Errorf("booking %s is not stoppable by caller: %w", b.ID, ErrForbidden)
		}
		if b.ServiceStartedAt == nil {
			return fmt.Errorf("service not started on booking %s: %w", b.ID, ErrPreconditionFailed)
		}
		if b.ServiceEndedAt != nil {
			return fmt.Errorf("service already stopped on booking %s: %w", b.ID, ErrPreconditionFailed)
		}

		ended, err := stamp(lastStamp(b), now, "service_ended_at")
		if err != nil {
			return err
		}

		if b.NurseID == nil {
			return fmt.Errorf("%w: started booking %s has no nurse", ErrInvalidState, b.ID)
		}
		nurse, err := tx.User.FindByID(ctx, *b.NurseID)
		if err != nil {
			return fmt.Errorf("load nurse %s: %w", *b.NurseID, err)
		}
		if nurse == nil || nurse.HourlyRate == nil {
			return fmt.Errorf("%w: nurse %s has no hourly rate", ErrInvalidState, *b.NurseID)
		}

		bill, err := CalculateBill(*b.ServiceStartedAt, *ended, *nurse.HourlyRate)
		if err != nil {
			return err
		}

		completed := *ended
		b.ServiceEndedAt = ended
		b.CompletedAt = &completed
		b.ActualDuration = &bill.DurationMinutes
		b.ActualCost = &bill.Cost
		b.Status = entity.BookingStatusCompleted
		return nil
	}))
}

// ResolveLapsedArrival lets an admin close a visit whose arrival was never
// confirmed within the window. The consumed quota is not refunded.
func (s *bookingService) ResolveLapsedArrival(ctx context.Context, actor Actor, bookingID uuid.UUID) (*response.BookingResponse, error) {
	return respond(s.mutate(ctx, "lapsed arrival resolved", actor, bookingID, func(_ *repository.Repository, b *entity.Booking, now time.Time) error {
		if actor.Role != entity.RoleAdmin {
			return fmt.Errorf("only admins resolve lapsed arrivals: %w", ErrForbidden)
		}
		if b.Status != entity.BookingStatusInProgress || b.NurseArrivedAt == nil || b.ArrivalConfirmedAt != nil {
			return fmt.Errorf("booking %s is not awaiting arrival confirmation: %w", b.ID, ErrInvalidTransition)
		}
		if now.Sub(*b.NurseArrivedAt) <= ArrivalConfirmationWindow {
			return fmt.Errorf("arrival window for booking %s is still open: %w", b.ID, ErrPreconditionFailed)
		}
		b.Status = entity.BookingStatusCancelled
		return nil
	}))
}
