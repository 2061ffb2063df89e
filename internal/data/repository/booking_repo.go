package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"homecare-booking/internal/data/entity"
	"homecare-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// BookingFilter selects bookings by party and optionally by status.
type BookingFilter struct {
	PatientID *uuid.UUID
	NurseID   *uuid.UUID
	DoctorID  *uuid.UUID
	Status    *entity.BookingStatus
}

type BookingRepository interface {
	Create(ctx context.Context, booking *entity.Booking) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
	FindByFilter(ctx context.Context, filter BookingFilter, limit, offset int) ([]*entity.Booking, error)
	CountByFilter(ctx context.Context, filter BookingFilter) (int64, error)
	// Update writes the booking only if its stored version still equals
	// expectedVersion, otherwise ErrConflict. On success booking.Version is bumped.
	Update(ctx context.Context, booking *entity.Booking, expectedVersion int64) error
}

const bookingColumns = `id, patient_id, nurse_id, doctor_id, service_type, scheduled_at, address, notes, status,
		nurse_arrived_at, arrival_confirmed_at, service_started_at, service_ended_at, completed_at,
		actual_duration, actual_cost, version, created_at, updated_at`

type bookingRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewBookingRepository(db database.Querier, log *zap.Logger) BookingRepository {
	return &bookingRepository{
		db:  db,
		log: log.With(zap.String("repository", "booking")),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*entity.Booking, error) {
	var b entity.Booking
	err := row.Scan(
		&b.ID,
		&b.PatientID,
		&b.NurseID,
		&b.DoctorID,
		&b.ServiceType,
		&b.ScheduledAt,
		&b.Address,
		&b.Notes,
		&b.Status,
		&b.NurseArrivedAt,
		&b.ArrivalConfirmedAt,
		&b.ServiceStartedAt,
		&b.ServiceEndedAt,
		&b.CompletedAt,
		&b.ActualDuration,
		&b.ActualCost,
		&b.Version,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *bookingRepository) Create(ctx context.Context, booking *entity.Booking) error {
	query := `
		INSERT INTO bookings (id, patient_id, nurse_id, doctor_id, service_type, scheduled_at, address, notes,
		                      status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.Exec(ctx, query,
		booking.ID,
		booking.PatientID,
		booking.NurseID,
		booking.DoctorID,
		booking.ServiceType,
		booking.ScheduledAt,
		booking.Address,
		booking.Notes,
		booking.Status,
		booking.Version,
		booking.CreatedAt,
		booking.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create booking",
			zap.Error(err),
			zap.String("booking_id", booking.ID.String()),
			zap.String("patient_id", booking.PatientID.String()),
		)
		return fmt.Errorf("create booking %s: %w", booking.ID, err)
	}

	return nil
}

func (r *bookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := scanBooking(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find booking by ID",
			zap.Error(err),
			zap.String("booking_id", id.String()),
		)
		return nil, fmt.Errorf("find booking by ID %s: %w", id, err)
	}

	return booking, nil
}

func (f BookingFilter) where() (string, []any) {
	var conds []string
	var args []any

	if f.PatientID != nil {
		args = append(args, *f.PatientID)
		conds = append(conds, fmt.Sprintf("patient_id = $%d", len(args)))
	}
	if f.NurseID != nil {
		args = append(args, *f.NurseID)
		conds = append(conds, fmt.Sprintf("nurse_id = $%d", len(args)))
	}
	if f.DoctorID != nil {
		args = append(args, *f.DoctorID)
		conds = append(conds, fmt.Sprintf("doctor_id = $%d", len(args)))
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *bookingRepository) FindByFilter(ctx context.Context, filter BookingFilter, limit, offset int) ([]*entity.Booking, error) {
	where, args := filter.where()
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM bookings%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		bookingColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to find bookings",
			zap.Error(err),
			zap.Int("limit", limit),
			zap.Int("offset", offset),
		)
		return nil, fmt.Errorf("find bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*entity.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			r.log.Error("Failed to scan booking row", zap.Error(err))
			return nil, fmt.Errorf("scan booking row: %w", err)
		}
		bookings = append(bookings, booking)
	}

	return bookings, rows.Err()
}

func (r *bookingRepository) CountByFilter(ctx context.Context, filter BookingFilter) (int64, error) {
	where, args := filter.where()
	query := `SELECT COUNT(*) FROM bookings` + where

	var count int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		r.log.Error("Failed to count bookings", zap.Error(err))
		return 0, fmt.Errorf("count bookings: %w", err)
	}

	return count, nil
}

func (r *bookingRepository) Update(ctx context.Context, booking *entity.Booking, expectedVersion int64) error {
	query := `
		UPDATE bookings
		SET nurse_id = $3, status = $4, nurse_arrived_at = $5, arrival_confirmed_at = $6,
		    service_started_at = $7, service_ended_at = $8, completed_at = $9,
		    actual_duration = $10, actual_cost = $11, updated_at = $12, version = version + 1
		WHERE id = $1 AND version = $2
	`

	result, err := r.db.Exec(ctx, query,
		booking.ID,
		expectedVersion,
		booking.NurseID,
		booking.Status,
		booking.NurseArrivedAt,
		booking.ArrivalConfirmedAt,
		booking.ServiceStartedAt,
		booking.ServiceEndedAt,
		booking.CompletedAt,
		booking.ActualDuration,
		booking.ActualCost,
		booking.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to update booking",
			zap.Error(err),
			zap.String("booking_id", booking.ID.String()),
		)
		return fmt.Errorf("update booking %s: %w", booking.ID, err)
	}

	if result.RowsAffected() == 0 {
		r.log.Warn("Booking version moved on",
			zap.String("booking_id", booking.ID.String()),
			zap.Int64("expected_version", expectedVersion),
		)
		return fmt.Errorf("update booking %s: %w", booking.ID, ErrConflict)
	}

	booking.Version = expectedVersion + 1
	return nil
}
