package repository

import (
	"context"
	"errors"
	"fmt"

	"homecare-booking/pkg/database"

	"go.uber.org/zap"
)

// ErrConflict is returned when a conditional write finds its precondition
// no longer holds (row version moved on, quota already at its limit).
var ErrConflict = errors.New("conditional update conflict")

type Repository struct {
	User         UserRepository
	Session      SessionRepository
	Booking      BookingRepository
	Subscription SubscriptionRepository
	PaymentEvent PaymentEventRepository

	// Tx runs a function against repositories bound to one transaction.
	Tx Transactor
}

// Transactor is the unit-of-work boundary. Everything fn does through the
// repository it receives commits or rolls back together.
type Transactor interface {
	InTx(ctx context.Context, fn func(repo *Repository) error) error
}

// InTx is shorthand for r.Tx.InTx.
func (r *Repository) InTx(ctx context.Context, fn func(repo *Repository) error) error {
	return r.Tx.InTx(ctx, fn)
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	repo := newQuerierRepository(db, log)
	repo.Tx = &pgxTransactor{db: db, log: log.With(zap.String("repository", "tx"))}
	return repo
}

func newQuerierRepository(q database.Querier, log *zap.Logger) *Repository {
	return &Repository{
		User:         NewUserRepository(q, log),
		Session:      NewSessionRepository(q, log),
		Booking:      NewBookingRepository(q, log),
		Subscription: NewSubscriptionRepository(q, log),
		PaymentEvent: NewPaymentEventRepository(q, log),
	}
}

type pgxTransactor struct {
	db  database.PgxIface
	log *zap.Logger
}

func (t *pgxTransactor) InTx(ctx context.Context, fn func(repo *Repository) error) error {
	tx, err := t.db.Begin(ctx)
	if err != nil {
		t.log.Error("Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("begin transaction: %w", err)
	}
	// no-op once committed
	defer tx.Rollback(ctx)

	inner := newQuerierRepository(tx, t.log)
	inner.Tx = joinedTx{repo: inner}

	if err := fn(inner); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		t.log.Error("Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// joinedTx lets code that already runs inside a transaction call InTx again
// without opening a nested one.
type joinedTx struct {
	repo *Repository
}

func (j joinedTx) InTx(_ context.Context, fn func(repo *Repository) error) error {
	return fn(j.repo)
}
