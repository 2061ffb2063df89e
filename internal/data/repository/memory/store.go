// Package memory is an in-process implementation of the repository
// contracts. Every operation, and every InTx body, runs under one store-wide
// lock, so the conditional-write guarantees of the SQL store hold here too.
package memory

import (
	"context"
	"sync"

	"homecare-booking/internal/data/entity"
	"homecare-booking/internal/data/repository"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

type Store struct {
	mu    sync.Mutex
	st    *state
	clock clockwork.Clock
}

type state struct {
	users    map[uuid.UUID]*entity.User
	sessions map[uuid.UUID]*entity.Session
	bookings []*entity.Booking
	subs     []*entity.NurseSubscription
	events   map[string]*entity.PaymentEvent
}

func newState() *state {
	return &state{
		users:    make(map[uuid.UUID]*entity.User),
		sessions: make(map[uuid.UUID]*entity.Session),
		events:   make(map[string]*entity.PaymentEvent),
	}
}

func (st *state) clone() *state {
	c := newState()
	for k, u := range st.users {
		cp := *u
		c.users[k] = &cp
	}
	for k, s := range st.sessions {
		cp := *s
		c.sessions[k] = &cp
	}
	for k, e := range st.events {
		cp := *e
		c.events[k] = &cp
	}
	c.bookings = make([]*entity.Booking, len(st.bookings))
	for i, b := range st.bookings {
		c.bookings[i] = b.Clone()
	}
	c.subs = make([]*entity.NurseSubscription, len(st.subs))
	for i, s := range st.subs {
		c.subs[i] = s.Clone()
	}
	return c
}

func NewStore(clock clockwork.Clock) *Store {
	return &Store{st: newState(), clock: clock}
}

// NewRepository returns a repository backed by a fresh store.
func NewRepository(clock clockwork.Clock) (*repository.Repository, *Store) {
	s := NewStore(clock)
	return s.Repository(), s
}

// Repository exposes the store through the repository contracts.
func (s *Store) Repository() *repository.Repository {
	return s.view(false)
}

func (s *Store) view(inTx bool) *repository.Repository {
	g := guard{s: s, inTx: inTx}
	repo := &repository.Repository{
		User:         userRepo{g},
		Session:      sessionRepo{g},
		Booking:      bookingRepo{g},
		Subscription: subscriptionRepo{g},
		PaymentEvent: paymentEventRepo{g},
	}
	if inTx {
		repo.Tx = joined{repo: repo}
	} else {
		repo.Tx = s
	}
	return repo
}

// InTx holds the store lock for the whole of fn and restores the previous
// state if fn fails.
func (s *Store) InTx(ctx context.Context, fn func(repo *repository.Repository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(s.view(true)); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// PutUser stores or replaces a user.
func (s *Store) PutUser(u *entity.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.st.users[u.ID] = &cp
}

// PutSession stores or replaces a session keyed by its token.
func (s *Store) PutSession(sess *entity.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	s.st.sessions[sess.Token] = &cp
}

// PutSubscription stores a subscription as-is, bypassing any lifecycle rule.
func (s *Store) PutSubscription(sub *entity.NurseSubscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.subs = append(s.st.subs, sub.Clone())
}

type joined struct {
	repo *repository.Repository
}

func (j joined) InTx(_ context.Context, fn func(repo *repository.Repository) error) error {
	return fn(j.repo)
}

type guard struct {
	s    *Store
	inTx bool
}

func (g guard) with(fn func(st *state)) {
	if !g.inTx {
		g.s.mu.Lock()
		defer g.s.mu.Unlock()
	}
	fn(g.s.st)
}

type userRepo struct{ g guard }

func (r userRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	var out *entity.User
	r.g.with(func(st *state) {
		if u, ok := st.users[id]; ok {
			cp := *u
			out = &cp
		}
	})
	return out, nil
}

type sessionRepo struct{ g guard }

func (r sessionRepo) FindValidSession(_ context.Context, token uuid.UUID) (*entity.Session, error) {
	now := r.g.s.clock.Now()
	var out *entity.Session
	r.g.with(func(st *state) {
		sess, ok := st.sessions[token]
		if !ok || sess.RevokedAt != nil || !sess.ExpiresAt.After(now) {
			return
		}
		cp := *sess
		out = &cp
	})
	return out, nil
}
