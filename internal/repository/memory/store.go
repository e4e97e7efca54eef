// Package memory implements repository.Store in process memory. It backs
// local development when no database is configured and the service tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/commission-service/internal/domain"
	"github.com/spec-kit/commission-service/internal/repository"
)

// Store serialises transactions under one mutex and restores a snapshot when
// the transaction function fails.
type Store struct {
	mu    sync.Mutex
	state *state
	fail  error
	now   func() time.Time
}

var _ repository.Store = (*Store)(nil)

type state struct {
	users    map[string]domain.User
	agents   map[string]domain.Agent
	closers  map[string]domain.Closer
	sales    map[string]domain.Sale
	history  []domain.SaleHistory
	payments map[string]domain.Payment
	resets   map[string]domain.PasswordResetToken
}

// New creates an empty store.
func New() *Store {
	return &Store{
		state: &state{
			users:    make(map[string]domain.User),
			agents:   make(map[string]domain.Agent),
			closers:  make(map[string]domain.Closer),
			sales:    make(map[string]domain.Sale),
			payments: make(map[string]domain.Payment),
			resets:   make(map[string]domain.PasswordResetToken),
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the timestamp source used for created/updated stamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

// Fail makes every subsequent operation return err until called with nil.
func (s *Store) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

// Repos returns repositories that lock per call.
func (s *Store) Repos() repository.Repositories {
	return s.repos(false)
}

// WithinTx runs fn while holding the store lock.
func (s *Store) WithinTx(ctx context.Context, fn func(repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}

	snapshot := s.state.clone()
	if err := fn(s.repos(true)); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

// Ping reports the injected failure, if any.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fail
}

func (s *Store) repos(inTx bool) repository.Repositories {
	b := base{store: s, inTx: inTx}
	return repository.Repositories{
		Users:          &userRepo{b},
		Agents:         &agentRepo{b},
		Closers:        &closerRepo{b},
		Sales:          &saleRepo{b},
		History:        &historyRepo{b},
		Payments:       &paymentRepo{b},
		PasswordResets: &resetRepo{b},
	}
}

func (st *state) clone() *state {
	out := &state{
		users:    make(map[string]domain.User, len(st.users)),
		agents:   make(map[string]domain.Agent, len(st.agents)),
		closers:  make(map[string]domain.Closer, len(st.closers)),
		sales:    make(map[string]domain.Sale, len(st.sales)),
		history:  append([]domain.SaleHistory(nil), st.history...),
		payments: make(map[string]domain.Payment, len(st.payments)),
		resets:   make(map[string]domain.PasswordResetToken, len(st.resets)),
	}
	for k, v := range st.users {
		out.users[k] = v
	}
	for k, v := range st.agents {
		out.agents[k] = v
	}
	for k, v := range st.closers {
		out.closers[k] = v
	}
	for k, v := range st.sales {
		out.sales[k] = v
	}
	for k, v := range st.payments {
		out.payments[k] = v
	}
	for k, v := range st.resets {
		out.resets[k] = v
	}
	return out
}

type base struct {
	store *Store
	inTx  bool
}

// with runs fn against the current state, taking the lock unless the caller
// already holds it through WithinTx.
func (b base) with(ctx context.Context, fn func(st *state, now time.Time) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !b.inTx {
		b.store.mu.Lock()
		defer b.store.mu.Unlock()
		if b.store.fail != nil {
			return b.store.fail
		}
	}
	return fn(b.store.state, b.store.now())
}

func newID() string {
	return uuid.NewString()
}
