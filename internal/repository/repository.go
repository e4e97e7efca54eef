package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")
	// ErrInvalidValue is returned when the database rejects a value as out of
	// range for its column.
	ErrInvalidValue = errors.New("value out of range")
)

// SQLSTATE codes translate recognises.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgInvalidText         = "22P02"
	pgNumericOutOfRange   = "22003"
)

// DBTX is satisfied by both the pool and a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repositories groups every repository bound to the same connection or
// transaction.
type Repositories struct {
	Users          UserRepository
	Agents         AgentRepository
	Closers        CloserRepository
	Sales          SaleRepository
	History        SaleHistoryRepository
	Payments       PaymentRepository
	PasswordResets PasswordResetRepository
}

// Store is the unit of work used by services. WithinTx runs fn in a single
// transaction and rolls back when fn returns an error.
type Store interface {
	Repos() Repositories
	WithinTx(ctx context.Context, fn func(Repositories) error) error
	Ping(ctx context.Context) error
}

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func newRepositories(db DBTX) Repositories {
	return Repositories{
		Users:          NewUserRepository(db),
		Agents:         NewAgentRepository(db),
		Closers:        NewCloserRepository(db),
		Sales:          NewSaleRepository(db),
		History:        NewSaleHistoryRepository(db),
		Payments:       NewPaymentRepository(db),
		PasswordResets: NewPasswordResetRepository(db),
	}
}

// Repos returns repositories running outside a transaction.
func (s *PostgresStore) Repos() Repositories {
	return newRepositories(s.pool)
}

// WithinTx runs fn at READ COMMITTED. Row locks taken by ForUpdate reads are
// held until commit.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(Repositories) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(newRepositories(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Ping checks the pool.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	// A malformed id cannot name an existing row, and neither can a dangling
	// reference.
	case pgInvalidText, pgForeignKeyViolation:
		return fmt.Errorf("%w: %s", ErrNotFound, pgErr.Message)
	case pgNumericOutOfRange:
		return fmt.Errorf("%w: %s", ErrInvalidValue, pgErr.Message)
	}
	return err
}

func expectOne(cmd pgconn.CommandTag, err error) error {
	if err != nil {
		return translate(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Page size limits shared by every store.
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// PageBounds clamps a requested page to the shared limits.
func PageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
