package repository

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestTranslateClassifiesPostgresErrors(t *testing.T) {
	cases := map[string]struct {
		err  error
		want error
	}{
		"no rows":          {pgx.ErrNoRows, ErrNotFound},
		"unique violation": {&pgconn.PgError{Code: "23505", ConstraintName: "agents_code_key"}, ErrDuplicate},
		"malformed uuid":   {&pgconn.PgError{Code: "22P02", Message: `invalid input syntax for type uuid: "nope"`}, ErrNotFound},
		"dangling foreign": {&pgconn.PgError{Code: "23503"}, ErrNotFound},
		"numeric overflow": {&pgconn.PgError{Code: "22003", Message: "numeric field overflow"}, ErrInvalidValue},
	}
	for name, tc := range cases {
		assert.ErrorIs(t, translate(tc.err), tc.want, name)
	}

	deadlock := &pgconn.PgError{Code: "40P01"}
	assert.Same(t, deadlock, translate(deadlock))
	other := errors.New("conn reset")
	assert.Same(t, other, translate(other))
	assert.NoError(t, translate(nil))
}

func TestPageBounds(t *testing.T) {
	limit, offset := PageBounds(0, -3)
	assert.Equal(t, DefaultPageSize, limit)
	assert.Zero(t, offset)

	limit, offset = PageBounds(10_000, 40)
	assert.Equal(t, MaxPageSize, limit)
	assert.Equal(t, 40, offset)
}
