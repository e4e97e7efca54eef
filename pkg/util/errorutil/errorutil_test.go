package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainErrorKeepsDomainErrors(t *testing.T) {
	wrapped := fmt.Errorf("submit: %w", NewConflict("already resubmitted", map[string]any{"sale_id": "s1"}))

	de := ToDomainError(wrapped)
	require.NotNil(t, de)
	assert.Equal(t, CodeConflict, de.Code)
	assert.Equal(t, http.StatusConflict, de.HTTPStatus)
	assert.Equal(t, "s1", de.Details["sale_id"])
}

func TestToDomainErrorFallsBackToInternal(t *testing.T) {
	de := ToDomainError(errors.New("boom"))
	assert.Equal(t, CodeInternal, de.Code)
	assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
	assert.Nil(t, ToDomainError(nil))
}

func TestStoreUnavailableIsDistinctFromBusinessErrors(t *testing.T) {
	cause := errors.New("connection reset by peer")
	err := NewStoreUnavailable(cause)

	assert.True(t, IsCode(err, CodeStoreUnavailable))
	assert.False(t, IsCode(err, CodeValidation))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusServiceUnavailable, ToDomainError(err).HTTPStatus)
}

func TestStatusCodesPerKind(t *testing.T) {
	cases := map[string]struct {
		err    error
		status int
	}{
		CodeValidation:      {NewValidationError("bad", nil), http.StatusBadRequest},
		CodeNotFound:        {NewNotFound("sale", nil), http.StatusNotFound},
		CodeForbidden:       {NewForbidden("admin only"), http.StatusForbidden},
		CodeUnauthorized:    {NewUnauthorized("login"), http.StatusUnauthorized},
		CodeInvalidState:    {NewInvalidState("nope", nil), http.StatusUnprocessableEntity},
		CodePaymentDeclined: {NewPaymentDeclined("declined", nil), http.StatusPaymentRequired},
		CodeRateLimited:     {NewRateLimited("slow down"), http.StatusTooManyRequests},
	}
	for code, tc := range cases {
		de := ToDomainError(tc.err)
		assert.Equal(t, code, de.Code)
		assert.Equal(t, tc.status, de.HTTPStatus, code)
	}
	assert.Equal(t, "sale not found", NewNotFound("sale", nil).Error())
}
