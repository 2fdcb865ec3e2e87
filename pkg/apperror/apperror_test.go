package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := Wrap(CodeInvalidOrExpiredCode, "otp mismatch", errors.New("codes differ"))

	assert.True(t, errors.Is(err, ErrInvalidOrExpiredCode))
	assert.False(t, errors.Is(err, ErrNotFound))

	wrapped := fmt.Errorf("verify: %w", err)
	assert.True(t, errors.Is(wrapped, ErrInvalidOrExpiredCode))
	assert.Equal(t, CodeInvalidOrExpiredCode, CodeOf(wrapped))
}

func TestErrorUnwrapReachesCause(t *testing.T) {
	cause := errors.New("db down")
	err := Wrap(CodeUpstream, "create user", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "create user: db down", err.Error())
}

func TestPublicMessageCollapsesSecurityCodes(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{New(CodeInvalidPassword, "password mismatch for user 42"), "Invalid credentials"},
		{New(CodeInvalidOrExpiredCode, "otp expired"), "Invalid or expired OTP"},
		{Wrap(CodeUpstream, "insert failed", errors.New("pq: boom")), "Internal server error"},
		{New(CodeNotFound, "User not found"), "User not found"},
		{New(CodeInvalidPassword, "x").WithPublic("Current password is incorrect"), "Current password is incorrect"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.PublicMessage())
	}
}

func TestHTTPStatus(t *testing.T) {
	require.Equal(t, http.StatusBadRequest, CodeValidation.HTTPStatus())
	require.Equal(t, http.StatusUnauthorized, CodeUnauthenticated.HTTPStatus())
	require.Equal(t, http.StatusForbidden, CodeForbidden.HTTPStatus())
	require.Equal(t, http.StatusConflict, CodeConflict.HTTPStatus())
	require.Equal(t, http.StatusNotFound, CodeNotFound.HTTPStatus())
	require.Equal(t, http.StatusTooManyRequests, CodeRateLimited.HTTPStatus())
	require.Equal(t, http.StatusInternalServerError, CodeUpstream.HTTPStatus())
	require.Equal(t, http.StatusInternalServerError, Code("SOMETHING_NEW").HTTPStatus())
}

func TestCodeOfNonDomainError(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
}
