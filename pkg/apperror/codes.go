package apperror

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	CodeValidation           Code = "VALIDATION"
	CodeUnauthenticated      Code = "UNAUTHENTICATED"
	CodeForbidden            Code = "FORBIDDEN"
	CodeConflict             Code = "CONFLICT"
	CodeNotFound             Code = "NOT_FOUND"
	CodeUpstream             Code = "UPSTREAM"
	CodeInvalidOrExpiredCode Code = "INVALID_OR_EXPIRED_CODE"
	CodeInvalidPassword      Code = "INVALID_PASSWORD"
	CodeFederatedAccountOnly Code = "FEDERATED_ACCOUNT_ONLY"
	CodeRateLimited          Code = "RATE_LIMITED"
	CodeInternal             Code = "INTERNAL"
)

// HTTPStatus maps the code to the response status.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeValidation, CodeFederatedAccountOnly:
		return http.StatusBadRequest
	case CodeUnauthenticated, CodeInvalidOrExpiredCode, CodeInvalidPassword:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeConflict:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// publicMessages holds the client-facing text for codes whose internal
// message must not leak (credential and code checks, store failures).
var publicMessages = map[Code]string{
	CodeUnauthenticated:      "Unauthorized",
	CodeInvalidOrExpiredCode: "Invalid or expired OTP",
	CodeInvalidPassword:      "Invalid credentials",
	CodeUpstream:             "Internal server error",
	CodeInternal:             "Internal server error",
	CodeRateLimited:          "Too many attempts, try again later",
}
