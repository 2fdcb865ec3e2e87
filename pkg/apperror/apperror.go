// Package apperror carries the service error taxonomy. Internal messages and
// causes are kept for logging; PublicMessage is what a client may see.
package apperror

import "errors"

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Internal message (for logs)
	Public   string            // Optional client-facing override
	Metadata map[string]string // Field details for validation errors
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// PublicMessage returns the text safe to send to a client.
func (e *Error) PublicMessage() string {
	if e.Public != "" {
		return e.Public
	}
	if msg, ok := publicMessages[e.Code]; ok {
		return msg
	}
	return e.Message
}

// WithPublic sets the client-facing message and returns e.
func (e *Error) WithPublic(message string) *Error {
	e.Public = message
	return e
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Validation creates a VALIDATION error carrying per-field messages.
func Validation(message string, fields map[string]string) *Error {
	return &Error{Code: CodeValidation, Message: message, Metadata: fields}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Sentinels for errors.Is checks by code.
var (
	ErrValidation           = New(CodeValidation, "validation failed")
	ErrUnauthenticated      = New(CodeUnauthenticated, "unauthenticated")
	ErrForbidden            = New(CodeForbidden, "forbidden")
	ErrConflict             = New(CodeConflict, "conflict")
	ErrNotFound             = New(CodeNotFound, "not found")
	ErrUpstream             = New(CodeUpstream, "upstream failure")
	ErrInvalidOrExpiredCode = New(CodeInvalidOrExpiredCode, "invalid or expired code")
	ErrInvalidPassword      = New(CodeInvalidPassword, "invalid password")
	ErrFederatedAccountOnly = New(CodeFederatedAccountOnly, "federated account only")
	ErrRateLimited          = New(CodeRateLimited, "rate limited")
)
