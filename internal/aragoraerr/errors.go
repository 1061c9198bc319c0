// Package aragoraerr defines the structured error kinds that cross
// component boundaries, following the classification of spec §7 ("error
// kinds, not type names") rather than ad-hoc string-matched errors.
package aragoraerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable, machine-readable error classification.
type Code string

const (
	CodeInput       Code = "input"
	CodeAuth        Code = "auth"
	CodeRateLimited Code = "rate_limited"
	CodeTransient   Code = "transient"
	CodePermanent   Code = "permanent"
	CodeIntegrity   Code = "integrity"
	CodeCanceled    Code = "canceled"
	CodeTimeout     Code = "timeout"
)

// Error is the structured failure type returned across component
// boundaries. It never carries stack traces, keys, or provider-internal
// identifiers in Message.
type Error struct {
	Code       Code
	Message    string
	Cause      error
	HTTPStatus int
	RetryAfter int // seconds, only meaningful for CodeRateLimited
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func statusForCode(c Code) int {
	switch c {
	case CodeInput:
		return http.StatusBadRequest
	case CodeAuth:
		return http.StatusUnauthorized
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeTransient:
		return http.StatusServiceUnavailable
	case CodePermanent:
		return http.StatusBadRequest
	case CodeIntegrity:
		return http.StatusConflict
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// New constructs an Error with the status implied by code.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message, HTTPStatus: statusForCode(code)}
}

// Wrap constructs an Error carrying cause, classified by code.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause, HTTPStatus: statusForCode(code)}
}

// RateLimited constructs a CodeRateLimited error with a retry-after hint.
func RateLimited(retryAfter int) *Error {
	return &Error{
		Code:       CodeRateLimited,
		Message:    "rate limit exceeded",
		HTTPStatus: http.StatusTooManyRequests,
		RetryAfter: retryAfter,
	}
}

// Is implements classification via errors.Is against a sentinel *Error
// carrying only a Code (the common "is this kind of failure" query).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// CodeOf extracts the Code of err if it is (or wraps) an *Error, and a
// zero Code otherwise.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsTransient reports whether err is classified as retryable.
func IsTransient(err error) bool {
	return CodeOf(err) == CodeTransient
}

// IsCanceled reports whether err is classified as cooperative cancellation.
func IsCanceled(err error) bool {
	return CodeOf(err) == CodeCanceled
}

// Sentinels used by errors.Is callers that don't need a custom message.
var (
	ErrUnauthorized   = New(CodeAuth, "unauthorized")
	ErrCanceled       = New(CodeCanceled, "canceled")
	ErrTimeout        = New(CodeTimeout, "timeout")
	ErrDuplicateSlug  = New(CodeIntegrity, "duplicate slug")
	ErrSchemaMismatch = New(CodeIntegrity, "schema version mismatch")
)
