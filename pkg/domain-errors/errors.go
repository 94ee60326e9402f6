// Package domainerrors carries coded errors across service boundaries so the
// transport layer can translate outcomes without inspecting error strings.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a stable error category. Codes are part of the public API:
// callers branch on them and the HTTP layer maps them to status codes.
type Code string

const (
	// CodeInvalidFormat rejects malformed user input (bad plate strings).
	// Never retried, no upstream access.
	CodeInvalidFormat Code = "INVALID_FORMAT"

	// CodeRateLimited means the caller-side query budget is exhausted.
	// Surfaced with a retry-after hint, never retried internally.
	CodeRateLimited Code = "RATE_LIMITED"

	// CodeTimeout covers a per-fetch timeout or the overall query budget.
	CodeTimeout Code = "TIMEOUT"

	// CodeUpstreamUnavailable is a transient upstream failure that survived
	// the full retry budget (network errors, 5xx responses).
	CodeUpstreamUnavailable Code = "UPSTREAM_UNAVAILABLE"

	// CodeRecordNotFound is a definitive upstream 404 for the plate.
	CodeRecordNotFound Code = "RECORD_NOT_FOUND"

	// CodeUpstreamRejected is any other permanent 4xx from the registry.
	CodeUpstreamRejected Code = "UPSTREAM_REJECTED"

	// CodeDataError means the upstream answered but the payload could not be
	// decomposed. Such payloads are never cached.
	CodeDataError Code = "DATA_ERROR"

	// CodeNotFound is a local lookup miss (unknown session, absent entry).
	CodeNotFound Code = "NOT_FOUND"

	// CodeBadRequest is a malformed API request body or parameter.
	CodeBadRequest Code = "BAD_REQUEST"

	// CodeInternal is the fallback for unexpected failures.
	CodeInternal Code = "INTERNAL"
)

// Error pairs a Code with a human-readable message and an optional cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. A nil err returns
// nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// CodeOf extracts the code from an error chain, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the human-readable message from a coded error, or the
// plain error text for uncoded errors.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// ToHTTPStatus maps a code to its HTTP response status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidFormat, CodeBadRequest:
		return http.StatusBadRequest
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeUpstreamUnavailable:
		return http.StatusBadGateway
	case CodeRecordNotFound, CodeNotFound:
		return http.StatusNotFound
	case CodeUpstreamRejected:
		return http.StatusUnprocessableEntity
	case CodeDataError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
