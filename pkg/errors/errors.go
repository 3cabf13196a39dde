// Package errors defines the sentinel errors shared across the service and
// maps them onto HTTP status codes and messages that are safe to show to
// clients.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrNoSymptoms     = errors.New("no symptoms provided")
	ErrCorpus         = errors.New("training corpus invalid")
	ErrLayoutMismatch = errors.New("feature layout mismatch")
	ErrInvariant      = errors.New("invariant violated")
	ErrInternal       = errors.New("internal error")
	ErrTimeout        = errors.New("operation timed out")
	ErrUnavailable    = errors.New("dependency unavailable")
)

// public lists the sentinels a client may learn about, most specific first.
// Anything else is reported as a generic 500.
var public = []struct {
	err     error
	status  int
	message string
}{
	{ErrNoSymptoms, http.StatusBadRequest, "No symptoms provided"},
	{ErrInvalidInput, http.StatusBadRequest, "invalid request"},
	{ErrTimeout, http.StatusGatewayTimeout, "Request timed out"},
	{ErrUnavailable, http.StatusServiceUnavailable, "Service temporarily unavailable"},
}

const internalMessage = "Internal server error"

// AppError attaches an explicit status and client message to a sentinel.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{Err: sentinel, Message: message, StatusCode: statusCode}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return New(sentinel, statusCode, fmt.Sprintf(format, args...))
}

// IsClientError reports whether err was caused by the caller's input rather
// than by the service.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNoSymptoms) || errors.Is(err, ErrInvalidInput)
}

// HTTPStatusCode maps err to a response status. An AppError's own status
// wins over its sentinel.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	for _, p := range public {
		if errors.Is(err, p.err) {
			return p.status
		}
	}
	return http.StatusInternalServerError
}

// PublicMessage returns text about err that can be sent to a client. Server
// faults never leak their details; an AppError below 500 exposes its own
// message.
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.StatusCode < http.StatusInternalServerError {
		return appErr.Message
	}
	for _, p := range public {
		if errors.Is(err, p.err) {
			return p.message
		}
	}
	return internalMessage
}
