package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a domain error carrying its HTTP status and a stable code
// clients can switch on.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Derive wraps cause under the code and status of base.
func Derive(base *Error, cause error, message string) *Error {
	if message == "" {
		message = base.Message
	}
	return Wrap(cause, base.Code, base.Status, message)
}

// Is matches another *Error by code, so clones and derived errors compare
// equal to the sentinel they came from.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrTooManyRequests    = New("TOO_MANY_REQUESTS", http.StatusTooManyRequests, "too many requests")
	ErrUnavailable        = New("SERVICE_UNAVAILABLE", http.StatusServiceUnavailable, "service temporarily unavailable")

	// Time placement rejections are reported as bad requests, never retried.
	ErrScheduleConflict = New("SCHEDULE_CONFLICT", http.StatusBadRequest, "time range conflicts with an existing record")
	ErrOutsidePeriod    = New("OUTSIDE_PERIOD", http.StatusBadRequest, "time range falls outside the academic period")
	ErrInvalidInterval  = New("INVALID_INTERVAL", http.StatusBadRequest, "start must be before end")
	ErrInvalidReference = New("INVALID_REFERENCE", http.StatusBadRequest, "referenced record not found or inactive")

	// ErrCacheMiss signals an absent cache entry.
	ErrCacheMiss = errors.New("cache miss")
)

// FromError unwraps the first *Error in the chain. Anything else becomes
// an opaque internal error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone copies a sentinel with a request specific message.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
