package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
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

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid username or password")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Ingestion rejections.
var (
	ErrUnsupportedType = New("UNSUPPORTED_TYPE", http.StatusUnsupportedMediaType, "file type is not allowed")
	ErrTooLarge        = New("FILE_TOO_LARGE", http.StatusRequestEntityTooLarge, "file exceeds the maximum allowed size")
	ErrMalware         = New("MALWARE_DETECTED", http.StatusUnprocessableEntity, "file contains malware and has been rejected")
	ErrStorage         = New("STORAGE_ERROR", http.StatusServiceUnavailable, "file storage unavailable")
)

// Order and settlement guard violations.
var (
	ErrInvalidState         = New("INVALID_STATE", http.StatusConflict, "order is not in a state that allows this operation")
	ErrCancellationExpired  = New("CANCELLATION_WINDOW_EXPIRED", http.StatusConflict, "order can only be cancelled within 30 seconds")
	ErrChecksumMismatch     = New("CHECKSUM_MISMATCH", http.StatusBadRequest, "invalid checksum")
	ErrPaymentDisabled      = New("PAYMENT_DISABLED", http.StatusBadRequest, "payment processing is currently disabled")
	ErrPaymentNotConfigured = New("PAYMENT_NOT_CONFIGURED", http.StatusBadRequest, "payment merchant id not configured")
	ErrPaymentConflict      = New("PAYMENT_CONFLICT", http.StatusConflict, "payment already settled with a different outcome")
)

// FromError normalises any error into an *Error.
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

// Clone returns a copy of the error allowing for message overrides.
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
