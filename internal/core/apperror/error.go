// Package apperror provides structured error handling for the platform.
// All business errors must use AppError for consistent API responses.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes grouped by failure category
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"
	CodeTimeout  = "TIMEOUT_ERROR"

	// Validation errors (400)
	CodeValidation = "VALIDATION_ERROR"

	// Business rule violations (422)
	CodeInvariantViolation    = "INVARIANT_VIOLATION"
	CodeInsufficientAvailable = "INSUFFICIENT_AVAILABLE"
	CodeInsufficientQuantity  = "INSUFFICIENT_QUANTITY"
	CodeOverRelease           = "OVER_RELEASE"
	CodeInsufficientStock     = "INSUFFICIENT_STOCK"
	CodeInvalidTransition     = "INVALID_TRANSITION"

	// Authorization errors (401, 403)
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeConflict               = "CONFLICT"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeIdempotency            = "IDEMPOTENCY_CONFLICT"
)

// AppError is the standard error type for the platform.
// It implements the error interface and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field errors, quantities, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions for common errors ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInvariantViolation is returned when an update would leave an entity in a
// state that breaks its internal invariants (e.g. reserved > quantity).
func NewInvariantViolation(message string) *AppError {
	return &AppError{
		Code:       CodeInvariantViolation,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewInsufficientAvailable is returned when a reservation exceeds a lot's
// available (unreserved) quantity.
func NewInsufficientAvailable(lotID string, requested, available float64) *AppError {
	return &AppError{
		Code:       CodeInsufficientAvailable,
		Message:    "Insufficient available quantity",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"lot_id":    lotID,
			"requested": requested,
			"available": available,
		},
	}
}

// NewInsufficientQuantity is returned when a consumption exceeds a lot's
// on-hand quantity.
func NewInsufficientQuantity(lotID string, requested, onHand float64) *AppError {
	return &AppError{
		Code:       CodeInsufficientQuantity,
		Message:    "Insufficient quantity",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"lot_id":    lotID,
			"requested": requested,
			"on_hand":   onHand,
		},
	}
}

// NewOverRelease is returned when a release exceeds a lot's reserved quantity.
func NewOverRelease(lotID string, requested, reserved float64) *AppError {
	return &AppError{
		Code:       CodeOverRelease,
		Message:    "Release exceeds reserved quantity",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"lot_id":    lotID,
			"requested": requested,
			"reserved":  reserved,
		},
	}
}

// NewInsufficientStock is returned when FIFO allocation cannot fully cover a
// requested quantity for a product in a warehouse.
func NewInsufficientStock(productID string, requested, available float64) *AppError {
	return &AppError{
		Code:       CodeInsufficientStock,
		Message:    "Insufficient stock",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"product_id": productID,
			"requested":  requested,
			"available":  available,
		},
	}
}

// NewInvalidTransition is returned when a state-machine guard rejects an operation.
func NewInvalidTransition(entity, from, action string) *AppError {
	return &AppError{
		Code:       CodeInvalidTransition,
		Message:    fmt.Sprintf("cannot %s %s in status %q", action, entity, from),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"entity": entity, "status": from, "action": action},
	}
}

// NewConcurrentModification creates an optimistic locking error
func NewConcurrentModification(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeConcurrentModification,
		Message:    "Record was modified by another request. Please refresh and try again.",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewUnauthorized creates an authentication error (401)
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewForbidden creates an authorization error (403)
func NewForbidden(message string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// NewIdempotencyConflict creates error when operation is already in progress
func NewIdempotencyConflict(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotency,
		Message:    "Operation already in progress or completed",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"idempotency_key": key},
	}
}

// NewIdempotencyMismatch is returned when the same idempotency key is reused
// for a different request (different actor/operation/body hash).
func NewIdempotencyMismatch(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotency,
		Message:    "Idempotency key mismatch",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"idempotency_key": key},
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return hasCode(err, CodeNotFound)
}

// IsInvalidTransition checks if error is CodeInvalidTransition
func IsInvalidTransition(err error) bool {
	return hasCode(err, CodeInvalidTransition)
}

// IsConcurrentModification checks if error is CodeConcurrentModification
func IsConcurrentModification(err error) bool {
	return hasCode(err, CodeConcurrentModification)
}

func hasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}
