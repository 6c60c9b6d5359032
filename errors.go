package connectx

import (
	"errors"
	"fmt"
)

// Error codes returned by the API.
const (
	ErrCodeValidationError = "validation_error"
	ErrCodeUnauthorized    = "unauthorized"
	ErrCodeForbidden       = "forbidden"
	ErrCodeNotFound        = "not_found"
	ErrCodeInternalError   = "internal_error"
)

// Sentinel errors for common conditions.
var (
	// ErrNotInitialized indicates a call was issued before Initialize succeeded.
	ErrNotInitialized = errors.New("connectx: session not initialized")

	// ErrAlreadyInitialized indicates Initialize was called again with different credentials.
	ErrAlreadyInitialized = errors.New("connectx: session already initialized with different credentials")

	// ErrClosed indicates the client has been closed.
	ErrClosed = errors.New("connectx: client closed")

	// ErrQueueFull indicates a fire-and-forget call was dropped because the dispatch queue is full.
	ErrQueueFull = errors.New("connectx: dispatch queue full")

	// ErrEmptyAnonymousID indicates the backend answered without an anonymous id.
	ErrEmptyAnonymousID = errors.New("connectx: empty anonymous id")

	// ErrUnauthorized indicates an invalid or missing tenant token.
	ErrUnauthorized = errors.New("connectx: unauthorized")

	// ErrValidation indicates a validation error in the request.
	ErrValidation = errors.New("connectx: validation error")
)

// APIError represents an error response from the ConnectX API.
type APIError struct {
	// HTTPStatus is the HTTP status code.
	HTTPStatus int
	// Code is the error code from the API.
	Code string
	// Message is the human-readable error message.
	Message string
	// RequestID is the unique identifier for the request (for support).
	RequestID string
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("connectx: %s (code=%s, status=%d, request_id=%s)",
			e.Message, e.Code, e.HTTPStatus, e.RequestID)
	}
	return fmt.Sprintf("connectx: %s (code=%s, status=%d)",
		e.Message, e.Code, e.HTTPStatus)
}

// Is implements errors.Is support for sentinel errors.
func (e *APIError) Is(target error) bool {
	switch {
	case target == ErrUnauthorized:
		return e.HTTPStatus == 401 || e.Code == ErrCodeUnauthorized
	case target == ErrValidation:
		return e.Code == ErrCodeValidationError
	default:
		return false
	}
}

// ValidationError represents a client-side validation error.
// It wraps failures from the internal validation package.
type ValidationError struct {
	// Field is the name of the field that failed validation.
	Field string
	// Message is the human-readable error message.
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("connectx: validation error: %s: %s", e.Field, e.Message)
}

// Is implements errors.Is support.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NetworkError wraps network-related errors.
type NetworkError struct {
	Op  string // Operation that failed (e.g., "request")
	Err error  // Underlying error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("connectx: network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// InitError reports a failed Initialize. The session stays uninitialized and
// dependent calls keep failing with ErrNotInitialized.
type InitError struct {
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("connectx: initialize failed: %v", e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// TransportError reports a fire-and-forget delivery failure. It is never
// returned to the caller of Track, Identify or OpenTicket; it is logged and
// passed to the OnDropped hook.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("connectx: %s delivery failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// SubmitError reports a failed response-bearing submission such as CreateRecord.
type SubmitError struct {
	Op  string
	Err error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("connectx: %s failed: %v", e.Op, e.Err)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// FetchError reports a failed anonymous id fetch.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("connectx: anonymous id fetch failed: %v", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsUnauthorized reports whether the error is an authorization error.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsValidationError reports whether the error is a client- or server-side validation error.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsClientValidationError reports whether the error is a client-side validation error.
func IsClientValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}
