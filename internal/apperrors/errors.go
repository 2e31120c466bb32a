// Package apperrors provides the structured error type used across the
// ingestion core, mapping each error to an HTTP status code for the stats
// endpoint and to one of spec.md §7's error-handling categories.
package apperrors

import (
	"fmt"
	"net/http"
)

// ErrorType discriminates both the HTTP-facing category and the §7
// handling category (Transient/Extraction/Validation/Invariant/Durable-write
// map onto a subset of these).
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeAuth       ErrorType = "auth"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeRateLimit  ErrorType = "rate_limit"
	ErrorTypeDatabase   ErrorType = "database"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeInternal   ErrorType = "internal"

	// Domain-specific categories from spec.md §7.
	ErrorTypeTransient  ErrorType = "transient"
	ErrorTypeExtraction ErrorType = "extraction"
	ErrorTypeInvariant  ErrorType = "invariant"
)

var statusCodes = map[ErrorType]int{
	ErrorTypeValidation: http.StatusBadRequest,
	ErrorTypeAuth:       http.StatusUnauthorized,
	ErrorTypeNotFound:   http.StatusNotFound,
	ErrorTypeConflict:   http.StatusConflict,
	ErrorTypeTimeout:    http.StatusRequestTimeout,
	ErrorTypeRateLimit:  http.StatusTooManyRequests,
	ErrorTypeDatabase:   http.StatusInternalServerError,
	ErrorTypeNetwork:    http.StatusInternalServerError,
	ErrorTypeInternal:   http.StatusInternalServerError,
	ErrorTypeTransient:  http.StatusServiceUnavailable,
	ErrorTypeExtraction: http.StatusUnprocessableEntity,
	ErrorTypeInvariant:  http.StatusInternalServerError,
}

// AppError is the single structured error type returned by the ingestion
// core. Handlers never panic on recoverable errors; they wrap the failure in
// an AppError and let the caller decide how to surface it (§7).
type AppError struct {
	Type       ErrorType
	Message    string
	Details    string
	StatusCode int
	Cause      error
}

func New(t ErrorType, message string) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		StatusCode: statusCodeFor(t),
	}
}

func Newf(t ErrorType, format string, args ...any) *AppError {
	return New(t, fmt.Sprintf(format, args...))
}

func Wrap(cause error, t ErrorType, message string) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		StatusCode: statusCodeFor(t),
		Cause:      cause,
	}
}

func Wrapf(cause error, t ErrorType, format string, args ...any) *AppError {
	return Wrap(cause, t, fmt.Sprintf(format, args...))
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithDetailsf(format string, args ...any) *AppError {
	e.Details = fmt.Sprintf(format, args...)
	return e
}

func statusCodeFor(t ErrorType) int {
	if code, ok := statusCodes[t]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// Predefined constructors for the categories spec.md §7 names directly.

func NewValidationError(message string) *AppError {
	return New(ErrorTypeValidation, message)
}

func NewDatabaseError(operation string, cause error) *AppError {
	return Wrapf(cause, ErrorTypeDatabase, "database operation failed: %s", operation)
}

func NewNotFoundError(what string) *AppError {
	return Newf(ErrorTypeNotFound, "%s not found", what)
}

func NewTimeoutError(operation string) *AppError {
	return Newf(ErrorTypeTimeout, "operation timed out: %s", operation)
}

func NewTransientError(operation string, cause error) *AppError {
	return Wrapf(cause, ErrorTypeTransient, "transient failure: %s", operation)
}

func NewExtractionError(url string, cause error) *AppError {
	return Wrapf(cause, ErrorTypeExtraction, "extraction failed for %s", url)
}

func NewInvariantError(message string) *AppError {
	return New(ErrorTypeInvariant, message)
}

// IsType reports whether err is an *AppError of the given type.
func IsType(err error, t ErrorType) bool {
	ae, ok := err.(*AppError)
	return ok && ae.Type == t
}

// GetType returns err's ErrorType, or ErrorTypeInternal for a plain error.
func GetType(err error) ErrorType {
	if ae, ok := err.(*AppError); ok {
		return ae.Type
	}
	return ErrorTypeInternal
}

// GetStatusCode returns err's HTTP status code, or 500 for a plain error.
func GetStatusCode(err error) int {
	if ae, ok := err.(*AppError); ok {
		return ae.StatusCode
	}
	return http.StatusInternalServerError
}

var safeMessages = map[ErrorType]string{
	ErrorTypeNotFound:  "the requested resource could not be found",
	ErrorTypeAuth:      "authentication failed",
	ErrorTypeTimeout:   "the operation timed out",
	ErrorTypeRateLimit: "rate limit exceeded, try again later",
	ErrorTypeConflict:  "the resource was modified concurrently",
}

// SafeErrorMessage returns a message safe to surface to an end user, passing
// validation messages through unchanged and genericizing everything else.
func SafeErrorMessage(err error) string {
	ae, ok := err.(*AppError)
	if !ok {
		return "an unexpected error occurred"
	}
	if ae.Type == ErrorTypeValidation {
		return ae.Message
	}
	if msg, ok := safeMessages[ae.Type]; ok {
		return msg
	}
	return "an internal error occurred"
}

// LogFields produces structured fields suitable for a zap/logr sugared log
// call, not a bare error string.
func LogFields(err error) map[string]any {
	fields := map[string]any{"error": err.Error()}
	ae, ok := err.(*AppError)
	if !ok {
		return fields
	}
	fields["error_type"] = string(ae.Type)
	fields["status_code"] = ae.StatusCode
	if ae.Details != "" {
		fields["error_details"] = ae.Details
	}
	if ae.Cause != nil {
		fields["underlying_error"] = ae.Cause.Error()
	}
	return fields
}

// Chain joins non-nil errors with " -> ", returning nil if none are set and
// the single error unwrapped if exactly one is set.
func Chain(errs ...error) error {
	var present []error
	for _, e := range errs {
		if e != nil {
			present = append(present, e)
		}
	}
	switch len(present) {
	case 0:
		return nil
	case 1:
		return present[0]
	default:
		msg := present[0].Error()
		for _, e := range present[1:] {
			msg += " -> " + e.Error()
		}
		return fmt.Errorf("%s", msg)
	}
}
