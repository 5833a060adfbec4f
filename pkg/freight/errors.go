package freight

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tournevent/freight/pkg/geocoder"
)

// ErrorCode is one of the closed set of failure classes reported to callers.
type ErrorCode string

const (
	CodeInvalidRequest     ErrorCode = "INVALID_REQUEST"
	CodeInvalidCEP         ErrorCode = "INVALID_CEP"
	CodeConfiguration      ErrorCode = "CONFIGURATION_ERROR"
	CodeCEPNotFound        ErrorCode = "CEP_NOT_FOUND"
	CodeGeocoding          ErrorCode = "GEOCODING_ERROR"
	CodeRouteCalculation   ErrorCode = "ROUTE_CALCULATION_ERROR"
	CodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded  ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// Codes lists every error code in a stable order.
var Codes = []ErrorCode{
	CodeInvalidRequest,
	CodeInvalidCEP,
	CodeConfiguration,
	CodeCEPNotFound,
	CodeGeocoding,
	CodeRouteCalculation,
	CodeServiceUnavailable,
	CodeRateLimitExceeded,
	CodeInternal,
}

var defaultStatus = map[ErrorCode]int{
	CodeInvalidRequest:     http.StatusBadRequest,
	CodeInvalidCEP:         http.StatusBadRequest,
	CodeConfiguration:      http.StatusInternalServerError,
	CodeCEPNotFound:        http.StatusNotFound,
	CodeGeocoding:          http.StatusBadGateway,
	CodeRouteCalculation:   http.StatusBadGateway,
	CodeServiceUnavailable: http.StatusServiceUnavailable,
	CodeRateLimitExceeded:  http.StatusTooManyRequests,
	CodeInternal:           http.StatusInternalServerError,
}

// Error is a classified failure. Code, Message and StatusCode are always set.
type Error struct {
	Code       ErrorCode
	Message    string
	StatusCode int
	Details    map[string]any
	Cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError creates an Error with the default HTTP status for its code.
func NewError(code ErrorCode, message string) *Error {
	status, ok := defaultStatus[code]
	if !ok {
		code, status = CodeInternal, http.StatusInternalServerError
	}
	return &Error{
		Code:       code,
		Message:    message,
		StatusCode: status,
	}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithStatusCode overrides the HTTP status code.
func (e *Error) WithStatusCode(code int) *Error {
	e.StatusCode = code
	return e
}

// WithDetail attaches one diagnostic key/value.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Sentinel values for errors.Is comparisons by code.
var (
	ErrInvalidRequest     = &Error{Code: CodeInvalidRequest}
	ErrInvalidCEP         = &Error{Code: CodeInvalidCEP}
	ErrConfiguration      = &Error{Code: CodeConfiguration}
	ErrCEPNotFound        = &Error{Code: CodeCEPNotFound}
	ErrGeocoding          = &Error{Code: CodeGeocoding}
	ErrRouteCalculation   = &Error{Code: CodeRouteCalculation}
	ErrServiceUnavailable = &Error{Code: CodeServiceUnavailable}
	ErrRateLimitExceeded  = &Error{Code: CodeRateLimitExceeded}
	ErrInternal           = &Error{Code: CodeInternal}
)

// Classify converts any error into exactly one classified Error.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}

	switch {
	case errors.Is(err, geocoder.ErrNotFound):
		return NewError(CodeCEPNotFound, "postal code could not be geocoded").WithCause(err)
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(CodeServiceUnavailable, "upstream request timed out").
			WithStatusCode(http.StatusGatewayTimeout).
			WithCause(err)
	case errors.Is(err, context.Canceled):
		return NewError(CodeServiceUnavailable, "request was cancelled").
			WithStatusCode(http.StatusGatewayTimeout).
			WithCause(err)
	case errors.Is(err, geocoder.ErrUnavailable):
		return NewError(CodeGeocoding, "geocoding service failed").WithCause(err)
	default:
		return NewError(CodeInternal, "internal error").WithCause(err)
	}
}

// Retryable reports whether a caller may retry the same request later.
func Retryable(err error) bool {
	fe := Classify(err)
	if fe == nil {
		return false
	}
	return fe.Code == CodeRateLimitExceeded || fe.Code == CodeServiceUnavailable
}
