// Package errors defines the error shape rendered by the HTTP API.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode is the machine-readable code returned to API clients.
type ErrorCode string

const (
	ErrCodeInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrCodeInvalidCredential  ErrorCode = "INVALID_CREDENTIAL"
	ErrCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden          ErrorCode = "FORBIDDEN"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeConflict           ErrorCode = "CONFLICT"
	ErrCodeGone               ErrorCode = "GONE"
	ErrCodeRateLimit          ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeTimeout            ErrorCode = "TIMEOUT"
)

var statusByCode = map[ErrorCode]int{
	ErrCodeInvalidInput:       http.StatusBadRequest,
	ErrCodeInvalidCredential:  http.StatusUnprocessableEntity,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeGone:               http.StatusGone,
	ErrCodeRateLimit:          http.StatusTooManyRequests,
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
}

// HTTPStatus returns the response status for the code. Unknown codes are internal errors.
func (c ErrorCode) HTTPStatus() int {
	if status, ok := statusByCode[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// AppError is a client-facing error. Message is safe to show to the user; Cause is only logged.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Details map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

func (e *AppError) Status() int { return e.Code.HTTPStatus() }

// With attaches a detail rendered under "details" in the response body.
func (e *AppError) With(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message, Cause: err}
}

func NewInvalidInputError(message string) *AppError {
	return New(ErrCodeInvalidInput, message)
}

func NewUnauthorizedError(message string) *AppError {
	return New(ErrCodeUnauthorized, message)
}

func NewForbiddenError(message string) *AppError {
	return New(ErrCodeForbidden, message)
}

func NewRateLimitError() *AppError {
	return New(ErrCodeRateLimit, "rate limit exceeded")
}

func NewServiceUnavailableError(message string) *AppError {
	return New(ErrCodeServiceUnavailable, message)
}

// As returns the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
