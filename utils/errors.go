package utils

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	CodeValidation     ErrorCode = "validation_error"
	CodeUnauthorized   ErrorCode = "unauthorized"
	CodeForbidden      ErrorCode = "forbidden"
	CodeNotFound       ErrorCode = "not_found"
	CodeConflict       ErrorCode = "conflict"
	CodeGatewayFailure ErrorCode = "gateway_failure"
	CodeGatewayTimeout ErrorCode = "gateway_timeout"
	CodeInternal       ErrorCode = "internal_error"
)

// HTTPStatus maps an error code to the response status.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeGatewayFailure:
		return http.StatusBadGateway
	case CodeGatewayTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the error type returned across service boundaries. Message is
// safe to show to end users; Err keeps the technical cause.
type AppError struct {
	Code    ErrorCode
	Message string
	Details interface{}
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on code so callers can write errors.Is(err, utils.ErrGatewayTimeout).
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Message == "" && t.Code == e.Code
}

// sentinels for errors.Is
var (
	ErrValidation     = &AppError{Code: CodeValidation}
	ErrUnauthorized   = &AppError{Code: CodeUnauthorized}
	ErrForbidden      = &AppError{Code: CodeForbidden}
	ErrNotFound       = &AppError{Code: CodeNotFound}
	ErrConflict       = &AppError{Code: CodeConflict}
	ErrGatewayFailure = &AppError{Code: CodeGatewayFailure}
	ErrGatewayTimeout = &AppError{Code: CodeGatewayTimeout}
	ErrInternal       = &AppError{Code: CodeInternal}
)

func NewValidationError(field, reason string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: fmt.Sprintf("%s %s", field, reason),
		Details: map[string]string{"field": field},
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{Code: CodeUnauthorized, Message: message}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{Code: CodeForbidden, Message: message}
}

func NewNotFoundError(message string) *AppError {
	return &AppError{Code: CodeNotFound, Message: message}
}

func NewConflictError(message string, details interface{}) *AppError {
	return &AppError{Code: CodeConflict, Message: message, Details: details}
}

func NewGatewayFailure(message string, err error) *AppError {
	return &AppError{Code: CodeGatewayFailure, Message: message, Err: err}
}

func NewGatewayTimeout(message string, err error) *AppError {
	return &AppError{Code: CodeGatewayTimeout, Message: message, Err: err}
}

func NewInternalError(err error) *AppError {
	return &AppError{Code: CodeInternal, Message: "Internal server error", Err: err}
}

// AsAppError converts any error into an *AppError, wrapping unknown ones as
// internal errors.
func AsAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternalError(err)
}
