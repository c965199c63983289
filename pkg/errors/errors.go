package errors

import (
	"errors"
	"fmt"
	"net/http"

	"beamcast/internal/core/domain"
)

// ErrorCode represents application error codes
type ErrorCode string

const (
	ErrCodeInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrCodeConflict           ErrorCode = "CONFLICT"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// AppError represents an application error with code and context
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Common error constructors
func NewInvalidInputError(message string) *AppError {
	return NewAppError(ErrCodeInvalidInput, message, http.StatusBadRequest)
}

func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrCodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func NewUnauthorizedError(message string) *AppError {
	return NewAppError(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

func NewConflictError(message string) *AppError {
	return NewAppError(ErrCodeConflict, message, http.StatusConflict)
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrCodeInternal, message, http.StatusInternalServerError)
}

func NewServiceUnavailableError(message string) *AppError {
	return NewAppError(ErrCodeServiceUnavailable, message, http.StatusServiceUnavailable)
}

// FromDomain maps core sentinel errors to transport errors. Unknown
// errors become internal errors.
func FromDomain(err error) *AppError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrValueOutOfRange),
		errors.Is(err, domain.ErrInvalidIngestURL):
		return &AppError{
			Code:       ErrCodeInvalidInput,
			Message:    err.Error(),
			HTTPStatus: http.StatusBadRequest,
			Cause:      err,
		}
	case errors.Is(err, domain.ErrProbeInProgress):
		return &AppError{
			Code:       ErrCodeConflict,
			Message:    err.Error(),
			HTTPStatus: http.StatusConflict,
			Cause:      err,
		}
	case errors.Is(err, domain.ErrNoSession):
		return &AppError{
			Code:       ErrCodeConflict,
			Message:    err.Error(),
			HTTPStatus: http.StatusConflict,
			Cause:      err,
		}
	case errors.Is(err, domain.ErrDeviceUnavailable):
		return &AppError{
			Code:       ErrCodeServiceUnavailable,
			Message:    err.Error(),
			HTTPStatus: http.StatusServiceUnavailable,
			Cause:      err,
		}
	default:
		return &AppError{
			Code:       ErrCodeInternal,
			Message:    err.Error(),
			HTTPStatus: http.StatusInternalServerError,
			Cause:      err,
		}
	}
}

// GetAppError extracts AppError from error chain
func GetAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}
