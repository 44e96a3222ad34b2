package common

import (
	"errors"
	"net/http"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates the write collides with an existing record.
	ErrConflict = errors.New("conflict")
	// ErrInvalidInput is returned when the provided payload is invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// Invalid builds a 400 AppError carrying field details.
func Invalid(message string, err error, details any) *AppError {
	if err == nil {
		err = ErrInvalidInput
	}
	return &AppError{Code: "INVALID_INPUT", Message: message, HTTPStatus: http.StatusBadRequest, Err: err, Details: details}
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// WriteError renders err with the canonical error shape. AppErrors keep their status
// and code; the package sentinels map to 400, 404 and 409; anything else is a 500
// whose message is not exposed.
func WriteError(w http.ResponseWriter, err error) {
	var appErr *AppError
	switch {
	case errors.As(err, &appErr):
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		JSONError(w, status, appErr.Code, appErr.Message, appErr.Details)
	case errors.Is(err, ErrInvalidInput):
		JSONError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrConflict):
		JSONError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	default:
		JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
	}
}
