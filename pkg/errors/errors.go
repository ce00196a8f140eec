package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	CodeNotFound        = "NOT_FOUND"
	CodeBadRequest      = "BAD_REQUEST"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeConflict        = "CONFLICT"
	CodeInternal        = "INTERNAL_ERROR"
	CodeTooManyRequests = "TOO_MANY_REQUESTS"
)

// AppError is an error a handler can render as-is: Code is the stable
// machine-readable value, Status the HTTP status it maps to.
type AppError struct {
	Code    string
	Message string
	Status  int
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

func newAppError(code string, status int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Status: status, Err: err}
}

func NotFound(resource string, err error) *AppError {
	return newAppError(CodeNotFound, http.StatusNotFound, resource+" not found", err)
}

func BadRequest(message string, err error) *AppError {
	return newAppError(CodeBadRequest, http.StatusBadRequest, message, err)
}

func Unauthorized(message string, err error) *AppError {
	return newAppError(CodeUnauthorized, http.StatusUnauthorized, message, err)
}

func Forbidden(message string, err error) *AppError {
	return newAppError(CodeForbidden, http.StatusForbidden, message, err)
}

func Conflict(message string) *AppError {
	return newAppError(CodeConflict, http.StatusConflict, message, nil)
}

func Internal(message string, err error) *AppError {
	return newAppError(CodeInternal, http.StatusInternalServerError, message, err)
}

func TooManyRequests(message string, wait time.Duration) *AppError {
	return newAppError(CodeTooManyRequests, http.StatusTooManyRequests,
		fmt.Sprintf("%s (retry in %s)", message, wait.Round(time.Second)), nil)
}

// Is reports whether err carries an AppError with the given code.
func Is(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
