package http

import (
	"fmt"
	"net/http"
)

// AppError carries the HTTP status and the detail rendered to the caller.
type AppError struct {
	Status int
	Detail ValidationError
	Err    error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Detail.Message, e.Err)
	}
	return e.Detail.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates an application error.
func NewAppError(status int, code, field, message string) *AppError {
	return &AppError{
		Status: status,
		Detail: ValidationError{Code: code, Field: field, Message: message},
	}
}

// WithParam sets a single detail param.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Detail.Params == nil {
		e.Detail.Params = make(map[string]interface{})
	}
	e.Detail.Params[key] = value
	return e
}

// WithError wraps an underlying error. It is logged, never rendered.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// BadRequestError creates a 400 error.
func BadRequestError(code, field, message string) *AppError {
	return NewAppError(http.StatusBadRequest, code, field, message)
}

// NotFoundError creates a 404 error.
func NotFoundError(message string) *AppError {
	return NewAppError(http.StatusNotFound, "ERR_NOT_FOUND", "", message)
}

// TooManyRequestsError creates a 429 error.
func TooManyRequestsError(message string) *AppError {
	return NewAppError(http.StatusTooManyRequests, "ERR_RATE_LIMITED", "", message)
}

// InternalError creates a 500 error.
func InternalError(message string) *AppError {
	return NewAppError(http.StatusInternalServerError, "ERR_INTERNAL", "", message)
}
