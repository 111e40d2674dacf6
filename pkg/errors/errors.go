package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels callers match with errors.Is.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInternal       = errors.New("internal error")
	ErrServiceUnavail = errors.New("service unavailable")
	ErrPartialFailure = errors.New("partial failure")
)

// Machine-readable codes carried in error responses.
const (
	CodeNotFound       = "NOT_FOUND"
	CodeInvalidInput   = "INVALID_INPUT"
	CodeInternal       = "INTERNAL_ERROR"
	CodeUnavailable    = "SERVICE_UNAVAILABLE"
	CodePartialFailure = "PARTIAL_FAILURE"
)

// AppError is an error with a response code and HTTP status attached.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Code + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

// NotFound reports a missing resource.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// InvalidInput reports a request the caller must fix.
func InvalidInput(message string) *AppError {
	return &AppError{Code: CodeInvalidInput, Message: message, Status: http.StatusBadRequest, Err: ErrInvalidInput}
}

// Unavailable reports a dependency that is refusing work, keeping the cause.
func Unavailable(dependency string, err error) *AppError {
	return &AppError{
		Code:    CodeUnavailable,
		Message: dependency + " is temporarily unavailable",
		Status:  http.StatusServiceUnavailable,
		Err:     errors.Join(ErrServiceUnavail, err),
	}
}

// Internal hides err behind a generic message.
func Internal(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// Classify returns err as an AppError. Errors that are not already AppErrors
// are matched against the sentinels, in order; anything else is Internal.
func Classify(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return &AppError{Code: CodeNotFound, Message: ErrNotFound.Error(), Status: http.StatusNotFound, Err: err}
	case errors.Is(err, ErrInvalidInput):
		return &AppError{Code: CodeInvalidInput, Message: err.Error(), Status: http.StatusBadRequest, Err: err}
	case errors.Is(err, ErrServiceUnavail):
		return &AppError{Code: CodeUnavailable, Message: "the document index is temporarily unavailable", Status: http.StatusServiceUnavailable, Err: err}
	case errors.Is(err, ErrPartialFailure):
		return &AppError{Code: CodePartialFailure, Message: err.Error(), Status: http.StatusMultiStatus, Err: err}
	default:
		return Internal(err)
	}
}

// HTTPStatus returns the HTTP status code for err.
func HTTPStatus(err error) int {
	return Classify(err).Status
}
