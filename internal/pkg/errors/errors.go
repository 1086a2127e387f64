// Package errors provides the error taxonomy shared by the craftbot backend.
//
// Domain services return the sentinel kinds below (usually wrapped in an
// EntityError). AppError is the transport-facing type: only the outermost
// HTTP/bot handler turns a domain error into one.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain error kinds.
var (
	// ErrEntityAlreadyExists reports a uniqueness precondition violated on insert.
	ErrEntityAlreadyExists = errors.New("entity already exists")
	// ErrEntityNotFound reports a missing lookup or removal target.
	ErrEntityNotFound = errors.New("entity not found")
	// ErrOverloadParameters reports mutually exclusive filters supplied together.
	ErrOverloadParameters = errors.New("overloaded parameters")
	// ErrInvalidInput reports a payload that fails validation.
	ErrInvalidInput = errors.New("invalid input")
)

// EntityError attaches the entity and operation to a domain error kind.
type EntityError struct {
	Entity string
	Op     string
	Err    error
}

// Error implements the error interface.
func (e *EntityError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Entity, e.Op, e.Err)
}

// Unwrap returns the error kind for errors.Is support.
func (e *EntityError) Unwrap() error {
	return e.Err
}

// AlreadyExists builds an EntityError of kind ErrEntityAlreadyExists.
func AlreadyExists(entity, op string) error {
	return &EntityError{Entity: entity, Op: op, Err: ErrEntityAlreadyExists}
}

// NotFoundEntity builds an EntityError of kind ErrEntityNotFound.
func NotFoundEntity(entity, op string) error {
	return &EntityError{Entity: entity, Op: op, Err: ErrEntityNotFound}
}

// Overload builds an EntityError of kind ErrOverloadParameters.
func Overload(entity, op string) error {
	return &EntityError{Entity: entity, Op: op, Err: ErrOverloadParameters}
}

// Invalid builds an EntityError of kind ErrInvalidInput with a reason.
func Invalid(entity, op, reason string) error {
	return &EntityError{Entity: entity, Op: op, Err: fmt.Errorf("%w: %s", ErrInvalidInput, reason)}
}

// AppError is a structured application error with HTTP status and error code.
type AppError struct {
	// Code is a machine-readable error code (e.g., "ELEMENT_NOT_FOUND").
	Code string `json:"code"`

	// Message is a human-readable error message.
	Message string `json:"message"`

	// HTTPStatus is the corresponding HTTP status code.
	HTTPStatus int `json:"-"`

	// Params carries structured context for the client.
	Params map[string]interface{} `json:"params,omitempty"`

	// Err is the wrapped underlying error. Never serialized.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an existing error into an AppError.
func Wrap(err error, code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// WithParams attaches structured parameters to the error.
func (e *AppError) WithParams(params map[string]interface{}) *AppError {
	if e == nil || len(params) == 0 {
		return e
	}
	e.Params = params
	return e
}

// NotFound creates a 404 error.
func NotFound(code, message string) *AppError {
	return New(code, message, http.StatusNotFound)
}

// BadRequest creates a 400 error.
func BadRequest(code, message string) *AppError {
	return New(code, message, http.StatusBadRequest)
}

// Unauthorized creates a 401 error.
func Unauthorized(code, message string) *AppError {
	return New(code, message, http.StatusUnauthorized)
}

// Forbidden creates a 403 error.
func Forbidden(code, message string) *AppError {
	return New(code, message, http.StatusForbidden)
}

// Conflict creates a 409 error.
func Conflict(code, message string) *AppError {
	return New(code, message, http.StatusConflict)
}

// Internal creates a 500 error.
func Internal(code, message string) *AppError {
	return New(code, message, http.StatusInternalServerError)
}

// IsAppError checks if an error is an AppError and returns it.
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// FromDomain translates a domain error kind into an AppError.
// It returns nil for errors that are not domain kinds; callers treat those
// as internal failures.
func FromDomain(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := IsAppError(err); ok {
		return appErr
	}

	entity := "entity"
	var entErr *EntityError
	if errors.As(err, &entErr) {
		entity = entErr.Entity
	}

	switch {
	case errors.Is(err, ErrEntityAlreadyExists):
		return Wrap(err, CodeEntityExists, entity+" already exists", http.StatusConflict)
	case errors.Is(err, ErrEntityNotFound):
		return Wrap(err, CodeEntityNotFound, entity+" not found", http.StatusNotFound)
	case errors.Is(err, ErrOverloadParameters):
		return Wrap(err, CodeOverloadParameters, "mutually exclusive parameters supplied", http.StatusBadRequest)
	case errors.Is(err, ErrInvalidInput):
		return Wrap(err, CodeValidationFailed, err.Error(), http.StatusBadRequest)
	}
	return nil
}
