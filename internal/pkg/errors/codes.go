package errors

import "net/http"

// Error codes returned to API clients. Messages are English; clients
// translate by code.

// Entity error codes.
const (
	CodeEntityExists       = "ENTITY_ALREADY_EXISTS"
	CodeEntityNotFound     = "ENTITY_NOT_FOUND"
	CodeOverloadParameters = "OVERLOAD_PARAMETERS"
)

// Craft error codes.
const (
	CodeElementNotFound   = "ELEMENT_NOT_FOUND"
	CodeElementLocked     = "ELEMENT_LOCKED"
	CodeCraftFailed       = "CRAFT_FAILED"
	CodeCraftPersistFail  = "CRAFT_PERSIST_FAILED"
	CodeAgentUnavailable  = "AGENT_UNAVAILABLE"
	CodeInvalidCombineArg = "INVALID_COMBINATION"
)

// Auth error codes.
const (
	CodeAuthFailed   = "AUTH_FAILED"
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeTokenInvalid = "TOKEN_INVALID"
)

// Validation and generic codes.
const (
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeInternal         = "INTERNAL_ERROR"
)

// ErrElementLockedf reports that the user has not unlocked an input element.
func ErrElementLockedf(elementID int64) *AppError {
	return &AppError{
		Code:       CodeElementLocked,
		Message:    "element is not unlocked for this user",
		HTTPStatus: http.StatusForbidden,
		Params:     map[string]interface{}{"element_id": elementID},
	}
}

// ErrInvalidCombinationf reports a malformed combination request.
func ErrInvalidCombinationf(reason string) *AppError {
	return &AppError{
		Code:       CodeInvalidCombineArg,
		Message:    "invalid combination: " + reason,
		HTTPStatus: http.StatusBadRequest,
	}
}

// ErrCraftPersistFailed reports a failure after the generated element was
// already committed.
func ErrCraftPersistFailed(err error) *AppError {
	return &AppError{
		Code:       CodeCraftPersistFail,
		Message:    "failed to record crafting result",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}
