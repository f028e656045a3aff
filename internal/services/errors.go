package services

import (
	"errors"
	"fmt"
	"net/http"

	"ridehail/internal/utils"
	"ridehail/internal/validators"
)

type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
	KindInternal
)

// AppError is the only error type handlers translate into a response body.
// Anything else reaching a handler is reported as an internal error.
type AppError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Details map[string]string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// HTTPStatus maps the kind to a response status. Conflicts are reported as
// 400 to match what existing clients expect for a state guard failure.
func (e *AppError) HTTPStatus() int {
	switch e.Kind {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func NewValidationError(code, message string) *AppError {
	return &AppError{Kind: KindValidation, Code: code, Message: message}
}

// NewFieldValidationError converts validator output into a validation error
// carrying per-field details.
func NewFieldValidationError(errs validators.ValidationErrors) *AppError {
	return &AppError{
		Kind:    KindValidation,
		Code:    utils.CodeValidation,
		Message: errs.Error(),
		Details: errs.Fields(),
	}
}

func NewAuthenticationError(code, message string) *AppError {
	return &AppError{Kind: KindAuthentication, Code: code, Message: message}
}

func NewAuthorizationError(code, message string) *AppError {
	return &AppError{Kind: KindAuthorization, Code: code, Message: message}
}

func NewNotFoundError(code, message string) *AppError {
	return &AppError{Kind: KindNotFound, Code: code, Message: message}
}

func NewConflictError(code, message string) *AppError {
	return &AppError{Kind: KindConflict, Code: code, Message: message}
}

func NewInternalError(message string, err error) *AppError {
	return &AppError{Kind: KindInternal, Code: utils.CodeInternal, Message: message, Err: err}
}

// AsAppError returns err as an *AppError, wrapping unknown errors as internal.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternalError(utils.ErrInternalServer, err)
}
