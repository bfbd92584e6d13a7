// Package apperr provides coded domain errors and their user-facing messages.
package apperr

import (
	"errors"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeUnknown         Code = "UNKNOWN"
	CodeNotFound        Code = "NOT_FOUND"
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeUnavailable     Code = "UNAVAILABLE"

	// Upload errors
	CodeFileTooLarge Code = "FILE_TOO_LARGE"

	// Gallery errors
	CodeCategoryExists   Code = "CATEGORY_EXISTS"
	CodeCategoryNotEmpty Code = "CATEGORY_NOT_EMPTY"

	// Auth errors
	CodeAuthUserNotFound   Code = "AUTH_USER_NOT_FOUND"
	CodeAuthWrongPassword  Code = "AUTH_WRONG_PASSWORD"
	CodeAuthInvalidEmail   Code = "AUTH_INVALID_EMAIL"
	CodeAuthEmailInUse     Code = "AUTH_EMAIL_IN_USE"
	CodeAuthNotConfigured  Code = "AUTH_CONFIGURATION_NOT_FOUND"
	CodeAuthSessionInvalid Code = "AUTH_SESSION_INVALID"
)

// Error is the domain error type.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Internal message (for logs)
	Metadata map[string]string // Additional context for user messages
	Cause    error             // Wrapped underlying error
}

func (e *Error) Error() string {
	if e.Cause != nil && e.Message != "" {
		return e.Message + ": " + e.Cause.Error()
	}
	if e.Message == "" && e.Cause != nil {
		return e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// HasCode reports whether err carries code.
func HasCode(err error, code Code) bool {
	return errors.Is(err, &Error{Code: code})
}

// HTTPStatus maps an error to the status an HTTP handler should answer with.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case "":
		return http.StatusOK
	case CodeNotFound, CodeAuthUserNotFound:
		return http.StatusNotFound
	case CodeInvalidArgument, CodeFileTooLarge, CodeAuthInvalidEmail:
		return http.StatusBadRequest
	case CodeCategoryExists, CodeCategoryNotEmpty, CodeAuthEmailInUse:
		return http.StatusConflict
	case CodeAuthWrongPassword, CodeAuthSessionInvalid:
		return http.StatusUnauthorized
	case CodeUnavailable, CodeAuthNotConfigured:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
