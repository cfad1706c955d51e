// Package apperr defines the coded errors the API surfaces to clients.
package apperr

import (
	"errors"
	"net/http"
)

// Code identifies a class of application error.
type Code string

const (
	// Validation / input errors (400).
	CodeValidation Code = "VALIDATION_ERROR"
	CodeUserExists Code = "USER_EXISTS"

	// Authentication errors (401).
	CodeAuthRequired       Code = "AUTH_REQUIRED"
	CodeTokenExpired       Code = "TOKEN_EXPIRED"
	CodeInvalidToken       Code = "INVALID_TOKEN"
	CodeUserNotFound       Code = "USER_NOT_FOUND"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"

	// Google integration errors (401). Each maps to a distinct client
	// action: start consent, force re-consent, or retry.
	CodeGoogleAuthRequired   Code = "GOOGLE_AUTH_REQUIRED"
	CodeGoogleReauthRequired Code = "GOOGLE_REAUTH_REQUIRED"
	CodeTokenRefreshFailed   Code = "TOKEN_REFRESH_FAILED"

	// Resource errors. Unowned resources report NOT_FOUND rather than
	// a permission error so existence is never confirmed.
	CodeNotFound Code = "NOT_FOUND"

	// Everything else (500).
	CodeInternal Code = "INTERNAL_ERROR"
)

// Error is a coded application error.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a coded error with a user-facing message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a coded error with a user-facing message and a cause.
func Wrap(code Code, message string, cause error) error {
	return &Error{Code: code, Message: message, Err: cause}
}

// CodeOf returns the error's code, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var coded *Error
	if errors.As(err, &coded) && coded.Code != "" {
		return coded.Code
	}
	return CodeInternal
}

// MessageOf returns the user-facing message. Uncoded errors collapse to a
// generic message so internals never leak to clients.
func MessageOf(err error) string {
	var coded *Error
	if errors.As(err, &coded) && coded.Message != "" {
		return coded.Message
	}
	return "Internal server error"
}

// StatusOf maps an error to its HTTP status code.
func StatusOf(err error) int {
	switch CodeOf(err) {
	case CodeValidation, CodeUserExists:
		return http.StatusBadRequest
	case CodeAuthRequired, CodeTokenExpired, CodeInvalidToken, CodeUserNotFound,
		CodeInvalidCredentials, CodeGoogleAuthRequired, CodeGoogleReauthRequired,
		CodeTokenRefreshFailed:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var coded *Error
	return errors.As(err, &coded) && coded.Code == code
}
