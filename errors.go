package sessionx

import (
	"errors"
	"fmt"
)

// ErrorCode represents session error categories.
type ErrorCode string

const (
	ErrCodeDecode              ErrorCode = "invalid_token"
	ErrCodeStorageUnavailable  ErrorCode = "storage_unavailable"
	ErrCodeBackendAuth         ErrorCode = "backend_auth_error"
	ErrCodeMissingCredentials  ErrorCode = "missing_credentials"
	ErrCodeMissingOrganization ErrorCode = "missing_organization"
	ErrCodeInvalidConfig       ErrorCode = "invalid_config"
	ErrCodeBusy                ErrorCode = "busy"
	ErrCodeUnauthenticated     ErrorCode = "unauthenticated"
)

var errorMessages = map[ErrorCode]string{
	ErrCodeDecode:              "Invalid token",
	ErrCodeStorageUnavailable:  "Storage unavailable",
	ErrCodeBackendAuth:         "Authentication request failed",
	ErrCodeMissingCredentials:  "Email and password are required",
	ErrCodeMissingOrganization: "Organization name is required",
	ErrCodeInvalidConfig:       "Invalid configuration",
	ErrCodeBusy:                "Authentication already in progress",
	ErrCodeUnauthenticated:     "Not authenticated",
}

// Error wraps session errors with a stable code and message.
// Status carries the HTTP status for backend failures, zero otherwise.
type Error struct {
	Code    ErrorCode
	Message string
	Status  int
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	base := e.Message
	if base == "" {
		base = string(e.Code)
	}
	if e.Status != 0 {
		base = fmt.Sprintf("%s (status %d)", base, e.Status)
	}
	if e.Err == nil {
		return base
	}
	return fmt.Sprintf("%s: %v", base, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func newError(code ErrorCode, err error) error {
	msg, ok := errorMessages[code]
	if !ok {
		msg = string(code)
	}
	return &Error{Code: code, Message: msg, Err: err}
}
