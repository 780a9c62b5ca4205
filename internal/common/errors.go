package common

import "errors"

// Stable machine-readable error codes surfaced in API responses.
const (
	CodeBadRequest = "BAD_REQUEST"
	CodeValidation = "VALIDATION"
	CodeUpstream   = "UPSTREAM_UNAVAILABLE"
	CodeInternal   = "INTERNAL"
)

// AppError pairs an error with the code and HTTP status it should be
// rendered with. Handlers can return it directly or wrap a cause.
type AppError struct {
	Code    string
	Message string
	Status  int
	Details any
	cause   error
}

// NewAppError builds an AppError wrapping an optional cause.
func NewAppError(code string, status int, message string, cause error) *AppError {
	return &AppError{Code: code, Status: status, Message: message, cause: cause}
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// AsAppError returns the AppError in err's chain, if any.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
