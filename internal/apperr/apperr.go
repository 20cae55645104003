// Package apperr defines the tenantly error taxonomy and its HTTP mapping.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"gorm.io/gorm"
)

var (
	// ErrNotAuthenticated is returned before any user-scoped write when there
	// is no signed-in user.
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNotFound         = errors.New("not found")
	// ErrInvalidCredentials is returned by password sign-in.
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("already exists")
)

// RemoteError wraps a failed gateway call.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Remote wraps err as a RemoteError for op. Record-not-found is translated to
// ErrNotFound so callers can test for it with errors.Is.
func Remote(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &RemoteError{Op: op, Err: ErrNotFound}
	}
	return &RemoteError{Op: op, Err: err}
}

// ValidationError reports a request the caller must fix.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// ErrorCode represents application-specific error codes.
type ErrorCode string

const (
	ErrorCodeInvalidRequest     ErrorCode = "INVALID_REQUEST"
	ErrorCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrorCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrorCodeForbidden          ErrorCode = "FORBIDDEN"
	ErrorCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrorCodeConflict           ErrorCode = "CONFLICT"
	ErrorCodeRemoteFailure      ErrorCode = "REMOTE_CALL_FAILED"
	ErrorCodeTimeout            ErrorCode = "TIMEOUT"
	ErrorCodeInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrorCodeRateLimited        ErrorCode = "RATE_LIMITED"
)

// HTTPStatus maps err onto a status code and error code.
func HTTPStatus(err error) (int, ErrorCode) {
	var validation *ValidationError
	var remote *RemoteError

	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.As(err, &validation):
		return http.StatusBadRequest, ErrorCodeInvalidRequest
	case errors.Is(err, ErrNotAuthenticated):
		return http.StatusUnauthorized, ErrorCodeUnauthorized
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized, ErrorCodeInvalidCredentials
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, ErrorCodeForbidden
	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, ErrorCodeNotFound
	case errors.Is(err, ErrConflict), errors.Is(err, gorm.ErrDuplicatedKey):
		return http.StatusConflict, ErrorCodeConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrorCodeTimeout
	case errors.As(err, &remote):
		return http.StatusBadGateway, ErrorCodeRemoteFailure
	default:
		return http.StatusInternalServerError, ErrorCodeInternalError
	}
}
