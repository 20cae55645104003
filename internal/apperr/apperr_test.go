package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestRemote_TranslatesRecordNotFound(t *testing.T) {
	err := Remote("profiles.get", gorm.ErrRecordNotFound)
	assert.ErrorIs(t, err, ErrNotFound)

	var remote *RemoteError
	assert.ErrorAs(t, err, &remote)
	assert.Equal(t, "profiles.get", remote.Op)

	assert.NoError(t, Remote("noop", nil))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   ErrorCode
	}{
		{"validation", Invalid("title", "is required"), http.StatusBadRequest, ErrorCodeInvalidRequest},
		{"not authenticated", fmt.Errorf("create property: %w", ErrNotAuthenticated), http.StatusUnauthorized, ErrorCodeUnauthorized},
		{"bad credentials", ErrInvalidCredentials, http.StatusUnauthorized, ErrorCodeInvalidCredentials},
		{"forbidden", ErrForbidden, http.StatusForbidden, ErrorCodeForbidden},
		{"not found", Remote("get", gorm.ErrRecordNotFound), http.StatusNotFound, ErrorCodeNotFound},
		{"conflict", gorm.ErrDuplicatedKey, http.StatusConflict, ErrorCodeConflict},
		{"timeout", Remote("list", context.DeadlineExceeded), http.StatusGatewayTimeout, ErrorCodeTimeout},
		{"remote", Remote("insert", errors.New("connection refused")), http.StatusBadGateway, ErrorCodeRemoteFailure},
		{"other", errors.New("boom"), http.StatusInternalServerError, ErrorCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := HTTPStatus(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestValidationError_Message(t *testing.T) {
	assert.Equal(t, "content: must not be empty", Invalid("content", "must not be empty").Error())
	assert.Equal(t, "bad body", Invalid("", "bad body").Error())
}
