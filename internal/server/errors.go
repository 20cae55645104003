package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/beesaferoot/tenantly/internal/apperr"
)

const maxBodyBytes = 1 << 20

// ErrorResponse represents the standard error response format.
type ErrorResponse struct {
	Status    string           `json:"status"`
	ErrorCode apperr.ErrorCode `json:"error_code"`
	Message   string           `json:"message"`
	RequestID string           `json:"request_id,omitempty"`
}

type errorHandler struct {
	logger *zap.Logger
}

// HandleError maps err onto a status code and writes the error body.
// Server-side failures are reported without their cause.
func (h *errorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := apperr.HTTPStatus(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID(r)),
			zap.Error(err),
		)
		message = http.StatusText(status)
	}
	h.WriteErrorResponse(w, status, code, message, requestID(r))
}

// WriteErrorResponse writes a formatted error response.
func (h *errorHandler) WriteErrorResponse(w http.ResponseWriter, statusCode int, errorCode apperr.ErrorCode, message, requestID string) {
	h.logger.Debug("HTTP error response",
		zap.Int("status_code", statusCode),
		zap.String("error_code", string(errorCode)),
		zap.String("message", message),
		zap.String("request_id", requestID),
	)

	writeJSON(w, statusCode, ErrorResponse{
		Status:    "error",
		ErrorCode: errorCode,
		Message:   message,
		RequestID: requestID,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperr.Invalid("", "malformed JSON body")
	}
	return nil
}
