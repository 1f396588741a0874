package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"budgetwise/internal/auth"
	"budgetwise/internal/extraction"
	applog "budgetwise/internal/log"
	"budgetwise/internal/middleware/trace"
	"budgetwise/internal/services"
)

// errExtractionDisabled is returned by the model-backed endpoints when no
// API key is configured.
var errExtractionDisabled = errors.New("statement analysis is not configured")

func validationErr(err error) error {
	return fmt.Errorf("%w: %w", services.ErrValidation, err)
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps service, auth and extraction errors to HTTP statuses.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	var extractErr *extraction.ExtractionError

	switch {
	case errors.As(err, &maxBytes), errors.Is(err, extraction.ErrDocumentTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrUnauthenticated),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrNoUser):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, extraction.ErrEmptyDocument),
		errors.Is(err, extraction.ErrUnsupportedMediaType),
		errors.Is(err, extraction.ErrEmptyDescription):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errExtractionDisabled):
		return http.StatusServiceUnavailable
	case errors.As(err, &extractErr):
		if extractErr.Timeout() {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err and writes the JSON error body. Internal failures
// are reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	status := statusFor(err)
	logger := applog.FromContext(ctx)

	msg := err.Error()
	switch {
	case status >= http.StatusInternalServerError:
		logger.ErrorContext(ctx, "Request failed", applog.FieldStatusCode, status, applog.FieldError, err)
		if status == http.StatusInternalServerError {
			msg = http.StatusText(status)
		}
	default:
		logger.DebugContext(ctx, "Request rejected", applog.FieldStatusCode, status, applog.FieldError, err)
	}

	writeJSON(w, status, errorResponse{Error: msg, RequestID: trace.GetRequestID(ctx)})
}
