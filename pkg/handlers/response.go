package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/matthewebeebe/observations-to-insights/pkg/apperrors"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// writeServiceError maps domain errors to HTTP responses. extra fields, if
// any, are merged into the error body; create handlers use this to echo the
// submitted content back so the client can restore it into the input field.
func writeServiceError(w http.ResponseWriter, err error, logger *zap.Logger, extra map[string]string) {
	body := map[string]string{}
	for k, v := range extra {
		body[k] = v
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		status = http.StatusNotFound
		body["error"] = "not_found"
		body["message"] = "Resource not found"
	case errors.Is(err, apperrors.ErrForbidden):
		status = http.StatusForbidden
		body["error"] = "forbidden"
		body["message"] = "You do not have access to this project"
	case errors.Is(err, apperrors.ErrEmptyContent):
		status = http.StatusBadRequest
		body["error"] = "empty_content"
		body["message"] = "Content must not be empty"
	case errors.Is(err, apperrors.ErrInvalidKind):
		status = http.StatusBadRequest
		body["error"] = "invalid_kind"
		body["message"] = "Unknown kind"
	case errors.Is(err, apperrors.ErrNotConfigured):
		status = http.StatusServiceUnavailable
		body["error"] = "not_configured"
		body["message"] = "Suggestion service is not configured"
	default:
		body["error"] = "internal_error"
		body["message"] = "Operation failed"
		logger.Error("request failed", zap.Error(err))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
