package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/debugops/debugops/internal/incidents"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// RespondJSON writes data as a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			zap.S().Warnf("Failed to encode JSON response: %v", err)
		}
	}
}

// RespondText writes body with the given content type.
func RespondText(w http.ResponseWriter, status int, contentType, body string) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		zap.S().Warnf("Failed to write response: %v", err)
	}
}

// RespondError writes a standard error response.
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorResponse{Error: message})
}

// RespondErrorWithCode writes an error response with a machine-readable code.
func RespondErrorWithCode(w http.ResponseWriter, status int, code, message string) {
	RespondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// RespondValidationError writes field-level validation errors as a 422 response.
func RespondValidationError(w http.ResponseWriter, fieldErrors map[string]string) {
	RespondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
		Error:   "Validation failed",
		Code:    "validation_error",
		Details: fieldErrors,
	})
}

// RespondNoContent writes a 204 No Content response with no body.
func RespondNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// RespondIncidentError maps an incident-domain error to its HTTP status.
// Unknown errors become a 500 without exposing the cause.
func RespondIncidentError(w http.ResponseWriter, err error) {
	var verr *incidents.ValidationError
	switch {
	case errors.As(err, &verr):
		RespondValidationError(w, verr.Fields)
	case errors.Is(err, incidents.ErrValidation):
		RespondErrorWithCode(w, http.StatusUnprocessableEntity, "validation_error", err.Error())
	case errors.Is(err, incidents.ErrNotFound):
		RespondErrorWithCode(w, http.StatusNotFound, "not_found", "Incident not found")
	case errors.Is(err, incidents.ErrInvalidState), errors.Is(err, incidents.ErrInvalidTransition):
		RespondErrorWithCode(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, incidents.ErrCollaborator):
		RespondErrorWithCode(w, http.StatusBadGateway, "analysis_failed", "Could not generate patch. See server logs.")
	case errors.Is(err, context.DeadlineExceeded):
		RespondErrorWithCode(w, http.StatusGatewayTimeout, "timeout", "Request timed out")
	case errors.Is(err, context.Canceled):
		// client went away; status is informational only
		RespondErrorWithCode(w, 499, "canceled", "Request canceled")
	default:
		zap.S().Errorf("Unhandled incident error: %v", err)
		RespondError(w, http.StatusInternalServerError, "Internal server error")
	}
}
