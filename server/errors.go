package server

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/jrsteele09/go-pay-server/internal/errors"
)

type errorResponse struct {
	Error       string `json:"error"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description"`
	Field       string `json:"field,omitempty"`
}

// writeJSONError writes a bare error response
func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, statusCode, errorResponse{Error: errorCode, Description: description})
}

// writeAppError classifies err and writes the matching status with its user facing message.
func writeAppError(w http.ResponseWriter, err error) {
	code, statusCode := classify(err)
	msg := apperrors.Describe(err)
	resp := errorResponse{Error: code, Title: msg.Title, Description: msg.Description}

	var validation *apperrors.ValidationError
	if apperrors.As(err, &validation) {
		resp.Field = validation.Field
	}
	writeJSON(w, statusCode, resp)
}

func classify(err error) (string, int) {
	switch {
	case apperrors.Is(err, apperrors.ErrValidation):
		return "invalid_request", http.StatusBadRequest
	case apperrors.Is(err, apperrors.ErrBearerRequired):
		return "bearer_required", http.StatusBadRequest
	case apperrors.Is(err, apperrors.ErrSessionNotFound), apperrors.Is(err, apperrors.ErrUnauthorized):
		return "unauthorized", http.StatusUnauthorized
	case apperrors.Is(err, apperrors.ErrRemoteRejected):
		var remote *apperrors.RemoteError
		if apperrors.As(err, &remote) && remote.StatusCode >= 400 && remote.StatusCode < 500 {
			return "remote_rejected", remote.StatusCode
		}
		return "remote_rejected", http.StatusUnprocessableEntity
	case apperrors.Is(err, apperrors.ErrRemoteUnavailable):
		return "remote_unavailable", http.StatusBadGateway
	case apperrors.Is(err, apperrors.ErrTimeout):
		return "timeout", http.StatusGatewayTimeout
	case apperrors.Is(err, apperrors.ErrNotFound):
		return "not_found", http.StatusNotFound
	case apperrors.Is(err, apperrors.ErrUnsupported):
		return "unsupported", http.StatusNotImplemented
	}
	return "internal_error", http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}
