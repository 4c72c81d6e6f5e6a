package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// transientMarker is the vendor message returned while a transaction has no status yet.
const transientMarker = "callback not found"

// RemoteError is a non-2xx answer from the gateway.
type RemoteError struct {
	StatusCode int
	Message    string
	Body       []byte
}

// NewRemoteError builds a RemoteError, extracting the vendor message from the body when it is JSON.
func NewRemoteError(statusCode int, body []byte) *RemoteError {
	return &RemoteError{
		StatusCode: statusCode,
		Message:    vendorMessage(body),
		Body:       body,
	}
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway returned %d", e.StatusCode)
	}
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps the remote status code onto the error taxonomy.
func (e *RemoteError) Unwrap() error {
	switch {
	case IsTransientMessage(e.Message):
		return ErrTransientNotReady
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case e.StatusCode >= 500:
		return ErrRemoteUnavailable
	default:
		return ErrRemoteRejected
	}
}

// IsTransientMessage reports whether a vendor message means "no status yet".
func IsTransientMessage(message string) bool {
	return strings.Contains(strings.ToLower(message), transientMarker)
}

// vendorMessage pulls a human readable message out of the common gateway error shapes.
func vendorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   any    `json:"error"`
		Errors  []struct {
			Message string `json:"message"`
		} `json:"errors"`
		Data struct {
			Message string `json:"message"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return strings.TrimSpace(string(body))
	}
	switch {
	case payload.Message != "":
		return payload.Message
	case payload.Data.Message != "":
		return payload.Data.Message
	case len(payload.Errors) > 0 && payload.Errors[0].Message != "":
		return payload.Errors[0].Message
	}
	if s, ok := payload.Error.(string); ok {
		return s
	}
	return ""
}
