package api

import (
	"encoding/json"
	"errors"
	"net/http"
)

// genericErrorMessage is the final fallback when neither the server
// nor the transport supplied a usable message.
const genericErrorMessage = "An error occurred"

// Error is the normalized failure returned by every client method.
// Message is exactly one of: the server-supplied envelope message, the
// transport error text, or a generic fallback. Callers never see a raw
// transport exception.
type Error struct {
	// StatusCode is the HTTP status, or 0 for transport failures.
	StatusCode int

	// Message is the single human-readable error string.
	Message string

	// Fields carries per-field validation errors when the server
	// supplied them.
	Fields map[string][]string
}

func (e *Error) Error() string {
	return e.Message
}

// IsAuthError reports whether err (or any error in its chain) is a
// 401 authentication failure.
func IsAuthError(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// ErrorMessage extracts the normalized message from any error the
// client surfaced, falling back to the generic message.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return genericErrorMessage
}

// normalizeTransport wraps a transport-level failure (no response
// received).
func normalizeTransport(err error) *Error {
	msg := genericErrorMessage
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return &Error{Message: msg}
}

// normalizeResponse wraps a non-2xx response, preferring the server's
// envelope message over anything transport-level.
func normalizeResponse(statusCode int, body []byte) *Error {
	var env Envelope
	if json.Unmarshal(body, &env) == nil && env.Message != "" {
		return &Error{
			StatusCode: statusCode,
			Message:    env.Message,
			Fields:     env.Errors,
		}
	}
	msg := http.StatusText(statusCode)
	if msg == "" {
		msg = genericErrorMessage
	}
	return &Error{StatusCode: statusCode, Message: msg}
}
