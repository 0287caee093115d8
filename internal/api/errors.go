package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is returned for every non-2xx response.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string

	// ConsentGated is set for endpoints that answer 403 when the user has not
	// granted consent.
	ConsentGated bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s %s: %s", e.StatusCode, e.Method, e.Path, e.Message)
}

// IsConsentRequired reports whether err is a 403 from a consent-gated call.
func IsConsentRequired(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.ConsentGated && apiErr.StatusCode == http.StatusForbidden
}

// IsNotFound reports whether err is a 404.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// StatusCode extracts the HTTP status from err, or 0 when err is not an *APIError.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// errorMessage pulls the server's explanation out of an error body. The API
// reports errors as {"detail": "..."}; validation errors carry a list instead.
func errorMessage(status int, body []byte) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if len(payload.Detail) > 0 {
			var s string
			if json.Unmarshal(payload.Detail, &s) == nil && s != "" {
				return s
			}
			return string(payload.Detail)
		}
		if payload.Message != "" {
			return payload.Message
		}
	}

	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return http.StatusText(status)
}
