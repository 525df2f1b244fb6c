package exchange

import (
	"fmt"
	"net/http"
)

// APIError is returned for any non-2xx upstream response
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s failed: %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s failed: %d - %s", e.Op, e.StatusCode, e.Body)
}

// IsAuthFailure reports whether the upstream refused our credentials
func (e *APIError) IsAuthFailure() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// AuthenticationError means the credential exchange failed or returned
// incomplete tokens
type AuthenticationError struct {
	Reason string
	Err    error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session creation failed: %s: %v", e.Reason, e.Err)
	}
	return "session creation failed: " + e.Reason
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}
