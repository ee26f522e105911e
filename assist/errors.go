package assist

import (
	"errors"
	"fmt"
)

var (
	// ErrBackendUnavailable indicates the circuit breaker is open.
	ErrBackendUnavailable = errors.New("assist: backend unavailable")

	// ErrEmptyPrompt indicates a request with no prompt text.
	ErrEmptyPrompt = errors.New("assist: empty prompt")
)

// RateLimitedError indicates the backend returned 429.
type RateLimitedError struct{}

func (e *RateLimitedError) Error() string { return "assist: backend rate limited" }

// AuthError indicates the backend rejected the API key.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return "assist: authentication failed: " + e.Message
}

// ServerError indicates a backend 5xx response.
type ServerError struct {
	StatusCode int
	Body       string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("assist: backend error (status %d): %s", e.StatusCode, e.Body)
}

// IsAuthError reports whether err is an authentication error.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
