package engine

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnknownStream indicates a log frame tagged with a stream other than stdout/stderr.
	ErrUnknownStream = errors.New("engine: unknown log stream type")
	// ErrTruncatedFrame indicates a log frame shorter than its declared length.
	ErrTruncatedFrame = errors.New("engine: truncated log frame")
	// ErrInvalidPolicy indicates an unsupported pull policy.
	ErrInvalidPolicy = errors.New("engine: invalid pull policy")
)

// APIError reports a response that broke the operation's contract. Body holds
// the raw response so protocol drift can be diagnosed.
type APIError struct {
	Operation  string
	StatusCode int
	Reason     string
	Body       string
	Err        error
}

func (e *APIError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "unexpected status"
	}
	return fmt.Sprintf("engine %s: %s (status %d): %s", e.Operation, reason, e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is an APIError for a missing object.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return false
}
