package crm

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTransport means no response was received.
	ErrTransport = errors.New("crm: transport failure")
	// ErrUnauthorized means the service rejected the token or credentials.
	ErrUnauthorized = errors.New("crm: unauthorized")
	// ErrRejected means the service answered with a non-success status.
	ErrRejected = errors.New("crm: request rejected")
	// ErrDecode means a success response could not be parsed.
	ErrDecode = errors.New("crm: malformed response")
)

// APIError carries a non-2xx answer. Message is the service's own text and is
// meant to be shown to the user as-is.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("crm: status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("crm: status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return ErrRejected
}
