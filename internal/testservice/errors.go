package testservice

import (
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the Test Service.
type APIError struct {
	StatusCode int
	// Message is the server's "error" field; empty when the body had none.
	Message string
	Path    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("test service %s: %d %s", e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("test service %s: %d %s", e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// ServerMessage returns the human-readable message supplied by the server.
func (e *APIError) ServerMessage() string {
	return e.Message
}

// NotFound reports whether the server answered 404.
func (e *APIError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}
