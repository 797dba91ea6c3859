package transport

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned by a ResourceStore when a resource is missing.
	ErrNotFound = errors.New("transport: resource not found")

	// ErrClosed is returned by a WebSocket whose connection has been closed.
	ErrClosed = errors.New("transport: connection closed")
)

// StatusError reports a backend that answered with a non-2xx status.
type StatusError struct {
	Method   Method
	URL      string
	Status   int
	Response *Response
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method.HTTPMethod(), e.URL, e.Status, http.StatusText(e.Status))
}

// IsStatus reports whether err is a *StatusError with the given status.
func IsStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}
