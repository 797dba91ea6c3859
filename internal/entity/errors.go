package entity

import (
	"errors"
	"fmt"

	"github.com/roach88/bindery/internal/transport"
)

var (
	// ErrURLRequired is returned when neither the entity nor its collection
	// can produce a URL.
	ErrURLRequired = errors.New(`entity: a "url" property or function must be specified`)

	// ErrInvalid wraps validation failures surfaced by Save and Fetch.
	ErrInvalid = errors.New("entity: validation failed")

	// ErrNoTransport is returned when a sync call has no Syncer to go through.
	ErrNoTransport = errors.New("entity: no sync transport configured")
)

// SyncError is returned by a failed remote sync call. It carries the same
// target, response and options the "error" event was fired with.
type SyncError struct {
	Target   any
	Response *transport.Response
	Options  *Options
	Err      error
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	if e.Response != nil {
		return fmt.Sprintf("sync failed (status %d): %v", e.Response.Status, e.Err)
	}
	return fmt.Sprintf("sync failed: %v", e.Err)
}

// Unwrap returns the underlying transport error.
func (e *SyncError) Unwrap() error {
	return e.Err
}

// AsSyncError extracts a *SyncError from err.
func AsSyncError(err error) (*SyncError, bool) {
	var se *SyncError
	ok := errors.As(err, &se)
	return se, ok
}

func invalidError(cause error) error {
	if cause == nil {
		return ErrInvalid
	}
	return fmt.Errorf("%w: %w", ErrInvalid, cause)
}
