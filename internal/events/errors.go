package events

import "errors"

// ErrNotCallable is the panic value raised when a Callback without a function
// is invoked. Registration of such a callback succeeds; the failure surfaces
// only when the event fires.
var ErrNotCallable = errors.New("events: callback is not callable")
