package history

import "errors"

// ErrAlreadyStarted is returned by Start on a History that is already running.
var ErrAlreadyStarted = errors.New("history: already started")
