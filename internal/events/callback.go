package events

// Callback is an event handler. Handlers are compared by pointer, so the value
// returned by Func is the identity Off uses to find the registration again.
type Callback struct {
	fn func(args ...any)

	// orig is the callback a one-shot wrapper was built from, so Off with the
	// original callback also removes the wrapper.
	orig *Callback
}

// Func wraps fn as a Callback.
func Func(fn func(args ...any)) *Callback {
	return &Callback{fn: fn}
}

// Call invokes the callback. It panics with ErrNotCallable when the callback
// was created without a function.
func (cb *Callback) Call(args ...any) {
	if cb.fn == nil {
		panic(ErrNotCallable)
	}
	cb.fn(args...)
}

// matches reports whether cb identifies h, either directly or through the
// callback a one-shot wrapper was built from.
func (cb *Callback) matches(h *Callback) bool {
	return cb == h || (h != nil && h.orig != nil && cb == h.orig)
}

// onceWrapper returns a Callback that calls offer before its first invocation
// forwards to cb, and ignores every later invocation.
func onceWrapper(name string, cb *Callback, offer func(name string, w *Callback)) *Callback {
	w := &Callback{orig: cb}
	fired := false
	w.fn = func(args ...any) {
		if fired {
			return
		}
		fired = true
		offer(name, w)
		cb.Call(args...)
	}
	return w
}
