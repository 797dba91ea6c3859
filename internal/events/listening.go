package events

import "sync/atomic"

var listeningSeq atomic.Int64

// listening tracks the subscriptions one listener holds on one target.
//
// For cooperative targets (those embedding Channel) the handlers themselves
// point at the record and count is the number of live handlers. For interop
// targets the record keeps its own table of what it bound in events.
type listening struct {
	id       string
	seq      int64
	key      any
	listener *Channel
	obj      Emitter
	target   *Channel
	interop  bool
	count    int
	events   map[string][]*Callback
}

// track records a binding made on an interop target.
func (l *listening) track(name string, cb *Callback) {
	for _, n := range splitNames(name) {
		if l.events == nil {
			l.events = make(map[string][]*Callback)
		}
		l.events[n] = append(l.events[n], cb)
	}
}

// off releases bindings matching name and cb, cleaning the record up once
// nothing is left.
func (l *listening) off(name string, cb *Callback) {
	if !l.interop {
		l.count--
		if l.count <= 0 {
			l.cleanup()
		}
		return
	}

	names := splitNames(name)
	if name == "" {
		names = sortedKeys(l.events)
	}
	for _, n := range names {
		var remaining []*Callback
		for _, tracked := range l.events[n] {
			if cb != nil && !cb.matches(tracked) {
				remaining = append(remaining, tracked)
			}
		}
		if len(remaining) > 0 {
			l.events[n] = remaining
		} else {
			delete(l.events, n)
		}
	}
	if len(l.events) == 0 {
		l.cleanup()
	}
}

// cleanup removes the record from the listener and, for cooperative targets,
// from the target.
func (l *listening) cleanup() {
	delete(l.listener.listeningTo, l.key)
	if !l.interop && l.target != nil {
		delete(l.target.listeners, l.id)
	}
}
