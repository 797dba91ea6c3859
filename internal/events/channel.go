package events

import (
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
)

// Emitter is anything handlers can be bound to. Channel implements it; foreign
// event systems can implement it to be used as a ListenTo target.
//
// Emitter values used as ListenTo targets must be comparable (usually
// pointers) because they key the listener's bookkeeping.
type Emitter interface {
	On(name string, cb *Callback, scope any)
	Off(name string, cb *Callback, scope any)
}

// channeler is satisfied by *Channel and by every type embedding Channel. It
// lets ListenTo recognize targets that take part in cooperative bookkeeping.
type channeler interface {
	eventChannel() *Channel
}

var listenSeq atomic.Int64

// handler is one registration in a Channel's event table.
type handler struct {
	callback  *Callback
	scope     any
	listening *listening
}

// Channel is the event mixin. The zero value is ready to use. A Channel is not
// safe for concurrent use.
type Channel struct {
	listenID    string
	events      map[string][]*handler
	listeners   map[string]*listening
	listeningTo map[any]*listening
}

func (c *Channel) eventChannel() *Channel { return c }

// ListenID returns the channel's listener id, assigning one on first use.
func (c *Channel) ListenID() string {
	if c.listenID == "" {
		c.listenID = "l" + strconv.FormatInt(listenSeq.Add(1), 10)
	}
	return c.listenID
}

// On binds cb to one or more space-separated event names. The name "all"
// receives every event. A nil cb is ignored.
func (c *Channel) On(name string, cb *Callback, scope any) {
	c.on(name, cb, normalizeScope(scope), nil)
}

// OnMap binds every callback in the map to its (possibly space-separated) key.
func (c *Channel) OnMap(m map[string]*Callback, scope any) {
	for _, name := range sortedKeys(m) {
		c.On(name, m[name], scope)
	}
}

func (c *Channel) on(name string, cb *Callback, scope any, l *listening) {
	if cb == nil {
		return
	}
	for _, n := range splitNames(name) {
		if c.events == nil {
			c.events = make(map[string][]*handler)
		}
		if l != nil {
			l.count++
		}
		c.events[n] = append(c.events[n], &handler{callback: cb, scope: scope, listening: l})
	}
	if l != nil {
		if c.listeners == nil {
			c.listeners = make(map[string]*listening)
		}
		c.listeners[l.id] = l
		l.interop = false
	}
}

// Off removes every handler matching all of the supplied constraints. An empty
// name matches every event, a nil cb every callback and a nil scope every
// scope. With no constraints at all every handler is dropped and every
// listener that was tracking this channel through ListenTo is released.
func (c *Channel) Off(name string, cb *Callback, scope any) {
	if c.events == nil {
		return
	}
	scope = normalizeScope(scope)

	if name == "" && cb == nil && scope == nil {
		for _, id := range sortedKeys(c.listeners) {
			c.listeners[id].cleanup()
		}
		c.events = nil
		return
	}

	names := splitNames(name)
	if name == "" {
		names = sortedKeys(c.events)
	}

	for _, n := range names {
		handlers, ok := c.events[n]
		if !ok {
			continue
		}

		var remaining []*handler
		for _, h := range handlers {
			if (cb != nil && !cb.matches(h.callback)) || (scope != nil && !sameScope(scope, h.scope)) {
				remaining = append(remaining, h)
			} else if h.listening != nil {
				h.listening.off(n, cb)
			}
		}

		if len(remaining) > 0 {
			c.events[n] = remaining
		} else {
			delete(c.events, n)
		}
	}
}

// Trigger fires each space-separated event name in turn. Handlers bound to the
// name receive args; handlers bound to "all" receive the name followed by args.
func (c *Channel) Trigger(name string, args ...any) {
	if c.events == nil {
		return
	}
	for _, n := range splitNames(name) {
		// Both slices are snapshots: Off replaces slices rather than mutating
		// them, and On only appends past the snapshot's length.
		named := c.events[n]
		all := c.events["all"]

		for _, h := range named {
			h.callback.Call(args...)
		}
		if len(all) > 0 {
			withName := make([]any, 0, len(args)+1)
			withName = append(withName, n)
			withName = append(withName, args...)
			for _, h := range all {
				h.callback.Call(withName...)
			}
		}
	}
}

// Once binds cb so that it runs at most once per event name.
func (c *Channel) Once(name string, cb *Callback, scope any) {
	if cb == nil {
		return
	}
	scope = normalizeScope(scope)
	for _, n := range splitNames(name) {
		w := onceWrapper(n, cb, func(n string, w *Callback) { c.Off(n, w, nil) })
		c.on(n, w, scope, nil)
	}
}

// ListenTo binds cb on obj and records the subscription so that StopListening
// can release it later.
func (c *Channel) ListenTo(obj Emitter, name string, cb *Callback) {
	if obj == nil || cb == nil {
		return
	}
	target := asChannel(obj)
	key := listeningKey(obj)

	l := c.listeningTo[key]
	if l == nil {
		if c.listeningTo == nil {
			c.listeningTo = make(map[any]*listening)
		}
		l = &listening{
			id:       c.ListenID(),
			seq:      listeningSeq.Add(1),
			key:      key,
			listener: c,
			obj:      obj,
			target:   target,
			interop:  true,
		}
		c.listeningTo[key] = l
	}

	if target != nil {
		target.on(name, cb, c, l)
		return
	}

	obj.On(name, cb, c)
	l.track(name, cb)
}

// ListenToMap is the map form of ListenTo.
func (c *Channel) ListenToMap(obj Emitter, m map[string]*Callback) {
	for _, name := range sortedKeys(m) {
		c.ListenTo(obj, name, m[name])
	}
}

// ListenToOnce is the one-shot form of ListenTo. Each event name gets its own
// wrapper.
func (c *Channel) ListenToOnce(obj Emitter, name string, cb *Callback) {
	if obj == nil || cb == nil {
		return
	}
	for _, n := range splitNames(name) {
		w := onceWrapper(n, cb, func(n string, w *Callback) { c.StopListening(obj, n, w) })
		c.ListenTo(obj, n, w)
	}
}

// StopListening releases subscriptions made with ListenTo. A nil obj releases
// subscriptions on every target; an empty name and nil cb widen the match as
// in Off.
func (c *Channel) StopListening(obj Emitter, name string, cb *Callback) {
	if len(c.listeningTo) == 0 {
		return
	}

	var records []*listening
	if obj != nil {
		l, ok := c.listeningTo[listeningKey(obj)]
		if !ok {
			return
		}
		records = []*listening{l}
	} else {
		records = make([]*listening, 0, len(c.listeningTo))
		for _, l := range c.listeningTo {
			records = append(records, l)
		}
		sort.Slice(records, func(i, j int) bool { return records[i].seq < records[j].seq })
	}

	for _, l := range records {
		l.obj.Off(name, cb, c)
		if l.interop {
			l.off(name, cb)
		}
	}

	if len(c.listeningTo) == 0 {
		c.listeningTo = nil
	}
}

// HandlerCount returns the number of handlers bound to name, or to every name
// when name is empty.
func (c *Channel) HandlerCount(name string) int {
	if name != "" {
		return len(c.events[name])
	}
	n := 0
	for _, hs := range c.events {
		n += len(hs)
	}
	return n
}

// ListeningCount returns how many targets this channel is listening to.
func (c *Channel) ListeningCount() int { return len(c.listeningTo) }

// ListenerCount returns how many other channels listen to this one.
func (c *Channel) ListenerCount() int { return len(c.listeners) }

func asChannel(obj any) *Channel {
	if ch, ok := obj.(channeler); ok {
		return ch.eventChannel()
	}
	return nil
}

func listeningKey(obj Emitter) any {
	if ch := asChannel(obj); ch != nil {
		return ch
	}
	return obj
}

// normalizeScope maps any value embedding a Channel to that Channel so a
// listener can be matched either by itself or by its embedded channel.
func normalizeScope(scope any) any {
	if scope == nil {
		return nil
	}
	if ch := asChannel(scope); ch != nil {
		return ch
	}
	return scope
}

func sameScope(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

func splitNames(name string) []string {
	return strings.Fields(name)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
