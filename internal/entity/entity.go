package entity

import (
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"maps"
	"net/url"
	"strconv"
	"strings"

	"github.com/roach88/bindery/internal/events"
	"github.com/roach88/bindery/internal/transport"
)

// Owner is the back-reference an entity keeps to the first entity set that
// added it. The entity borrows the owner's URL and transport.
type Owner interface {
	URL() (string, error)
	Syncer() transport.Syncer
}

// Entity is a mutable, identity-bearing attribute bag.
type Entity struct {
	events.Channel

	kind *Kind
	cid  string
	id   any

	attributes Attributes
	previous   Attributes
	changed    Attributes

	changing bool
	pending  *Options

	collection      Owner
	validationError error
}

// New constructs an entity of the given kind.
//
// Steps: Preinitialize, cid assignment, owner from opts.Collection, parse when
// opts.Parse, defaults underneath attrs, a Set with opts, clearing changed,
// Initialize. A validation failure during the Set leaves the entity empty with
// ValidationError recorded.
func New(kind *Kind, attrs Attributes, opts *Options) *Entity {
	if opts == nil {
		opts = &Options{}
	}
	if kind != nil && kind.Preinitialize != nil {
		kind.Preinitialize(attrs, opts)
	}

	e := &Entity{
		kind:       kind,
		cid:        kind.cidPrefix() + strconv.FormatInt(cids.Next(), 10),
		attributes: Attributes{},
	}
	if opts.Collection != nil {
		e.collection = opts.Collection
	}

	if opts.Parse {
		attrs = e.Parse(attrs, opts)
	}

	var merged Attributes
	if kind != nil {
		merged = kind.Defaults.Clone()
	} else {
		merged = Attributes{}
	}
	maps.Copy(merged, attrs)

	e.Set(merged, opts)
	e.changed = Attributes{}

	if kind != nil && kind.Initialize != nil {
		kind.Initialize(e, attrs, opts)
	}
	return e
}

// Kind returns the entity's kind, which may be nil.
func (e *Entity) Kind() *Kind { return e.kind }

// CID returns the client id.
func (e *Entity) CID() string { return e.cid }

// ID returns the business id, or nil for a new entity.
func (e *Entity) ID() any { return e.id }

// IDAttribute returns the name of the id attribute.
func (e *Entity) IDAttribute() string { return e.kind.idAttribute() }

// Collection returns the owning entity set, if any.
func (e *Entity) Collection() Owner { return e.collection }

// SetCollection replaces the owner back-reference.
func (e *Entity) SetCollection(o Owner) { e.collection = o }

// ValidationError returns the last validation failure.
func (e *Entity) ValidationError() error { return e.validationError }

// Logger returns the kind's logger.
func (e *Entity) Logger() *slog.Logger { return e.kind.logger() }

// Attributes returns a copy of the current attributes.
func (e *Entity) Attributes() Attributes { return e.attributes.Clone() }

// Get returns an attribute value, or nil when unset.
func (e *Entity) Get(attr string) any { return e.attributes[attr] }

// Has reports whether the attribute is set to a non-nil value.
func (e *Entity) Has(attr string) bool { return e.attributes[attr] != nil }

// Escape returns the attribute HTML-escaped. Unset and nil render empty.
func (e *Entity) Escape(attr string) string {
	v := e.attributes[attr]
	if v == nil {
		return ""
	}
	return html.EscapeString(fmt.Sprint(v))
}

// Pick returns the named attributes that are set to non-nil values.
func (e *Entity) Pick(attrs ...string) Attributes {
	out := Attributes{}
	for _, a := range attrs {
		if e.Has(a) {
			out[a] = e.attributes[a]
		}
	}
	return out
}

// Omit returns every attribute except the named ones.
func (e *Entity) Omit(attrs ...string) Attributes {
	out := e.attributes.Clone()
	for _, a := range attrs {
		delete(out, a)
	}
	return out
}

// Matches reports whether every attribute in attrs is set to an equal value.
func (e *Entity) Matches(attrs Attributes) bool {
	for k, v := range attrs {
		if !hasEqual(e.attributes, k, v) {
			return false
		}
	}
	return true
}

// Keys returns the attribute names in sorted order.
func (e *Entity) Keys() []string { return e.attributes.Keys() }

// Values returns the attribute values in Keys order.
func (e *Entity) Values() []any {
	keys := e.Keys()
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = e.attributes[k]
	}
	return out
}

// Pairs returns the attributes as pairs in Keys order.
func (e *Entity) Pairs() []Pair { return e.attributes.Pairs() }

// Invert returns a map from each attribute's rendered value to its name.
func (e *Entity) Invert() map[string]string {
	out := make(map[string]string, len(e.attributes))
	for _, k := range e.Keys() {
		out[fmt.Sprint(e.attributes[k])] = k
	}
	return out
}

// IsEmpty reports whether no attributes are set.
func (e *Entity) IsEmpty() bool { return len(e.attributes) == 0 }

// Set applies attrs in sorted key order. It returns false, without changing
// anything, when validation is requested and fails.
func (e *Entity) Set(attrs Attributes, opts *Options) bool {
	if attrs == nil {
		return true
	}
	return e.SetPairs(attrs.Pairs(), opts)
}

// SetKey sets a single attribute.
func (e *Entity) SetKey(key string, value any, opts *Options) bool {
	return e.SetPairs([]Pair{{Key: key, Value: value}}, opts)
}

// SetPairs is Set with an explicit attribute order, which is the order the
// "change:<key>" events fire in. With opts.Unset only the keys are used.
func (e *Entity) SetPairs(pairs []Pair, opts *Options) bool {
	if opts == nil {
		opts = &Options{}
	}

	incoming := make(Attributes, len(pairs))
	for _, p := range pairs {
		incoming[p.Key] = p.Value
	}
	if !e.validate(incoming, opts) {
		return false
	}

	changing := e.changing
	e.changing = true

	if !changing {
		e.previous = e.attributes.Clone()
		e.changed = Attributes{}
	}

	current := e.attributes
	var changes []string

	for _, p := range pairs {
		if opts.Unset {
			if _, ok := current[p.Key]; ok {
				changes = append(changes, p.Key)
			}
			if _, ok := e.previous[p.Key]; ok {
				e.changed[p.Key] = nil
			} else {
				delete(e.changed, p.Key)
			}
			delete(current, p.Key)
			continue
		}

		if !hasEqual(current, p.Key, p.Value) {
			changes = append(changes, p.Key)
		}
		if !hasEqual(e.previous, p.Key, p.Value) {
			e.changed[p.Key] = p.Value
		} else {
			delete(e.changed, p.Key)
		}
		current[p.Key] = p.Value
	}

	if _, ok := incoming[e.IDAttribute()]; ok {
		e.id = current[e.IDAttribute()]
	}

	if !opts.Silent {
		if len(changes) > 0 {
			e.pending = opts
		}
		for _, k := range changes {
			e.Trigger("change:"+k, e, current[k], opts)
		}
	}

	// Nested calls fold into the outermost call's round.
	if changing {
		return true
	}

	if !opts.Silent {
		for e.pending != nil {
			o := e.pending
			e.pending = nil
			e.Trigger("change", e, o)
		}
	}
	e.pending = nil
	e.changing = false
	return true
}

// Unset removes an attribute, firing change events if it was set.
func (e *Entity) Unset(attr string, opts *Options) bool {
	o := opts.Clone()
	o.Unset = true
	return e.SetPairs([]Pair{{Key: attr}}, o)
}

// Clear removes every attribute.
func (e *Entity) Clear(opts *Options) bool {
	o := opts.Clone()
	o.Unset = true
	pairs := make([]Pair, 0, len(e.attributes))
	for _, k := range e.Keys() {
		pairs = append(pairs, Pair{Key: k})
	}
	return e.SetPairs(pairs, o)
}

// HasChanged reports whether attr changed in the last change round, or
// whether anything did when attr is empty.
func (e *Entity) HasChanged(attr string) bool {
	if attr == "" {
		return len(e.changed) > 0
	}
	_, ok := e.changed[attr]
	return ok
}

// ChangedAttributes returns the attributes changed in the last round, or nil
// when nothing changed. With a non-nil diff it instead returns the subset of
// diff that differs from the current attributes (the previous attributes while
// a round is in progress), or nil when nothing would change.
func (e *Entity) ChangedAttributes(diff Attributes) Attributes {
	if diff == nil {
		if !e.HasChanged("") {
			return nil
		}
		return e.changed.Clone()
	}

	old := e.attributes
	if e.changing {
		old = e.previous
	}
	var out Attributes
	for k, v := range diff {
		if hasEqual(old, k, v) {
			continue
		}
		if out == nil {
			out = Attributes{}
		}
		out[k] = v
	}
	return out
}

// Differs reports whether setting attrs would change the current attributes.
func (e *Entity) Differs(attrs Attributes) bool {
	for k, v := range attrs {
		if !hasEqual(e.attributes, k, v) {
			return true
		}
	}
	return false
}

// Previous returns an attribute's value before the last change round.
func (e *Entity) Previous(attr string) any {
	if e.previous == nil {
		return nil
	}
	return e.previous[attr]
}

// PreviousAttributes returns a copy of the attributes before the last change
// round.
func (e *Entity) PreviousAttributes() Attributes {
	return e.previous.Clone()
}

// IsNew reports whether the entity has no business id yet.
func (e *Entity) IsNew() bool {
	return !e.Has(e.IDAttribute())
}

// IsValid runs validation against the current attributes.
func (e *Entity) IsValid(opts *Options) bool {
	o := opts.Clone()
	o.Validate = true
	return e.validate(Attributes{}, o)
}

func (e *Entity) validate(attrs Attributes, opts *Options) bool {
	if !opts.Validate || e.kind == nil || e.kind.Validate == nil {
		return true
	}

	next := e.attributes.Clone()
	for k, v := range attrs {
		if opts.Unset {
			delete(next, k)
		} else {
			next[k] = v
		}
	}

	err := e.kind.Validate(next, opts)
	e.validationError = err
	if err == nil {
		return true
	}

	o := opts.Clone()
	o.ValidationError = err
	e.Trigger("invalid", e, err, o)
	return false
}

// Parse converts a raw response into attributes using the kind's Parse hook,
// or by accepting JSON objects as they are.
func (e *Entity) Parse(resp any, opts *Options) Attributes {
	if e.kind != nil && e.kind.Parse != nil {
		return e.kind.Parse(resp, opts)
	}
	return AsAttributes(resp)
}

// Clone returns a new entity of the same kind with the same attributes.
func (e *Entity) Clone() *Entity {
	return New(e.kind, e.attributes.Clone(), nil)
}

// ToJSON returns the serializable form of the entity.
func (e *Entity) ToJSON() Attributes {
	if e.kind != nil && e.kind.ToJSON != nil {
		return e.kind.ToJSON(e)
	}
	return e.attributes.Clone()
}

// MarshalJSON implements json.Marshaler.
func (e *Entity) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.ToJSON())
}

// URL returns the entity's sync URL: the kind's URL hook if set, otherwise the
// URL root (the kind's, else the owner's URL) followed by the escaped id for
// persisted entities.
func (e *Entity) URL() (string, error) {
	if e.kind != nil && e.kind.URL != nil {
		return e.kind.URL(e)
	}

	var base string
	if e.kind != nil {
		base = e.kind.URLRoot
	}
	if base == "" && e.collection != nil {
		if u, err := e.collection.URL(); err == nil {
			base = u
		}
	}
	if base == "" {
		return "", ErrURLRequired
	}
	if e.IsNew() {
		return base, nil
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + escapeComponent(transport.IDString(e.Get(e.IDAttribute()))), nil
}

// Syncer returns the kind's transport, or the owner's.
func (e *Entity) Syncer() transport.Syncer {
	if e.kind != nil && e.kind.Sync != nil {
		return e.kind.Sync
	}
	if e.collection != nil {
		return e.collection.Syncer()
	}
	return nil
}

// escapeComponent escapes s for use as a single URL path component, encoding
// spaces as %20.
func escapeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
