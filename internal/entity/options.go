package entity

import (
	"maps"
	"net/url"

	"github.com/roach88/bindery/internal/transport"
)

// SyncCallback is invoked with the sync target, the response and the options
// of a completed sync call.
type SyncCallback func(target any, resp *transport.Response, opts *Options)

// Changes describes one entity-set update.
type Changes struct {
	Added   []*Entity
	Removed []*Entity
	Merged  []*Entity
}

// Options is shared by entity and entity-set operations. Handlers receive the
// same *Options the operation was called with (after defaults were applied),
// so fields like Index and Changes are how sets report details to listeners.
type Options struct {
	Silent   bool
	Validate bool

	// Unset removes the given keys. Values passed alongside are ignored: a
	// key counts as changed exactly when it was present.
	Unset bool

	Parse bool
	Wait  bool
	Patch bool
	Reset bool

	// SkipParse and SkipValidate turn off the parse and validate defaults of
	// Fetch and Save.
	SkipParse    bool
	SkipValidate bool

	// Entity-set reconciliation switches. nil means the operation's default.
	Add    *bool
	Remove *bool
	Merge  *bool
	Sort   *bool

	// At is the insertion index for entity-set adds; negative counts from the
	// end.
	At *int

	// Index is set on "add" and "remove" events.
	Index *int

	// Changes is set on entity-set "update" events.
	Changes *Changes

	// PreviousModels is set on entity-set "reset" events.
	PreviousModels []*Entity

	// ValidationError is set on "invalid" events.
	ValidationError error

	// Collection is the owner a new entity is constructed for.
	Collection Owner

	// URL overrides the sync URL; Attrs overrides the sync body; Data is sent
	// as the query string of read requests.
	URL   string
	Attrs Attributes
	Data  url.Values

	// Response is filled in with the transport response of a sync call.
	Response *transport.Response

	Success  SyncCallback
	Error    SyncCallback
	Complete func()

	// Extra carries caller-defined values through to event handlers.
	Extra map[string]any
}

// Clone returns a copy of o. Cloning nil returns empty options.
func (o *Options) Clone() *Options {
	if o == nil {
		return &Options{}
	}
	c := *o
	if o.Extra != nil {
		c.Extra = maps.Clone(o.Extra)
	}
	return &c
}

// Bool returns a pointer to b, for the optional switches of Options.
func Bool(b bool) *bool {
	return &b
}

// Int returns a pointer to i, for Options.At.
func Int(i int) *int {
	return &i
}

// BoolOr dereferences p, or returns def when p is nil.
func BoolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
