package entity

import (
	"log/slog"

	"github.com/roach88/bindery/internal/transport"
)

// Kind describes a class of entities: its id attribute, defaults, hooks and
// sync configuration. A nil *Kind is valid and uses every default.
type Kind struct {
	Name string

	// IDAttribute names the attribute holding the business id. Default "id".
	IDAttribute string

	// CIDPrefix prefixes client ids. Default "c".
	CIDPrefix string

	// Defaults are applied underneath the attributes given to New.
	Defaults Attributes

	// Preinitialize runs before anything else in New.
	Preinitialize func(attrs Attributes, opts *Options)

	// Initialize runs last in New.
	Initialize func(e *Entity, attrs Attributes, opts *Options)

	// Validate checks a prospective attribute set. It runs only when
	// Options.Validate is set.
	Validate func(attrs Attributes, opts *Options) error

	// Parse converts a raw server response into attributes.
	Parse func(resp any, opts *Options) Attributes

	// URLRoot is the collection URL for entities not in a set.
	URLRoot string

	// URL replaces the default URL construction.
	URL func(e *Entity) (string, error)

	// Sync is the transport for entities of this kind. When nil the owning
	// collection's transport is used.
	Sync transport.Syncer

	// ToJSON replaces the default serialization (a copy of the attributes).
	ToJSON func(e *Entity) Attributes

	Logger *slog.Logger
}

func (k *Kind) idAttribute() string {
	if k == nil || k.IDAttribute == "" {
		return "id"
	}
	return k.IDAttribute
}

func (k *Kind) cidPrefix() string {
	if k == nil || k.CIDPrefix == "" {
		return "c"
	}
	return k.CIDPrefix
}

// IDAttr returns the id attribute name, defaulting to "id".
func (k *Kind) IDAttr() string {
	return k.idAttribute()
}

func (k *Kind) logger() *slog.Logger {
	if k == nil || k.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return k.Logger
}
