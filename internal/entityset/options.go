package entityset

import (
	"log/slog"

	"github.com/roach88/bindery/internal/entity"
	"github.com/roach88/bindery/internal/transport"
)

// Options configures a Set.
type Options struct {
	// Kind is the kind of entities materialized from attributes. Its id
	// attribute is also what ModelID reads by default.
	Kind *entity.Kind

	// Factory replaces entity.New for materializing members, so one set can
	// hold entities of several kinds.
	Factory func(attrs entity.Attributes, opts *entity.Options) *entity.Entity

	Comparator Comparator

	// ModelID computes the identity of an attribute bag. The default reads
	// Kind's id attribute.
	ModelID func(attrs entity.Attributes) any

	URL string

	// Parse converts a raw response into the list of items to set. The
	// default passes the response through.
	Parse func(resp any, opts *entity.Options) any

	Sync   transport.Syncer
	Logger *slog.Logger

	// Preinitialize runs before the set is set up; Initialize runs before the
	// initial models are added.
	Preinitialize func(models any, opts *Options)
	Initialize    func(s *Set, models any, opts *Options)

	// Entity holds the options the initial models are added with (Parse,
	// Validate). Silent is always forced.
	Entity *entity.Options
}
