package router

import (
	"log/slog"
	"regexp"

	"github.com/roach88/bindery/internal/events"
	"github.com/roach88/bindery/internal/history"
)

// Handler receives the arguments extracted from a matched fragment.
type Handler func(args ...any)

// Route is one entry of a route table.
type Route struct {
	Pattern string
	Name    string

	// Handler runs on a match. When nil, Options.Handlers[Name] is used; a
	// route with neither still fires its events.
	Handler Handler
}

// Options configure New.
type Options struct {
	// Routes are tried in order: put specific patterns before general ones.
	Routes []Route

	// Handlers resolves the handler of routes registered without one.
	Handlers map[string]Handler

	// Preinitialize runs before the routes are bound; Initialize runs last.
	Preinitialize func(r *Router, opts Options)
	Initialize    func(r *Router, opts Options)

	// Execute runs a matched route's handler. Returning false suppresses the
	// route events. The default calls handler when it is non-nil.
	Execute func(handler Handler, args []any, name string) bool

	Logger *slog.Logger
}

// Router registers named routes on a History and fires an event for every
// dispatch: "route:<name>" with the arguments, then "route" with
// (name, args) on the router, then "route" with (router, name, args) on the
// History.
type Router struct {
	events.Channel

	history  *history.History
	handlers map[string]Handler
	execute  func(handler Handler, args []any, name string) bool
	logger   *slog.Logger
}

// New binds opts.Routes to h and returns the router. It returns an error when
// a pattern does not compile.
func New(h *history.History, opts Options) (*Router, error) {
	r := &Router{
		history:  h,
		handlers: opts.Handlers,
		execute:  opts.Execute,
		logger:   opts.Logger,
	}
	if r.execute == nil {
		r.execute = defaultExecute
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}

	if opts.Preinitialize != nil {
		opts.Preinitialize(r, opts)
	}

	// History tries the most recent registration first, so bind in reverse
	// to give earlier table entries precedence.
	for i := len(opts.Routes) - 1; i >= 0; i-- {
		rt := opts.Routes[i]
		if err := r.Route(rt.Pattern, rt.Name, rt.Handler); err != nil {
			return nil, err
		}
	}

	if opts.Initialize != nil {
		opts.Initialize(r, opts)
	}
	return r, nil
}

func defaultExecute(handler Handler, args []any, _ string) bool {
	if handler != nil {
		handler(args...)
	}
	return true
}

// History returns the History the router is bound to.
func (r *Router) History() *history.History { return r.history }

// Route compiles pattern and binds it under name. Routes bound later take
// precedence over earlier ones.
func (r *Router) Route(pattern, name string, handler Handler) error {
	re, err := Compile(pattern)
	if err != nil {
		return err
	}
	r.RouteRegexp(re, name, handler)
	return nil
}

// RouteRegexp binds a ready-made regular expression under name. Every capture
// group becomes an argument, the last one undecoded.
func (r *Router) RouteRegexp(re *regexp.Regexp, name string, handler Handler) {
	if handler == nil {
		handler = r.handlers[name]
	}

	r.history.Route(re, func(fragment string) {
		args := ExtractParameters(re, fragment)
		if !r.execute(handler, args, name) {
			r.logger.Debug("route cancelled", "name", name, "fragment", fragment)
			return
		}
		r.logger.Debug("route", "name", name, "fragment", fragment)
		r.Trigger("route:"+name, args...)
		r.Trigger("route", name, args)
		r.history.Trigger("route", r, name, args)
	})
}

// Navigate saves fragment into the history. See history.History.Navigate.
func (r *Router) Navigate(fragment string, opts history.NavigateOptions) bool {
	return r.history.Navigate(fragment, opts)
}
