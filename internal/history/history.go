package history

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/roach88/bindery/internal/events"
)

// History dispatches URL fragments to route handlers. It is stopped until
// Start is called; while started, the host calls CheckURL on every
// back/forward navigation.
//
// History embeds an events.Channel and fires "route" with
// (router, name, args) whenever a router dispatches.
type History struct {
	events.Channel

	location Location
	logger   *slog.Logger
	handlers []handler
	started  bool
	root     string
	fragment string
}

type handler struct {
	pattern  *regexp.Regexp
	callback func(fragment string)
}

// Option configures a History.
type Option func(*History)

// WithLogger sets the logger dispatch decisions are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(h *History) {
		h.logger = l
	}
}

// StartOptions configure Start.
type StartOptions struct {
	// Root is the path the application is served from. Default "/".
	Root string

	// Silent skips the initial dispatch of the current URL.
	Silent bool
}

// NavigateOptions configure Navigate.
type NavigateOptions struct {
	// Trigger dispatches the new fragment to the route handlers.
	Trigger bool

	// Replace replaces the current history entry instead of pushing one.
	Replace bool
}

// New returns a stopped History reading from loc. A nil loc uses a
// MemoryLocation at "/".
func New(loc Location, opts ...Option) *History {
	if loc == nil {
		loc = NewMemoryLocation("/")
	}
	h := &History{
		location: loc,
		logger:   slog.New(slog.DiscardHandler),
		root:     "/",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Location returns the location the History reads from.
func (h *History) Location() Location { return h.location }

// Start begins handling navigation. Unless opts.Silent, the current URL is
// dispatched and the result reports whether a route matched.
func (h *History) Start(opts StartOptions) (bool, error) {
	if h.started {
		return false, ErrAlreadyStarted
	}
	h.started = true
	h.root = normalizeRoot(opts.Root)
	h.fragment = h.GetFragment()

	h.logger.Debug("history started", "root", h.root, "fragment", h.fragment)
	if opts.Silent {
		return false, nil
	}
	return h.LoadURL(), nil
}

// Stop ends navigation handling. A stopped History may be started again.
func (h *History) Stop() {
	h.started = false
}

// Started reports whether the History is handling navigation.
func (h *History) Started() bool { return h.started }

// Root returns the normalized root, with leading and trailing slashes.
func (h *History) Root() string { return h.root }

// Fragment returns the fragment most recently loaded or navigated to.
func (h *History) Fragment() string { return h.fragment }

// Route registers callback for fragments matching pattern. Routes registered
// later are tried first.
func (h *History) Route(pattern *regexp.Regexp, callback func(fragment string)) {
	h.handlers = append([]handler{{pattern: pattern, callback: callback}}, h.handlers...)
}

// CheckURL dispatches the current URL if its fragment differs from the last
// one seen. It reports whether a route matched.
func (h *History) CheckURL() bool {
	if !h.started {
		return false
	}
	if h.GetFragment() == h.fragment {
		return false
	}
	return h.LoadURL()
}

// LoadURL dispatches the fragment of the current URL.
func (h *History) LoadURL() bool {
	return h.load(h.GetFragment())
}

// LoadFragment dispatches fragment. It reports whether a route matched; none
// can when the current path is outside the root.
func (h *History) LoadFragment(fragment string) bool {
	return h.load(NormalizeFragment(fragment))
}

func (h *History) load(fragment string) bool {
	if !h.MatchRoot() {
		h.logger.Debug("path outside root", "root", h.root, "path", h.location.Path())
		return false
	}
	h.fragment = fragment

	for _, hd := range h.handlers {
		if hd.pattern.MatchString(fragment) {
			h.logger.Debug("route matched", "fragment", fragment, "pattern", hd.pattern.String())
			hd.callback(fragment)
			return true
		}
	}
	h.logger.Debug("no route matched", "fragment", fragment)
	return false
}

// Navigate records fragment as the current location, pushing a history entry
// or replacing the current one. The fragment must already be URL-encoded.
//
// Navigating to the fragment already current does nothing. With opts.Trigger
// the fragment is dispatched and the result reports whether a route matched.
// A stopped History ignores Navigate.
func (h *History) Navigate(fragment string, opts NavigateOptions) bool {
	if !h.started {
		return false
	}

	fragment = NormalizeFragment(fragment)

	// No trailing slash on the root.
	rootPath := h.root
	if fragment == "" || fragment[0] == '?' {
		rootPath = strings.TrimSuffix(rootPath, "/")
		if rootPath == "" {
			rootPath = "/"
		}
	}
	url := rootPath + fragment

	fragment = hashStripper.ReplaceAllString(fragment, "")
	decoded := DecodeFragment(fragment)
	if h.fragment == decoded {
		return false
	}
	h.fragment = decoded

	if opts.Replace {
		h.location.Replace(url)
	} else {
		h.location.Push(url)
	}

	if opts.Trigger {
		return h.LoadFragment(fragment)
	}
	return false
}

// AtRoot reports whether the current URL is the root with no query.
func (h *History) AtRoot() bool {
	pathname, search := splitPath(h.location.Path())
	if !strings.HasSuffix(pathname, "/") {
		pathname += "/"
	}
	return pathname == h.root && search == ""
}

// MatchRoot reports whether the current path lies under the root.
func (h *History) MatchRoot() bool {
	pathname, _ := splitPath(h.location.Path())
	path := DecodeFragment(pathname)
	n := min(len(h.root)-1, len(path))
	return path[:n]+"/" == h.root
}

// GetPath returns the decoded path and query of the current URL, relative to
// the root.
func (h *History) GetPath() string {
	pathname, search := splitPath(h.location.Path())
	path := DecodeFragment(pathname + search)
	path = path[min(len(h.root)-1, len(path)):]
	return strings.TrimPrefix(path, "/")
}

// GetFragment returns the normalized fragment of the current URL.
func (h *History) GetFragment() string {
	return NormalizeFragment(h.GetPath())
}
