package history

import "strings"

// Location is the host's view of the current URL.
//
// Path returns the current path with its query and hash exactly as the host
// has it, percent escapes included ("/search/caf%C3%A9?page=2#top"). Push and
// Replace record a new URL, adding a history entry or replacing the current
// one, without notifying the History.
type Location interface {
	Path() string
	Push(url string)
	Replace(url string)
}

// MemoryLocation is an in-process Location with a back/forward stack. It
// stands in for the browser in tests and non-browser hosts. The zero value is
// at "/".
type MemoryLocation struct {
	entries []string
	index   int
}

// NewMemoryLocation returns a MemoryLocation positioned at url.
func NewMemoryLocation(url string) *MemoryLocation {
	return &MemoryLocation{entries: []string{stripOrigin(url)}}
}

// Path implements Location.
func (l *MemoryLocation) Path() string {
	if len(l.entries) == 0 {
		return "/"
	}
	return l.entries[l.index]
}

// Push implements Location. Forward entries are discarded.
func (l *MemoryLocation) Push(url string) {
	if len(l.entries) == 0 {
		l.entries = []string{"/"}
	}
	l.entries = append(l.entries[:l.index+1], stripOrigin(url))
	l.index = len(l.entries) - 1
}

// Replace implements Location.
func (l *MemoryLocation) Replace(url string) {
	if len(l.entries) == 0 {
		l.entries = []string{stripOrigin(url)}
		return
	}
	l.entries[l.index] = stripOrigin(url)
}

// Visit moves to url as if the user had typed it: a new entry is pushed. Call
// History.CheckURL afterwards to dispatch it.
func (l *MemoryLocation) Visit(url string) {
	l.Push(url)
}

// Back moves one entry back and reports whether it could.
func (l *MemoryLocation) Back() bool {
	if l.index == 0 {
		return false
	}
	l.index--
	return true
}

// Forward moves one entry forward and reports whether it could.
func (l *MemoryLocation) Forward() bool {
	if l.index >= len(l.entries)-1 {
		return false
	}
	l.index++
	return true
}

// Entries returns a copy of the history stack, oldest first.
func (l *MemoryLocation) Entries() []string {
	if len(l.entries) == 0 {
		return []string{"/"}
	}
	return append([]string(nil), l.entries...)
}

// stripOrigin drops a leading scheme and host so "http://example.com/a" and
// "/a" are the same location.
func stripOrigin(url string) string {
	if i := strings.Index(url, "://"); i >= 0 {
		rest := url[i+3:]
		j := strings.IndexAny(rest, "/?#")
		if j < 0 {
			return "/"
		}
		rest = rest[j:]
		if rest[0] != '/' {
			rest = "/" + rest
		}
		return rest
	}
	if url == "" || url[0] != '/' {
		return "/" + url
	}
	return url
}
