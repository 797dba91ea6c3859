package transport

import "net/http"

// Method is a sync verb.
type Method string

const (
	Create Method = "create"
	Read   Method = "read"
	Update Method = "update"
	Patch  Method = "patch"
	Delete Method = "delete"
)

// HTTPMethod maps the verb to its HTTP method.
func (m Method) HTTPMethod() string {
	switch m {
	case Create:
		return http.MethodPost
	case Update:
		return http.MethodPut
	case Patch:
		return http.MethodPatch
	case Delete:
		return http.MethodDelete
	default:
		return http.MethodGet
	}
}

// HasBody reports whether requests with this verb carry a JSON body.
func (m Method) HasBody() bool {
	return m == Create || m == Update || m == Patch
}

// Valid reports whether m is one of the five sync verbs.
func (m Method) Valid() bool {
	switch m {
	case Create, Read, Update, Patch, Delete:
		return true
	}
	return false
}

// MethodFromHTTP maps an HTTP method back to its verb.
func MethodFromHTTP(method string) (Method, bool) {
	switch method {
	case http.MethodPost:
		return Create, true
	case http.MethodGet:
		return Read, true
	case http.MethodPut:
		return Update, true
	case http.MethodPatch:
		return Patch, true
	case http.MethodDelete:
		return Delete, true
	}
	return "", false
}
