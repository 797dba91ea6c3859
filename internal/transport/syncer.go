package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// Request is one sync call.
type Request struct {
	Method Method
	URL    string

	// Body is the JSON payload for create, update and patch.
	Body []byte

	// Query is appended to the URL of read requests.
	Query url.Values

	Header http.Header
}

// Response is the result of a sync call.
type Response struct {
	Status int
	Header http.Header
	Body   []byte

	// JSON is the decoded body. See DecodeBody.
	JSON any
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

// Syncer performs sync calls. Implementations return a non-nil Response
// whenever the backend answered, including alongside a *StatusError.
type Syncer interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// SyncerFunc adapts a function to Syncer.
type SyncerFunc func(ctx context.Context, req *Request) (*Response, error)

// Do calls f.
func (f SyncerFunc) Do(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// NewResponse builds a Response and decodes its body.
func NewResponse(status int, body []byte) *Response {
	return &Response{
		Status: status,
		Header: http.Header{},
		Body:   body,
		JSON:   DecodeBody(body),
	}
}

// DecodeBody decodes a JSON body. Empty or malformed bodies (a 204, an HTML
// error page) decode to an empty object.
func DecodeBody(body []byte) any {
	var v any
	if len(body) == 0 || json.Unmarshal(body, &v) != nil {
		return map[string]any{}
	}
	return v
}

// JSONResponse marshals v into a Response with the given status.
func JSONResponse(status int, v any) (*Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	resp := NewResponse(status, body)
	resp.Header.Set("Content-Type", "application/json")
	return resp, nil
}

// checkStatus turns a non-2xx Response into a *StatusError.
func checkStatus(req *Request, resp *Response) (*Response, error) {
	if resp.OK() {
		return resp, nil
	}
	return resp, &StatusError{Method: req.Method, URL: req.URL, Status: resp.Status, Response: resp}
}
