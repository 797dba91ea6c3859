package entity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"

	"github.com/roach88/bindery/internal/transport"
)

// Syncable is anything that can be the target of a sync call: an Entity or an
// entity set.
type Syncable interface {
	Trigger(name string, args ...any)
	URL() (string, error)
	Syncer() transport.Syncer
	Logger() *slog.Logger
}

// NewRequest builds the request for a sync call on target. The URL is
// opts.URL or target.URL(); write verbs carry opts.Attrs, or payload() when
// Attrs is nil, as the JSON body; opts.Data becomes the query of reads.
func NewRequest(method transport.Method, target Syncable, opts *Options, payload func() any) (*transport.Request, error) {
	u := opts.URL
	if u == "" {
		var err error
		if u, err = target.URL(); err != nil {
			return nil, err
		}
	}

	req := &transport.Request{Method: method, URL: u}
	if method.HasBody() {
		var body any
		switch {
		case opts.Attrs != nil:
			body = opts.Attrs
		case payload != nil:
			body = payload()
		}
		if body != nil {
			data, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("encode %s body: %w", method, err)
			}
			req.Body = data
		}
	} else if len(opts.Data) > 0 {
		req.Query = opts.Data
	}
	return req, nil
}

// Send fires "request" on target and performs req through target's Syncer.
// The response is recorded in opts.Response.
func Send(ctx context.Context, target Syncable, req *transport.Request, opts *Options) (*transport.Response, error) {
	return send(ctx, target, req, opts, nil)
}

// send is Send with a hook that runs after "request" fires and before the
// transport is called, which is where optimistic updates happen.
func send(ctx context.Context, target Syncable, req *transport.Request, opts *Options, sent func()) (*transport.Response, error) {
	s := target.Syncer()
	if s == nil {
		return nil, ErrNoTransport
	}

	target.Trigger("request", target, req, opts)
	if sent != nil {
		sent()
	}

	resp, err := s.Do(ctx, req)
	opts.Response = resp
	if err == nil && resp == nil {
		err = fmt.Errorf("%s %s: empty response", req.Method, req.URL)
	}

	target.Logger().Debug("sync",
		"method", string(req.Method),
		"url", req.URL,
		"error", err,
	)
	return resp, err
}

// Fail reports a failed sync call: it fires "error" with (target, resp, opts),
// runs the Error and Complete callbacks and returns the *SyncError.
func Fail(target Syncable, resp *transport.Response, opts *Options, err error) error {
	target.Trigger("error", target, resp, opts)
	if opts.Error != nil {
		opts.Error(target, resp, opts)
	}
	if opts.Complete != nil {
		opts.Complete()
	}
	return &SyncError{Target: target, Response: resp, Options: opts, Err: err}
}

// Succeed reports a successful sync call: it fires "sync" with
// (target, resp, opts) and runs the Success and Complete callbacks.
func Succeed(target Syncable, resp *transport.Response, opts *Options) {
	target.Trigger("sync", target, resp, opts)
	finish(target, resp, opts)
}

func finish(target Syncable, resp *transport.Response, opts *Options) {
	if opts.Success != nil {
		opts.Success(target, resp, opts)
	}
	if opts.Complete != nil {
		opts.Complete()
	}
}

// Fetch reads the entity from its transport and sets the parsed response.
// Parsing is on unless opts.SkipParse.
func (e *Entity) Fetch(ctx context.Context, opts *Options) (*transport.Response, error) {
	opts = opts.Clone()
	opts.Parse = !opts.SkipParse

	req, err := NewRequest(transport.Read, e, opts, nil)
	if err != nil {
		return nil, err
	}
	resp, err := Send(ctx, e, req, opts)
	if err != nil {
		return resp, Fail(e, resp, opts, err)
	}

	if !e.Set(e.serverAttributes(resp, opts), opts) {
		return resp, invalidError(e.validationError)
	}
	Succeed(e, resp, opts)
	return resp, nil
}

// Save writes the entity through its transport: create when it is new, patch
// when opts.Patch, update otherwise. Validation and parsing are on unless
// opts.SkipValidate / opts.SkipParse.
//
// Without opts.Wait, attrs are set before the call. With opts.Wait they are
// applied only while the request URL and body are built, then the previous
// attributes are restored until the server confirms; on success the entity is
// set to attrs merged with the server's response.
func (e *Entity) Save(ctx context.Context, attrs Attributes, opts *Options) (*transport.Response, error) {
	opts = opts.Clone()
	opts.Validate = !opts.SkipValidate
	opts.Parse = !opts.SkipParse

	if attrs != nil && !opts.Wait {
		if !e.Set(attrs, opts) {
			return nil, invalidError(e.validationError)
		}
	} else if !e.validate(attrs, opts) {
		return nil, invalidError(e.validationError)
	}

	saved := e.attributes
	if attrs != nil && opts.Wait {
		temp := saved.Clone()
		maps.Copy(temp, attrs)
		e.attributes = temp
	}

	method := transport.Update
	switch {
	case e.IsNew():
		method = transport.Create
	case opts.Patch:
		method = transport.Patch
	}
	if method == transport.Patch && opts.Attrs == nil {
		opts.Attrs = attrs
	}

	req, err := NewRequest(method, e, opts, func() any { return e.ToJSON() })
	e.attributes = saved
	if err != nil {
		return nil, err
	}

	resp, err := Send(ctx, e, req, opts)
	if err != nil {
		return resp, Fail(e, resp, opts, err)
	}

	server := e.serverAttributes(resp, opts)
	if opts.Wait {
		merged := attrs.Clone()
		maps.Copy(merged, server)
		server = merged
	}
	if server != nil && !e.Set(server, opts) {
		return resp, invalidError(e.validationError)
	}
	Succeed(e, resp, opts)
	return resp, nil
}

// Destroy deletes the entity through its transport and fires "destroy", which
// removes it from every entity set holding it. Without opts.Wait the
// "destroy" event fires as soon as the request is issued; with it, only after
// the server confirms. A new entity is never sent to the server.
func (e *Entity) Destroy(ctx context.Context, opts *Options) (*transport.Response, error) {
	opts = opts.Clone()
	destroy := func() {
		e.StopListening(nil, "", nil)
		e.Trigger("destroy", e, e.collection, opts)
	}

	if e.IsNew() {
		destroy()
		finish(e, nil, opts)
		return nil, nil
	}

	req, err := NewRequest(transport.Delete, e, opts, nil)
	if err != nil {
		return nil, err
	}

	resp, err := send(ctx, e, req, opts, func() {
		if !opts.Wait {
			destroy()
		}
	})
	if err != nil {
		return resp, Fail(e, resp, opts, err)
	}

	if opts.Wait {
		destroy()
	}
	Succeed(e, resp, opts)
	return resp, nil
}

func (e *Entity) serverAttributes(resp *transport.Response, opts *Options) Attributes {
	if opts.Parse {
		return e.Parse(resp.JSON, opts)
	}
	return AsAttributes(resp.JSON)
}
