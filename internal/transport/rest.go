package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"strconv"
	"strings"
)

// REST is an in-process Syncer that answers sync calls the way a conventional
// JSON REST API would, backed by a ResourceStore:
//
//	create  POST   /books      store the body, assign an id when missing, 201
//	read    GET    /books      list the collection, 200
//	read    GET    /books/42   fetch one resource, 200 or 404
//	update  PUT    /books/42   replace (or create) the resource, 200
//	patch   PATCH  /books/42   merge into the resource, 200 or 404
//	delete  DELETE /books/42   remove the resource, 200 or 404
type REST struct {
	store       ResourceStore
	ids         IDGenerator
	idAttribute string
	logger      *slog.Logger
}

// RESTOption configures a REST endpoint.
type RESTOption func(*REST)

// WithIDGenerator sets how ids are assigned to created resources without one.
func WithIDGenerator(g IDGenerator) RESTOption {
	return func(r *REST) {
		r.ids = g
	}
}

// WithIDAttribute sets the attribute holding each resource's id.
func WithIDAttribute(attr string) RESTOption {
	return func(r *REST) {
		r.idAttribute = attr
	}
}

// WithRESTLogger sets the logger requests are reported to at debug level.
func WithRESTLogger(l *slog.Logger) RESTOption {
	return func(r *REST) {
		r.logger = l
	}
}

// NewREST creates a REST endpoint over store.
func NewREST(store ResourceStore, opts ...RESTOption) *REST {
	r := &REST{
		store:       store,
		ids:         UUIDv7Generator{},
		idAttribute: "id",
		logger:      discardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewMemoryREST is shorthand for a REST endpoint over a fresh Memory store.
func NewMemoryREST(opts ...RESTOption) *REST {
	return NewREST(NewMemory(), opts...)
}

// Seed stores items in collection without going through a sync call.
func (r *REST) Seed(ctx context.Context, collection string, items ...map[string]any) error {
	for _, item := range items {
		attrs := maps.Clone(item)
		id := IDString(attrs[r.idAttribute])
		if id == "" {
			id = r.ids.Generate()
			attrs[r.idAttribute] = id
		}
		if err := r.store.Put(ctx, normalizePath(collection), id, attrs); err != nil {
			return fmt.Errorf("seed %s: %w", collection, err)
		}
	}
	return nil
}

// Do answers req from the store.
func (r *REST) Do(ctx context.Context, req *Request) (*Response, error) {
	resp, err := r.handle(ctx, req)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("sync request",
		"method", req.Method.HTTPMethod(),
		"url", req.URL,
		"status", resp.Status,
	)
	return checkStatus(req, resp)
}

func (r *REST) handle(ctx context.Context, req *Request) (*Response, error) {
	path := normalizePath(req.URL)
	collection, id := splitResource(path)

	switch req.Method {
	case Create:
		attrs, err := decodeObject(req.Body)
		if err != nil {
			return errorResponse(http.StatusBadRequest, err)
		}
		rid := IDString(attrs[r.idAttribute])
		if rid == "" {
			rid = r.ids.Generate()
			attrs[r.idAttribute] = rid
		}
		if err := r.store.Put(ctx, path, rid, attrs); err != nil {
			return nil, err
		}
		return JSONResponse(http.StatusCreated, attrs)

	case Read:
		items, err := r.store.List(ctx, path)
		if err != nil {
			return nil, err
		}
		if len(items) > 0 || id == "" {
			return JSONResponse(http.StatusOK, nonNil(items))
		}
		item, err := r.store.Get(ctx, collection, id)
		switch {
		case err == nil:
			return JSONResponse(http.StatusOK, item)
		case errors.Is(err, ErrNotFound):
			siblings, lerr := r.store.List(ctx, collection)
			if lerr != nil {
				return nil, lerr
			}
			if len(siblings) > 0 {
				return errorResponse(http.StatusNotFound, err)
			}
			return JSONResponse(http.StatusOK, []map[string]any{})
		default:
			return nil, err
		}

	case Update, Patch:
		if id == "" {
			return errorResponse(http.StatusBadRequest, errors.New("missing resource id"))
		}
		attrs, err := decodeObject(req.Body)
		if err != nil {
			return errorResponse(http.StatusBadRequest, err)
		}
		current, err := r.store.Get(ctx, collection, id)
		switch {
		case err == nil:
		case errors.Is(err, ErrNotFound) && req.Method == Update:
			current = map[string]any{}
		case errors.Is(err, ErrNotFound):
			return errorResponse(http.StatusNotFound, err)
		default:
			return nil, err
		}
		if req.Method == Patch {
			maps.Copy(current, attrs)
			attrs = current
		}
		if _, ok := attrs[r.idAttribute]; !ok {
			attrs[r.idAttribute] = id
		}
		if err := r.store.Put(ctx, collection, id, attrs); err != nil {
			return nil, err
		}
		return JSONResponse(http.StatusOK, attrs)

	case Delete:
		if err := r.store.Delete(ctx, collection, id); err != nil {
			if errors.Is(err, ErrNotFound) {
				return errorResponse(http.StatusNotFound, err)
			}
			return nil, err
		}
		return NewResponse(http.StatusOK, nil), nil
	}

	return errorResponse(http.StatusMethodNotAllowed, fmt.Errorf("unsupported method %q", req.Method))
}

// IDString renders an id attribute the way it appears in a URL. Numbers use
// their shortest decimal form so 1 and 1.0 address the same resource.
func IDString(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(id), 'f', -1, 32)
	case json.Number:
		return id.String()
	default:
		return fmt.Sprint(id)
	}
}

func normalizePath(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	if i := strings.Index(u, "://"); i >= 0 {
		rest := u[i+3:]
		if j := strings.Index(rest, "/"); j >= 0 {
			u = rest[j:]
		} else {
			u = "/"
		}
	}
	return "/" + strings.Trim(u, "/")
}

// splitResource splits "/books/42" into "/books" and "42".
func splitResource(path string) (collection, id string) {
	i := strings.LastIndex(path, "/")
	if i < 0 || path == "/" {
		return path, ""
	}
	collection = path[:i]
	if collection == "" {
		collection = "/"
	}
	return collection, path[i+1:]
}

func decodeObject(body []byte) (map[string]any, error) {
	if len(body) == 0 {
		return map[string]any{}, nil
	}
	var attrs map[string]any
	if err := json.Unmarshal(body, &attrs); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	if attrs == nil {
		attrs = map[string]any{}
	}
	return attrs, nil
}

func errorResponse(status int, err error) (*Response, error) {
	return JSONResponse(status, map[string]any{"error": err.Error()})
}

func nonNil(items []map[string]any) []map[string]any {
	if items == nil {
		return []map[string]any{}
	}
	return items
}
