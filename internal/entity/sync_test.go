package entity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bindery/internal/events"
	"github.com/roach88/bindery/internal/transport"
)

// recorder is a Syncer that records requests and answers with a canned
// response, or echoes write bodies back with 200.
type recorder struct {
	requests []*transport.Request
	status   int
	reply    any
	err      error
}

func (r *recorder) Do(_ context.Context, req *transport.Request) (*transport.Response, error) {
	r.requests = append(r.requests, req)
	if r.err != nil {
		return nil, r.err
	}
	status := r.status
	if status == 0 {
		status = http.StatusOK
	}
	if r.reply != nil {
		return transport.JSONResponse(status, r.reply)
	}
	resp := transport.NewResponse(status, req.Body)
	if status >= 300 {
		return resp, &transport.StatusError{Method: req.Method, URL: req.URL, Status: status, Response: resp}
	}
	return resp, nil
}

func (r *recorder) last() *transport.Request {
	return r.requests[len(r.requests)-1]
}

func body(t *testing.T, req *transport.Request) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(req.Body, &m))
	return m
}

func TestFetch(t *testing.T) {
	ctx := context.Background()
	rest := transport.NewMemoryREST()
	require.NoError(t, rest.Seed(ctx, "/books", map[string]any{"id": "1", "title": "The Tempest"}))

	e := New(&Kind{URLRoot: "/books", Sync: rest}, Attributes{"id": "1"}, nil)
	var synced []any
	e.On("sync", events.Func(func(args ...any) { synced = args }), nil)

	resp, err := e.Fetch(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "The Tempest", e.Get("title"))
	require.Len(t, synced, 3)
	assert.Same(t, e, synced[0])
	assert.Same(t, resp, synced[1])
}

func TestFetch_ParseAndData(t *testing.T) {
	rec := &recorder{reply: map[string]any{"data": map[string]any{"id": "1", "n": 2}}}
	kind := &Kind{
		URLRoot: "/things",
		Sync:    rec,
		Parse: func(resp any, _ *Options) Attributes {
			return AsAttributes(AsAttributes(resp)["data"])
		},
	}
	e := New(kind, Attributes{"id": "1"}, nil)

	_, err := e.Fetch(context.Background(), &Options{Data: url.Values{"a": {"b"}}})
	require.NoError(t, err)
	assert.Equal(t, 2.0, e.Get("n"))
	assert.Equal(t, transport.Read, rec.last().Method)
	assert.Equal(t, "/things/1", rec.last().URL)
	assert.Equal(t, "b", rec.last().Query.Get("a"))

	_, err = e.Fetch(context.Background(), &Options{SkipParse: true})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "1", "n": 2.0}, e.Get("data"))
}

func TestFetch_Error(t *testing.T) {
	rec := &recorder{status: http.StatusInternalServerError}
	e := New(&Kind{URLRoot: "/things", Sync: rec}, Attributes{"id": 1}, nil)

	var errored []any
	var failed, completed bool
	e.On("error", events.Func(func(args ...any) { errored = args }), nil)

	opts := &Options{
		Error:    func(any, *transport.Response, *Options) { failed = true },
		Complete: func() { completed = true },
	}
	_, err := e.Fetch(context.Background(), opts)
	require.Error(t, err)

	se, ok := AsSyncError(err)
	require.True(t, ok)
	assert.Same(t, e, se.Target)
	assert.Equal(t, http.StatusInternalServerError, se.Response.Status)
	assert.True(t, transport.IsStatus(err, http.StatusInternalServerError))
	require.Len(t, errored, 3)
	assert.Same(t, e, errored[0])
	assert.True(t, failed)
	assert.True(t, completed)
}

func TestFetch_NoTransport(t *testing.T) {
	e := New(&Kind{URLRoot: "/things"}, Attributes{"id": 1}, nil)
	_, err := e.Fetch(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoTransport)

	e = New(nil, Attributes{"id": 1}, nil)
	_, err = e.Fetch(context.Background(), nil)
	assert.ErrorIs(t, err, ErrURLRequired)
}

func TestSave_CreateThenUpdate(t *testing.T) {
	ctx := context.Background()
	rest := transport.NewMemoryREST(transport.WithIDGenerator(transport.NewFixedGenerator("b1")))
	e := New(&Kind{URLRoot: "/books", Sync: rest}, Attributes{"title": "Emma"}, nil)

	var requested []any
	e.On("request", events.Func(func(args ...any) { requested = args }), nil)

	resp, err := e.Save(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.Equal(t, "b1", e.ID())
	assert.False(t, e.IsNew())
	require.Len(t, requested, 3)
	assert.Equal(t, transport.Create, requested[1].(*transport.Request).Method)

	_, err = e.Save(ctx, Attributes{"title": "Persuasion"}, nil)
	require.NoError(t, err)
	assert.Equal(t, transport.Update, requested[1].(*transport.Request).Method)
	assert.Equal(t, "/books/b1", requested[1].(*transport.Request).URL)

	fresh := New(&Kind{URLRoot: "/books", Sync: rest}, Attributes{"id": "b1"}, nil)
	_, err = fresh.Fetch(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "Persuasion", fresh.Get("title"))
}

func TestSave_Patch(t *testing.T) {
	rec := &recorder{}
	e := New(&Kind{URLRoot: "/things", Sync: rec}, Attributes{"id": 1, "a": 1, "b": 2}, nil)

	_, err := e.Save(context.Background(), Attributes{"b": 3, "d": 4}, &Options{Patch: true})
	require.NoError(t, err)
	assert.Equal(t, transport.Patch, rec.last().Method)
	assert.Equal(t, map[string]any{"b": 3.0, "d": 4.0}, body(t, rec.last()))

	_, err = e.Save(context.Background(), nil, &Options{Attrs: Attributes{"only": true}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"only": true}, body(t, rec.last()))
}

func TestSave_Wait(t *testing.T) {
	rec := &recorder{}
	e := New(&Kind{URLRoot: "/things", Sync: rec}, Attributes{"id": 1, "x": 1, "y": 2}, nil)

	var during any
	e.On("request", events.Func(func(...any) { during = e.Get("x") }), nil)

	_, err := e.Save(context.Background(), Attributes{"x": 3}, &Options{Wait: true})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": 1.0, "x": 3.0, "y": 2.0}, body(t, rec.last()))
	assert.Equal(t, 1, during, "attributes are not set until the server confirms")
	assert.Equal(t, 3.0, e.Get("x"))
}

func TestSave_WaitFailureLeavesAttributes(t *testing.T) {
	rec := &recorder{status: http.StatusBadRequest}
	e := New(&Kind{URLRoot: "/things", Sync: rec}, Attributes{"id": 1}, nil)

	_, err := e.Save(context.Background(), Attributes{"x": 1}, &Options{Wait: true})
	require.Error(t, err)
	assert.False(t, e.Has("x"))
	assert.Equal(t, Attributes{"id": 1}, e.Attributes())
}

func TestSave_WaitWithURLHook(t *testing.T) {
	rec := &recorder{}
	kind := &Kind{Sync: rec, URL: func(e *Entity) (string, error) {
		return "/users/" + transport.IDString(e.Get("userId")), nil
	}}
	e := New(kind, nil, nil)

	_, err := e.Save(context.Background(), Attributes{"userId": 7}, &Options{Wait: true})
	require.NoError(t, err)
	assert.Equal(t, "/users/7", rec.last().URL)
}

func TestSave_Validation(t *testing.T) {
	rec := &recorder{}
	kind := &Kind{URLRoot: "/things", Sync: rec, Validate: func(attrs Attributes, _ *Options) error {
		if attrs["admin"] == true {
			return errors.New("no admins")
		}
		return nil
	}}
	e := New(kind, nil, nil)

	_, err := e.Save(context.Background(), Attributes{"admin": true}, nil)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Empty(t, rec.requests)
	assert.False(t, e.Has("admin"))

	_, err = e.Save(context.Background(), Attributes{"admin": true}, &Options{Wait: true})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = e.Save(context.Background(), Attributes{"admin": true}, &Options{SkipValidate: true})
	require.NoError(t, err)
	assert.Len(t, rec.requests, 1)
}

func TestSave_EmptyResponseKeepsAttributes(t *testing.T) {
	noContent := transport.SyncerFunc(func(context.Context, *transport.Request) (*transport.Response, error) {
		return transport.NewResponse(http.StatusNoContent, nil), nil
	})
	e := New(&Kind{URLRoot: "/things", Sync: noContent}, Attributes{"id": 1}, nil)

	_, err := e.Save(context.Background(), Attributes{"x": 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, Attributes{"id": 1, "x": 1}, e.Attributes())
}

func TestDestroy(t *testing.T) {
	t.Run("new entities are not sent", func(t *testing.T) {
		rec := &recorder{}
		e := New(&Kind{URLRoot: "/things", Sync: rec}, nil, nil)
		destroyed, succeeded := false, false
		e.On("destroy", events.Func(func(...any) { destroyed = true }), nil)

		resp, err := e.Destroy(context.Background(), &Options{
			Success: func(any, *transport.Response, *Options) { succeeded = true },
		})
		require.NoError(t, err)
		assert.Nil(t, resp)
		assert.True(t, destroyed)
		assert.True(t, succeeded)
		assert.Empty(t, rec.requests)
	})

	t.Run("optimistic", func(t *testing.T) {
		rec := &recorder{}
		e := New(&Kind{URLRoot: "/things", Sync: rec}, Attributes{"id": 1}, nil)
		var order []string
		e.On("request", events.Func(func(...any) { order = append(order, "request") }), nil)
		e.On("destroy", events.Func(func(...any) { order = append(order, "destroy") }), nil)
		e.On("sync", events.Func(func(...any) { order = append(order, "sync") }), nil)

		_, err := e.Destroy(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"request", "destroy", "sync"}, order)
		assert.Equal(t, transport.Delete, rec.last().Method)
		assert.Equal(t, "/things/1", rec.last().URL)
	})

	t.Run("wait", func(t *testing.T) {
		rec := &recorder{status: http.StatusInternalServerError}
		e := New(&Kind{URLRoot: "/things", Sync: rec}, Attributes{"id": 1}, nil)
		destroyed := false
		e.On("destroy", events.Func(func(...any) { destroyed = true }), nil)

		_, err := e.Destroy(context.Background(), &Options{Wait: true})
		require.Error(t, err)
		assert.False(t, destroyed)

		rec.status = http.StatusOK
		_, err = e.Destroy(context.Background(), &Options{Wait: true})
		require.NoError(t, err)
		assert.True(t, destroyed)
	})

	t.Run("stops listening", func(t *testing.T) {
		rec := &recorder{}
		other := New(nil, nil, nil)
		e := New(&Kind{URLRoot: "/things", Sync: rec}, Attributes{"id": 1}, nil)
		e.ListenTo(other, "change", events.Func(func(...any) {}))
		require.Equal(t, 1, e.ListeningCount())

		_, err := e.Destroy(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, 0, e.ListeningCount())
	})
}

func TestSyncer_FromCollection(t *testing.T) {
	rec := &recorder{}
	coll := &owner{url: "/things", syncer: rec}
	e := New(nil, Attributes{"id": 2}, &Options{Collection: coll})

	_, err := e.Fetch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "/things/2", rec.last().URL)

	_, err = e.Fetch(context.Background(), &Options{URL: "/elsewhere"})
	require.NoError(t, err)
	assert.Equal(t, "/elsewhere", rec.last().URL)
}
