package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMethodMapping(t *testing.T) {
	tests := []struct {
		method  Method
		http    string
		hasBody bool
	}{
		{Create, http.MethodPost, true},
		{Read, http.MethodGet, false},
		{Update, http.MethodPut, true},
		{Patch, http.MethodPatch, true},
		{Delete, http.MethodDelete, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.method), func(t *testing.T) {
			assert.Equal(t, tt.http, tt.method.HTTPMethod())
			assert.Equal(t, tt.hasBody, tt.method.HasBody())
			assert.True(t, tt.method.Valid())
		})
	}
	assert.False(t, Method("upsert").Valid())
}

func TestDecodeBody(t *testing.T) {
	assert.Equal(t, map[string]any{}, DecodeBody(nil))
	assert.Equal(t, map[string]any{}, DecodeBody([]byte("<html>")))
	assert.Equal(t, []any{float64(1), "a"}, DecodeBody([]byte(`[1,"a"]`)))
}

func TestHTTP_SendsJSON(t *testing.T) {
	var gotMethod, gotPath, gotType, gotAccept, gotAuth string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.RequestURI()
		gotType = r.Header.Get("Content-Type")
		gotAccept = r.Header.Get("Accept")
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":7,"title":"Dune"}`))
	}))
	defer srv.Close()

	tr := NewHTTP(
		WithBaseURL(srv.URL),
		WithPrefilter(func(r *http.Request) error {
			r.Header.Set("Authorization", "Bearer token")
			return nil
		}),
	)
	resp, err := tr.Do(context.Background(), &Request{
		Method: Create,
		URL:    "/books",
		Body:   []byte(`{"title":"Dune"}`),
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/books", gotPath)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, "application/json", gotAccept)
	assert.Equal(t, "Bearer token", gotAuth)
	assert.JSONEq(t, `{"title":"Dune"}`, string(gotBody))
	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.Equal(t, map[string]any{"id": float64(7), "title": "Dune"}, resp.JSON)
}

func TestHTTP_ReadQuery(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	tr := NewHTTP(WithBaseURL(srv.URL))
	_, err := tr.Do(context.Background(), &Request{
		Method: Read,
		URL:    "/books?sort=title",
		Query:  url.Values{"page": {"2"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "title", gotQuery.Get("sort"))
	assert.Equal(t, "2", gotQuery.Get("page"))
}

func TestHTTP_NoContentDecodesToEmptyObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	resp, err := NewHTTP().Do(context.Background(), &Request{Method: Delete, URL: srv.URL + "/books/1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, resp.JSON)
}

func TestHTTP_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"title required"}`))
	}))
	defer srv.Close()

	resp, err := NewHTTP(WithBaseURL(srv.URL)).Do(context.Background(), &Request{Method: Update, URL: "books/1", Body: []byte(`{}`)})
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusUnprocessableEntity))

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Same(t, resp, se.Response)
	assert.Equal(t, map[string]any{"error": "title required"}, resp.JSON)
	assert.Contains(t, err.Error(), "PUT books/1: 422")
}

func TestHTTP_PrefilterAborts(t *testing.T) {
	tr := NewHTTP(WithPrefilter(func(*http.Request) error { return errors.New("offline") }))
	_, err := tr.Do(context.Background(), &Request{Method: Read, URL: "http://127.0.0.1:1/x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offline")
}

func TestHTTP_ResponsePath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"meta":{"total":2},"data":[{"id":1},{"id":2}]}`))
	}))
	defer srv.Close()

	resp, err := NewHTTP(WithBaseURL(srv.URL), WithResponsePath("data")).Do(context.Background(), &Request{Method: Read, URL: "/books"})
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"id": float64(1)}, map[string]any{"id": float64(2)}}, resp.JSON)

	resp, err = NewHTTP(WithBaseURL(srv.URL), WithResponsePath("missing")).Do(context.Background(), &Request{Method: Read, URL: "/books"})
	require.NoError(t, err)
	assert.Contains(t, resp.JSON, "meta")
}
