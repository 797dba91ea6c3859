package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func do(t *testing.T, s Syncer, method Method, url string, body any) (*Response, error) {
	t.Helper()
	req := &Request{Method: method, URL: url}
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		req.Body = data
	}
	return s.Do(context.Background(), req)
}

func TestREST_Lifecycle(t *testing.T) {
	r := NewMemoryREST(WithIDGenerator(NewFixedGenerator("b-1")))

	resp, err := do(t, r, Create, "/books", map[string]any{"title": "Dune"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.Equal(t, map[string]any{"id": "b-1", "title": "Dune"}, resp.JSON)

	resp, err = do(t, r, Read, "/books/b-1", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "b-1", "title": "Dune"}, resp.JSON)

	resp, err = do(t, r, Patch, "/books/b-1", map[string]any{"year": 1965})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "b-1", "title": "Dune", "year": float64(1965)}, resp.JSON)

	resp, err = do(t, r, Update, "/books/b-1", map[string]any{"title": "Dune Messiah"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "b-1", "title": "Dune Messiah"}, resp.JSON)

	resp, err = do(t, r, Read, "/books", nil)
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"id": "b-1", "title": "Dune Messiah"}}, resp.JSON)

	resp, err = do(t, r, Delete, "/books/b-1", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, resp.JSON)

	_, err = do(t, r, Delete, "/books/b-1", nil)
	assert.True(t, IsStatus(err, http.StatusNotFound))
}

func TestREST_ClientAssignedIDs(t *testing.T) {
	r := NewMemoryREST()
	require.NoError(t, r.Seed(context.Background(), "/books", map[string]any{"id": float64(1), "title": "A"}))

	resp, err := do(t, r, Read, "/books/1", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": float64(1), "title": "A"}, resp.JSON)

	_, err = do(t, r, Read, "/books/2", nil)
	assert.True(t, IsStatus(err, http.StatusNotFound))

	_, err = do(t, r, Patch, "/books/2", map[string]any{"x": 1})
	assert.True(t, IsStatus(err, http.StatusNotFound))
}

func TestREST_EmptyCollectionReadsAsEmptyList(t *testing.T) {
	resp, err := do(t, NewMemoryREST(), Read, "/books", nil)
	require.NoError(t, err)
	assert.Equal(t, []any{}, resp.JSON)
}

func TestREST_BadBody(t *testing.T) {
	r := NewMemoryREST()
	_, err := r.Do(context.Background(), &Request{Method: Create, URL: "/books", Body: []byte("{")})
	assert.True(t, IsStatus(err, http.StatusBadRequest))
}

func TestIDString(t *testing.T) {
	assert.Equal(t, "", IDString(nil))
	assert.Equal(t, "1", IDString(float64(1)))
	assert.Equal(t, "2.5", IDString(2.5))
	assert.Equal(t, "7", IDString(7))
	assert.Equal(t, "abc", IDString("abc"))
}

func TestSplitResource(t *testing.T) {
	tests := []struct {
		in, collection, id string
	}{
		{"/books/42", "/books", "42"},
		{"/books", "/", "books"},
		{"/", "/", ""},
		{"/a/b/c", "/a/b", "c"},
	}
	for _, tt := range tests {
		c, id := splitResource(tt.in)
		assert.Equal(t, tt.collection, c, tt.in)
		assert.Equal(t, tt.id, id, tt.in)
	}
	assert.Equal(t, "/books/1", normalizePath("http://example.com/books/1/?x=1"))
}
