package transport

import (
	"context"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Wrap(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	s := m.Wrap(NewMemoryREST())

	_, err := s.Do(context.Background(), &Request{Method: Read, URL: "/books"})
	require.NoError(t, err)
	_, err = s.Do(context.Background(), &Request{Method: Create, URL: "/books", Body: []byte(`{"id":1}`)})
	require.NoError(t, err)
	_, err = s.Do(context.Background(), &Request{Method: Read, URL: "/books/9"})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests().WithLabelValues("read", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests().WithLabelValues("create", "201")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests().WithLabelValues("read", "404")))

	failing := m.Wrap(SyncerFunc(func(context.Context, *Request) (*Response, error) {
		return nil, http.ErrServerClosed
	}))
	_, err = failing.Do(context.Background(), &Request{Method: Delete, URL: "/x"})
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests().WithLabelValues("delete", "error")))

	n, err := testutil.GatherAndCount(reg, "bindery_sync_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	counts, err := RequestCounts(reg)
	require.NoError(t, err)
	assert.Contains(t, counts, RequestCount{Method: "create", Code: "201", Count: 1})
	assert.Contains(t, counts, RequestCount{Method: "delete", Code: "error", Count: 1})
	assert.Len(t, counts, 4)
}
