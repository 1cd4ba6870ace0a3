package datasource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const historyJSON = `{
  "ISIN": "INF194KB1DP9",
  "name": "Bandhan Nifty200 Momentum 30 Index Fund - Direct Plan - Growth",
  "nav": "12.3456",
  "date": "2026-10-14",
  "historical_nav": [
    ["2026-10-10", 12.1],
    ["2026-10-13", "12.2"],
    ["broken"],
    ["2026-10-14", 12.3456]
  ]
}`

func newHistoryServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/nav/INF194KB1DP9":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(historyJSON))
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"ISIN not found"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHistoryFetch(t *testing.T) {
	var hits atomic.Int32
	srv := newHistoryServer(t, &hits)
	c := NewHistoryClient(WithHistoryBaseURL(srv.URL+"/nav/"), WithHistoryHTTPClient(srv.Client()))

	h, err := c.Fetch(context.Background(), "inf194kb1dp9")
	require.NoError(t, err)

	assert.Equal(t, "INF194KB1DP9", h.ISIN)
	assert.Equal(t, 12.3456, h.LatestNAV)
	assert.Equal(t, "2026-10-14", h.LatestDate)
	require.Len(t, h.Historical, 3, "malformed pair is dropped")
	assert.Equal(t, "2026-10-13", h.Historical[1].Date)
	assert.Equal(t, 12.2, h.Historical[1].NAV)
}

func TestHistoryFetchRejectsInvalidISIN(t *testing.T) {
	var hits atomic.Int32
	srv := newHistoryServer(t, &hits)
	c := NewHistoryClient(WithHistoryBaseURL(srv.URL+"/nav"), WithHistoryHTTPClient(srv.Client()))

	for _, bad := range []string{"", "US0378331005", "IN123", "INF194KB1DP9!", "../INF194KB1DP9"} {
		_, err := c.Fetch(context.Background(), bad)
		assert.True(t, errors.Is(err, ErrInvalidISIN), "expected validation error for %q, got %v", bad, err)
	}
	assert.EqualValues(t, 0, hits.Load(), "no request for malformed input")
}

func TestHistoryFetchPropagatesUpstreamError(t *testing.T) {
	var hits atomic.Int32
	srv := newHistoryServer(t, &hits)
	c := NewHistoryClient(WithHistoryBaseURL(srv.URL+"/nav"), WithHistoryHTTPClient(srv.Client()))

	_, err := c.Fetch(context.Background(), "INF000000001")
	var httpErr *ErrHTTP
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, `{"error":"ISIN not found"}`, httpErr.Body)
	assert.Equal(t, "application/json", httpErr.ContentType)
	assert.EqualValues(t, 1, hits.Load(), "no retry on the per-fund path")
}

func TestHistoryFetchCache(t *testing.T) {
	var hits atomic.Int32
	srv := newHistoryServer(t, &hits)

	now := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
	c := NewHistoryClient(
		WithHistoryBaseURL(srv.URL+"/nav"),
		WithHistoryHTTPClient(srv.Client()),
		WithHistoryCache(time.Minute, func() time.Time { return now }),
	)

	ctx := context.Background()
	_, err := c.Fetch(ctx, "INF194KB1DP9")
	require.NoError(t, err)
	_, err = c.Fetch(ctx, "inf194kb1dp9")
	require.NoError(t, err)
	assert.EqualValues(t, 1, hits.Load())

	now = now.Add(2 * time.Minute)
	_, err = c.Fetch(ctx, "INF194KB1DP9")
	require.NoError(t, err)
	assert.EqualValues(t, 2, hits.Load())
}

func TestHistoryFetchBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>maintenance</html>"))
	}))
	defer srv.Close()

	c := NewHistoryClient(WithHistoryBaseURL(srv.URL), WithHistoryHTTPClient(srv.Client()))
	_, err := c.Fetch(context.Background(), "INF194KB1DP9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode NAV history")
}

func TestFlexFloat(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{`12.5`, 12.5},
		{`"12.5"`, 12.5},
		{`" 7 "`, 7},
		{`"N.A."`, 0},
		{`null`, 0},
	}
	for _, tt := range tests {
		var f flexFloat
		require.NoError(t, f.UnmarshalJSON([]byte(tt.in)), tt.in)
		assert.Equal(t, tt.want, float64(f), tt.in)
	}

	var f flexFloat
	assert.Error(t, f.UnmarshalJSON([]byte(`{}`)))
}
