package archive

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btraven00/linkmedic/internal/model"
)

// fakeWayback serves the availability and capture endpoints. snapshots maps
// an original url to its closest snapshot timestamp.
type fakeWayback struct {
	snapshots map[string]string
	saves     []string
}

func (f *fakeWayback) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/wayback/available":
		target := r.URL.Query().Get("url")
		w.Header().Set("Content-Type", "application/json")
		ts, ok := f.snapshots[target]
		if !ok {
			_, _ = w.Write([]byte(`{"url":"` + target + `","archived_snapshots":{}}`))
			return
		}
		_, _ = w.Write([]byte(`{"url":"` + target + `","archived_snapshots":{"closest":{"available":true,"status":"200","timestamp":"` + ts +
			`","url":"http://web.archive.org/web/` + ts + `/` + target + `"}}}`))
	case strings.HasPrefix(r.URL.Path, "/save/"):
		target := strings.TrimPrefix(r.URL.Path, "/save/")
		f.saves = append(f.saves, target)
		w.Header().Set("Content-Location", "/web/20261015120000/"+target)
		w.WriteHeader(http.StatusOK)
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, fake *fakeWayback) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c := New(Options{
		BaseURL: srv.URL,
		SaveURL: srv.URL + "/save/",
		MaxAge:  365 * 24 * time.Hour,
	})
	c.now = func() time.Time { return time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC) }

	return c
}

func TestAvailable(t *testing.T) {
	fake := &fakeWayback{snapshots: map[string]string{"https://example.com/a": "20260101000000"}}
	c := newTestClient(t, fake)

	s, err := c.Available(context.Background(), "https://example.com/a")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "https://web.archive.org/web/20260101000000/https://example.com/a", s.URL)
	assert.Equal(t, 200, s.StatusCode)
	assert.Equal(t, 2026, s.Timestamp.Year())

	s, err = c.Available(context.Background(), "https://example.com/never")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestEnsure(t *testing.T) {
	fake := &fakeWayback{snapshots: map[string]string{
		"https://example.com/recent": "20260901000000",
		"https://example.com/old":    "20150101000000",
	}}
	c := newTestClient(t, fake)
	ctx := context.Background()

	s, fresh, err := c.Ensure(ctx, "https://example.com/recent")
	require.NoError(t, err)
	assert.False(t, fresh)
	assert.Contains(t, s.URL, "20260901000000")

	s, fresh, err = c.Ensure(ctx, "https://example.com/old")
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.Contains(t, s.URL, "/web/20261015120000/https://example.com/old")

	assert.Equal(t, []string{"https://example.com/old"}, fake.saves)
}

func TestCandidate(t *testing.T) {
	fake := &fakeWayback{snapshots: map[string]string{
		"https://example.com/recent": "20260901000000",
		"https://example.com/old":    "20150101000000",
	}}
	c := newTestClient(t, fake)
	ctx := context.Background()

	testCases := []struct {
		url        string
		confidence float64
		saved      bool
	}{
		{"https://example.com/recent", confidenceSnapshot, false},
		{"https://example.com/old", confidenceStaleSnapshot, false},
		{"https://example.com/missing", confidenceStaleSnapshot, true},
	}

	for _, tc := range testCases {
		t.Run(tc.url, func(t *testing.T) {
			fake.saves = nil
			cand, ok, err := c.Candidate(ctx, tc.url)
			require.NoError(t, err)
			require.True(t, ok)

			assert.Equal(t, tc.url, cand.OriginalURL)
			assert.Equal(t, model.StrategyArchiveSnapshot, cand.Strategy)
			assert.Equal(t, tc.confidence, cand.Confidence)
			assert.Empty(t, cand.FixedURL)
			assert.True(t, strings.HasSuffix(cand.AlternativeURL, tc.url))
			assert.NoError(t, cand.Check())
			assert.Equal(t, tc.saved, len(fake.saves) == 1)
		})
	}
}

func TestReachable(t *testing.T) {
	c := newTestClient(t, &fakeWayback{})
	assert.NoError(t, c.Reachable(context.Background()))

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()
	err := New(Options{BaseURL: down.URL}).Reachable(context.Background())
	assert.True(t, errors.Is(err, ErrUnreachable))

	closed := httptest.NewServer(http.NotFoundHandler())
	closed.Close()
	err = New(Options{BaseURL: closed.URL, Timeout: time.Second}).Reachable(context.Background())
	assert.True(t, errors.Is(err, ErrUnreachable))
}

func TestSaveFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := New(Options{SaveURL: srv.URL}).Save(context.Background(), "https://example.com")
	assert.Error(t, err)
}
