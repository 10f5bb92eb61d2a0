package validation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/btraven00/linkmedic/internal/model"
)

func testOptions() Options {
	opts := DefaultOptions()
	opts.Timeout = 2 * time.Second
	opts.MaxRetries = 2
	opts.BackoffBase = time.Millisecond
	opts.RateLimitDelay = 0
	return opts
}

func newTestEngine(t *testing.T, opts Options, r Renderer) *Engine {
	t.Helper()
	e := NewEngine(opts, r, zap.NewNop())
	t.Cleanup(func() { e.Close() })
	return e
}

const articleHTML = `<!doctype html><html><head><title>Quantum Cryptography Primer</title>
<meta name="description" content="An introduction to quantum key distribution."></head>
<body><article><h1>Quantum Cryptography Primer</h1>
<p>Quantum key distribution lets two parties share a secret key with security guaranteed by physics.
This primer walks through the BB84 protocol, its assumptions, and practical attacks on implementations.</p>
<p>We also survey post-quantum alternatives and the research literature on device-independent schemes.</p>
</article></body></html>`

func TestEngine_Validate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("User-Agent"), "Mozilla") {
			t.Error("Missing or invalid User-Agent header")
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(articleHTML))
	}))
	defer server.Close()

	e := newTestEngine(t, testOptions(), nil)
	result := e.Validate(context.Background(), server.URL)

	if result.Status != model.StatusValid {
		t.Fatalf("Expected valid, got %s (%s)", result.Status, result.Error)
	}
	if result.IssueType != model.IssueNone {
		t.Errorf("Expected no issue, got %s", result.IssueType)
	}
	if result.StatusCode != 200 {
		t.Errorf("Expected status 200, got %d", result.StatusCode)
	}
	if result.PageTitle != "Quantum Cryptography Primer" {
		t.Errorf("Unexpected title %q", result.PageTitle)
	}
	if result.Description != "An introduction to quantum key distribution." {
		t.Errorf("Unexpected description %q", result.Description)
	}
	if !strings.Contains(result.ContentSnippet, "BB84") {
		t.Errorf("Expected snippet to contain article text, got %q", result.ContentSnippet)
	}
	if result.RetryCount != 0 {
		t.Errorf("Expected no retries, got %d", result.RetryCount)
	}
}

func TestEngine_Validate_404RetriesToMax(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	opts := testOptions()
	opts.MaxRetries = 3
	e := newTestEngine(t, opts, nil)

	result := e.Validate(context.Background(), server.URL+"/gone")

	if result.Status != model.StatusBroken {
		t.Fatalf("Expected broken, got %s", result.Status)
	}
	if result.IssueType != model.IssueHTTP4xx {
		t.Errorf("Expected http-4xx, got %s", result.IssueType)
	}
	if result.RetryCount != 3 {
		t.Errorf("Expected retry_count 3, got %d", result.RetryCount)
	}
	if hits.Load() != 4 {
		t.Errorf("Expected 4 requests, got %d", hits.Load())
	}
}

func TestEngine_Validate_HTTPErrorsNotRetriedWhenDisabled(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	opts := testOptions()
	opts.RetryHTTPErrors = false
	e := newTestEngine(t, opts, nil)

	result := e.Validate(context.Background(), server.URL)
	if result.IssueType != model.IssueHTTP5xx || result.RetryCount != 0 || hits.Load() != 1 {
		t.Errorf("Expected single http-5xx attempt, got %s retries=%d hits=%d", result.IssueType, result.RetryCount, hits.Load())
	}
}

func TestEngine_Validate_Paywall(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Deep dive</title></head><body><p>The first paragraph.</p>
<div class="gate">Subscribe to read the rest of this story.</div></body></html>`))
	}))
	defer server.Close()

	e := newTestEngine(t, testOptions(), nil)
	result := e.Validate(context.Background(), server.URL)

	if result.Status != model.StatusBroken || result.IssueType != model.IssuePaywall {
		t.Fatalf("Expected broken/paywall, got %s/%s", result.Status, result.IssueType)
	}
	if result.RetryCount != 0 || hits.Load() != 1 {
		t.Errorf("Paywall must not be retried, retries=%d hits=%d", result.RetryCount, hits.Load())
	}
}

func TestEngine_Validate_Redirect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/old":
			http.Redirect(w, r, "/new", http.StatusMovedPermanently)
		default:
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(articleHTML))
		}
	}))
	defer server.Close()

	e := newTestEngine(t, testOptions(), nil)
	result := e.Validate(context.Background(), server.URL+"/old")

	if result.Status != model.StatusRedirect {
		t.Fatalf("Expected redirect, got %s", result.Status)
	}
	if result.FinalURL != server.URL+"/new" {
		t.Errorf("Expected final url %s/new, got %s", server.URL, result.FinalURL)
	}
	if result.IssueType != model.IssueNone {
		t.Errorf("Redirect carries no issue, got %s", result.IssueType)
	}
}

func TestEngine_Validate_EscapingIsNotARedirect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(articleHTML))
	}))
	defer server.Close()

	e := newTestEngine(t, testOptions(), nil)

	testCases := []struct {
		name string
		raw  string
	}{
		{"non-ascii path", server.URL + "/wiki/Käse"},
		{"space in path", server.URL + "/a b"},
		{"already escaped", server.URL + "/wiki/K%C3%A4se"},
		{"upper-case scheme", "HTTP" + strings.TrimPrefix(server.URL, "http") + "/docs"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := e.Validate(context.Background(), tc.raw)
			if result.Status != model.StatusValid {
				t.Errorf("Validate(%q) = %s (final %q), expected valid", tc.raw, result.Status, result.FinalURL)
			}
		})
	}
}

func TestEngine_Validate_RenderedRootIsNotARedirect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(articleHTML))
	}))
	defer server.Close()

	opts := testOptions()
	opts.BrowserAlways = true
	renderer := &fakeRenderer{html: articleHTML, location: server.URL + "/"}
	e := newTestEngine(t, opts, renderer)

	result := e.Validate(context.Background(), server.URL)
	if !result.RequiredBrowserRendering {
		t.Fatal("Expected browser rendering")
	}
	if result.Status != model.StatusValid {
		t.Errorf("Expected valid for %s rendered at %s, got %s", server.URL, result.FinalURL, result.Status)
	}
}

func TestEngine_Validate_Timeout(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	opts := testOptions()
	opts.Timeout = 50 * time.Millisecond
	opts.MaxRetries = 1
	e := newTestEngine(t, opts, nil)

	result := e.Validate(context.Background(), server.URL)
	if result.Status != model.StatusTimeout || result.IssueType != model.IssueTimeout {
		t.Fatalf("Expected timeout, got %s/%s (%s)", result.Status, result.IssueType, result.Error)
	}
	if result.RetryCount != 1 {
		t.Errorf("Expected 1 retry, got %d", result.RetryCount)
	}
}

func TestEngine_Validate_SSLError(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	e := newTestEngine(t, testOptions(), nil)
	result := e.Validate(context.Background(), server.URL)

	if result.Status != model.StatusBroken || result.IssueType != model.IssueSSL {
		t.Fatalf("Expected broken/ssl-error, got %s/%s (%s)", result.Status, result.IssueType, result.Error)
	}
	if result.RetryCount != 0 {
		t.Errorf("SSL failures must not be retried, got %d", result.RetryCount)
	}
}

func TestEngine_Validate_InvalidURL(t *testing.T) {
	e := newTestEngine(t, testOptions(), nil)
	result := e.Validate(context.Background(), "www.example.com/page")

	if result.Status != model.StatusError || result.IssueType != model.IssueUnknown {
		t.Errorf("Expected error/unknown-error, got %s/%s", result.Status, result.IssueType)
	}
	if result.RetryCount != 0 {
		t.Errorf("Expected no retries, got %d", result.RetryCount)
	}
}

func TestEngine_Validate_Memoized(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("plain"))
	}))
	defer server.Close()

	e := newTestEngine(t, testOptions(), nil)
	first := e.Validate(context.Background(), server.URL)
	second := e.Validate(context.Background(), server.URL)

	if first != second {
		t.Error("Expected the cached result to be returned")
	}
	if hits.Load() != 1 {
		t.Errorf("Expected 1 request, got %d", hits.Load())
	}

	e.ResetCache()
	e.Validate(context.Background(), server.URL)
	if hits.Load() != 2 {
		t.Errorf("Expected a fresh request after ResetCache, got %d", hits.Load())
	}
}

type fakeRenderer struct {
	html     string
	location string
	calls    atomic.Int32
	closed   atomic.Bool
}

func (f *fakeRenderer) Render(ctx context.Context, url string) (*Rendered, error) {
	f.calls.Add(1)
	final := url
	if f.location != "" {
		final = f.location
	}
	return &Rendered{Status: 200, FinalURL: final, HTML: f.html, Elapsed: time.Millisecond}, nil
}

func (f *fakeRenderer) Close() error {
	f.closed.Store(true)
	return nil
}

func TestEngine_Validate_EscalatesClientRenderedPages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title></title></head><body><div id="root"></div><script src="/app.js"></script></body></html>`))
	}))
	defer server.Close()

	renderer := &fakeRenderer{html: articleHTML}
	e := NewEngine(testOptions(), renderer, zap.NewNop())

	result := e.Validate(context.Background(), server.URL)
	if !result.RequiredBrowserRendering {
		t.Fatal("Expected browser rendering")
	}
	if result.PageTitle != "Quantum Cryptography Primer" {
		t.Errorf("Expected rendered title, got %q", result.PageTitle)
	}
	if result.Status != model.StatusValid {
		t.Errorf("Expected valid, got %s", result.Status)
	}

	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if !renderer.closed.Load() {
		t.Error("Close must release the browser")
	}
}

func TestEngine_Validate_PlainPagesSkipBrowser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(articleHTML))
	}))
	defer server.Close()

	renderer := &fakeRenderer{html: articleHTML}
	e := newTestEngine(t, testOptions(), renderer)
	e.Validate(context.Background(), server.URL)

	if renderer.calls.Load() != 0 {
		t.Error("Conclusive pages must not be rendered")
	}
}

func TestEngine_ValidateAll_SequentialPerHost(t *testing.T) {
	var (
		mu    sync.Mutex
		order []string
		times []time.Time
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		order = append(order, r.URL.Path)
		times = append(times, time.Now())
		mu.Unlock()
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	opts := testOptions()
	opts.RateLimitDelay = 40 * time.Millisecond
	e := newTestEngine(t, opts, nil)

	urls := []string{server.URL + "/a", server.URL + "/b", server.URL + "/a", server.URL + "/c"}
	results, err := e.ValidateAll(context.Background(), urls)
	if err != nil {
		t.Fatal(err)
	}

	if len(results) != 3 {
		t.Errorf("Expected 3 unique results, got %d", len(results))
	}
	if got := strings.Join(order, ","); got != "/a,/b,/c" {
		t.Errorf("Expected FIFO order /a,/b,/c, got %s", got)
	}
	for i := 1; i < len(times); i++ {
		if gap := times[i].Sub(times[i-1]); gap < 30*time.Millisecond {
			t.Errorf("Requests %d and %d only %v apart", i-1, i, gap)
		}
	}
}

func TestEngine_ValidateAll_DelayFollowsSlowRequests(t *testing.T) {
	var (
		mu     sync.Mutex
		starts []time.Time
		ends   []time.Time
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		starts = append(starts, time.Now())
		mu.Unlock()

		time.Sleep(80 * time.Millisecond)
		w.Write([]byte("ok"))

		mu.Lock()
		ends = append(ends, time.Now())
		mu.Unlock()
	}))
	defer server.Close()

	opts := testOptions()
	opts.RateLimitDelay = 50 * time.Millisecond
	e := newTestEngine(t, opts, nil)

	urls := []string{server.URL + "/a", server.URL + "/b", server.URL + "/c"}
	if _, err := e.ValidateAll(context.Background(), urls); err != nil {
		t.Fatal(err)
	}

	if len(starts) != 3 || len(ends) != 3 {
		t.Fatalf("Expected 3 requests, got %d starts and %d ends", len(starts), len(ends))
	}
	for i := 1; i < len(starts); i++ {
		if gap := starts[i].Sub(ends[i-1]); gap < 40*time.Millisecond {
			t.Errorf("Request %d started %v after request %d finished", i, gap, i-1)
		}
	}
}

func TestEngine_ValidateAll_ProgressAndCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	e := newTestEngine(t, testOptions(), nil)
	if _, err := e.ValidateAll(context.Background(), []string{server.URL + "/x"}); err != nil {
		t.Fatal(err)
	}

	select {
	case u := <-e.Progress():
		if u.Done != 1 || u.Total != 1 {
			t.Errorf("Unexpected progress %+v", u)
		}
	default:
		t.Error("Expected a progress update")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.ValidateAll(ctx, []string{server.URL + "/y"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestGroupByHost(t *testing.T) {
	groups := groupByHost([]string{
		"https://a.example.com/1",
		"https://B.example.com/1",
		"https://a.example.com/2",
		"https://a.example.com/1",
		"not a url",
	})

	if len(groups) != 3 {
		t.Fatalf("Expected 3 groups, got %d", len(groups))
	}
	if groups[0].host != "a.example.com" || len(groups[0].urls) != 2 {
		t.Errorf("Unexpected first group %+v", groups[0])
	}
	if groups[1].host != "b.example.com" {
		t.Errorf("Expected host lowercased, got %s", groups[1].host)
	}
}

func TestBackoff(t *testing.T) {
	e := NewEngine(Options{BackoffBase: 100 * time.Millisecond}, nil, zap.NewNop())
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
	for i, w := range want {
		if got := e.backoff(i + 1); got != w {
			t.Errorf("backoff(%d) = %v, want %v", i+1, got, w)
		}
	}
	if got := e.backoff(20); got != maxBackoff {
		t.Errorf("backoff must cap at %v, got %v", maxBackoff, got)
	}
}
