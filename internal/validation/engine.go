// Package validation resolves urls over the network and reports, for each,
// one terminal ValidationResult.
package validation

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/btraven00/linkmedic/internal/metrics"
	"github.com/btraven00/linkmedic/internal/model"
	"github.com/btraven00/linkmedic/pkg/validators/domains"
)

// Options tunes the engine.
type Options struct {
	// Timeout bounds a single attempt.
	Timeout         time.Duration
	MaxRetries      int
	BackoffBase     time.Duration
	RetryHTTPErrors bool
	// RateLimitDelay separates consecutive requests to the same host.
	RateLimitDelay time.Duration
	// Concurrency caps how many hosts are worked on at once.
	Concurrency int
	// BrowserAlways renders every page instead of only inconclusive ones.
	BrowserAlways bool
	MaxBody       int64
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:         15 * time.Second,
		MaxRetries:      3,
		BackoffBase:     500 * time.Millisecond,
		RetryHTTPErrors: true,
		RateLimitDelay:  time.Second,
		Concurrency:     8,
		MaxBody:         512 << 10,
	}
}

const maxBackoff = 30 * time.Second

// Engine validates urls. One engine owns one HTTP session, an optional
// browser and the in-run memo of results; Close releases them.
type Engine struct {
	options   Options
	client    *http.Client
	renderer  Renderer
	userAgent string
	logger    *zap.Logger

	mu   sync.Mutex
	memo map[string]*model.ValidationResult

	progress  chan ProgressUpdate
	closeOnce sync.Once
}

// NewEngine creates an engine. renderer may be nil to disable the browser tier.
func NewEngine(options Options, renderer Renderer, logger *zap.Logger) *Engine {
	defaults := DefaultOptions()
	if options.Timeout <= 0 {
		options.Timeout = defaults.Timeout
	}
	if options.Concurrency <= 0 {
		options.Concurrency = defaults.Concurrency
	}
	if options.MaxBody <= 0 {
		options.MaxBody = defaults.MaxBody
	}
	if options.MaxRetries < 0 {
		options.MaxRetries = 0
	}

	return &Engine{
		options:   options,
		client:    newHTTPClient(),
		renderer:  renderer,
		userAgent: pickUserAgent(),
		logger:    logger.Named("validation"),
		memo:      make(map[string]*model.ValidationResult),
		progress:  make(chan ProgressUpdate, 100),
	}
}

// Progress returns the channel of progress updates. Updates are dropped
// rather than blocking validation when nobody reads.
func (e *Engine) Progress() <-chan ProgressUpdate {
	return e.progress
}

func (e *Engine) sendProgress(update ProgressUpdate) {
	select {
	case e.progress <- update:
	default:
	}
}

// Close releases the HTTP session and the browser.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.client.CloseIdleConnections()
		if e.renderer != nil {
			err = e.renderer.Close()
		}
	})

	return err
}

// ResetCache forgets every memoized result.
func (e *Engine) ResetCache() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.memo = make(map[string]*model.ValidationResult)
}

// Prime seeds the memo, e.g. from a previous stage's artifacts.
func (e *Engine) Prime(results []*model.ValidationResult) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, r := range results {
		if _, ok := e.memo[r.URL]; !ok {
			e.memo[r.URL] = r
		}
	}
}

func (e *Engine) cached(rawURL string) *model.ValidationResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.memo[rawURL]
}

// remember stores r unless another result got there first, and returns the
// stored one.
func (e *Engine) remember(r *model.ValidationResult) *model.ValidationResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	if prev, ok := e.memo[r.URL]; ok {
		return prev
	}
	e.memo[r.URL] = r

	return r
}

// Validate returns the result for rawURL, fetching it at most once per run.
// Failures are reported inside the result, never as an error.
func (e *Engine) Validate(ctx context.Context, rawURL string) *model.ValidationResult {
	if r := e.cached(rawURL); r != nil {
		return r
	}

	r := e.validate(ctx, rawURL)
	if ctx.Err() != nil {
		return r
	}

	return e.remember(r)
}

// ValidateAll validates every distinct url. Urls sharing a host are checked
// one after another, each starting RateLimitDelay after the previous one
// finished; hosts are worked on concurrently. The error is non-nil only when
// ctx ends first.
func (e *Engine) ValidateAll(ctx context.Context, urls []string) (map[string]*model.ValidationResult, error) {
	groups := groupByHost(urls)
	total := 0
	for _, g := range groups {
		total += len(g.urls)
	}

	var (
		mu      sync.Mutex
		done    int
		results = make(map[string]*model.ValidationResult, total)
	)

	g := new(errgroup.Group)
	g.SetLimit(e.options.Concurrency)

	for _, group := range groups {
		g.Go(func() error {
			var gap *rate.Limiter
			for _, u := range group.urls {
				if err := ctx.Err(); err != nil {
					return err
				}

				r, cached := e.cached(u), true
				if r == nil {
					cached = false
					if gap != nil {
						if err := gap.Wait(ctx); err != nil {
							return err
						}
					}
					r = e.Validate(ctx, u)
					if err := ctx.Err(); err != nil {
						// cut short, not a real outcome
						return err
					}
					gap = e.gapAfter(time.Now())
				}

				mu.Lock()
				results[u] = r
				done++
				update := ProgressUpdate{URL: u, Status: r.Status, Done: done, Total: total, Cached: cached}
				mu.Unlock()

				e.sendProgress(update)
			}
			return nil
		})
	}

	err := g.Wait()

	return results, err
}

// gapAfter returns a limiter that admits the next request to the same host
// RateLimitDelay after done, however long the previous request took.
func (e *Engine) gapAfter(done time.Time) *rate.Limiter {
	if e.options.RateLimitDelay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}

	l := rate.NewLimiter(rate.Every(e.options.RateLimitDelay), 1)
	l.AllowN(done, 1)

	return l
}

type hostGroup struct {
	host string
	urls []string
}

// groupByHost buckets distinct urls by host, keeping first-seen order both
// across and within groups.
func groupByHost(urls []string) []*hostGroup {
	var (
		groups []*hostGroup
		index  = make(map[string]*hostGroup)
		seen   = make(map[string]bool)
	)

	for _, u := range urls {
		if seen[u] {
			continue
		}
		seen[u] = true

		host := hostOf(u)
		g, ok := index[host]
		if !ok {
			g = &hostGroup{host: host}
			index[host] = g
			groups = append(groups, g)
		}
		g.urls = append(g.urls, u)
	}

	return groups
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}

	return strings.ToLower(u.Hostname())
}

// validate runs attempts until one is conclusive or retries run out.
func (e *Engine) validate(ctx context.Context, rawURL string) *model.ValidationResult {
	var (
		r       *model.ValidationResult
		retries int
	)

	for {
		var retry bool
		r, retry = e.attempt(ctx, rawURL)
		if !retry || retries >= e.options.MaxRetries || ctx.Err() != nil {
			break
		}

		retries++
		metrics.IncRetries()
		e.logger.Debug("retrying",
			zap.String("url", rawURL),
			zap.Int("attempt", retries),
			zap.String("status", string(r.Status)),
			zap.Int("status_code", r.StatusCode))

		if err := sleep(ctx, e.backoff(retries)); err != nil {
			break
		}
	}

	r.URL = rawURL
	r.RetryCount = retries
	r.CheckedAt = time.Now()
	r.Settle()

	tier := "http"
	if r.RequiredBrowserRendering {
		tier = "browser"
	}
	metrics.ObserveValidation(string(r.Status), tier, r.ResponseTime)

	return r
}

func (e *Engine) backoff(attempt int) time.Duration {
	d := e.options.BackoffBase
	for i := 1; i < attempt && d < maxBackoff; i++ {
		d *= 2
	}

	return min(d, maxBackoff)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// attempt makes one plain request, escalating to the browser when the answer
// is inconclusive. It reports whether trying again could change the outcome.
func (e *Engine) attempt(ctx context.Context, rawURL string) (r *model.ValidationResult, retry bool) {
	defer func() {
		if p := recover(); p != nil {
			e.logger.Error("validation panicked", zap.String("url", rawURL), zap.Any("panic", p))
			r = &model.ValidationResult{Status: model.StatusError, IssueType: model.IssueUnknown, Error: fmt.Sprint("panic: ", p)}
			retry = false
		}
	}()

	target, err := url.Parse(rawURL)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return &model.ValidationResult{
			Status:    model.StatusError,
			IssueType: model.IssueUnknown,
			Error:     "not an absolute http(s) url",
		}, false
	}

	attemptCtx, cancel := context.WithTimeout(ctx, e.options.Timeout)
	defer cancel()

	pg, err := e.fetch(attemptCtx, rawURL)
	if err != nil {
		return e.failure(ctx, err)
	}

	info := analyze(pg.contentType, pg.body, target)
	r = &model.ValidationResult{
		StatusCode:   pg.status,
		FinalURL:     pg.finalURL,
		ResponseTime: pg.elapsed,
		ContentType:  pg.contentType,
	}

	if e.renderer != nil && (e.options.BrowserAlways || inconclusive(pg.status, info)) {
		if rendered, ok := e.render(ctx, rawURL); ok {
			r.RequiredBrowserRendering = true
			r.ResponseTime += rendered.Elapsed
			if rendered.Status != 0 {
				r.StatusCode = rendered.Status
			}
			if rendered.FinalURL != "" {
				r.FinalURL = rendered.FinalURL
			}
			info = analyze("text/html", []byte(rendered.HTML), target)
		}
	}

	r.PageTitle = info.title
	r.Description = info.description
	r.ContentSnippet = info.snippet

	switch {
	case r.StatusCode >= 400:
		r.Status = model.StatusBroken
		r.IssueType = model.IssueForStatusCode(r.StatusCode)
		return r, e.options.RetryHTTPErrors
	case info.paywalled():
		r.Status = model.StatusBroken
		r.IssueType = model.IssuePaywall
		return r, false
	case r.FinalURL != "" && !domains.SameLocation(rawURL, r.FinalURL):
		r.Status = model.StatusRedirect
		return r, false
	default:
		r.Status = model.StatusValid
		return r, false
	}
}

func (e *Engine) failure(ctx context.Context, err error) (*model.ValidationResult, bool) {
	r := &model.ValidationResult{Error: err.Error()}

	if ctx.Err() != nil {
		r.Status = model.StatusError
		r.IssueType = model.IssueUnknown
		r.Error = "cancelled: " + ctx.Err().Error()
		return r, false
	}

	switch classifyFailure(err) {
	case failureTLS:
		r.Status = model.StatusBroken
		r.IssueType = model.IssueSSL
		return r, false
	case failureTimeout:
		r.Status = model.StatusTimeout
		r.IssueType = model.IssueTimeout
		return r, true
	case failureInvalid:
		r.Status = model.StatusError
		r.IssueType = model.IssueUnknown
		return r, false
	default:
		r.Status = model.StatusError
		r.IssueType = model.IssueUnknown
		return r, true
	}
}

func (e *Engine) render(ctx context.Context, rawURL string) (*Rendered, bool) {
	rendered, err := e.renderer.Render(ctx, rawURL)
	if err != nil {
		metrics.IncBrowserRender("failed")
		e.logger.Debug("browser rendering failed", zap.String("url", rawURL), zap.Error(err))
		return nil, false
	}
	metrics.IncBrowserRender("ok")

	return rendered, true
}

// inconclusive reports whether a plain response cannot be trusted: a bot
// challenge in front of the page, or a client-rendered shell.
func inconclusive(status int, info analysis) bool {
	switch status {
	case http.StatusForbidden, http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return info.challenge
	}

	if status >= 200 && status < 300 {
		return info.clientRendered || info.needsScript || info.challenge
	}

	return false
}
