// Package archive looks up and requests Wayback Machine snapshots, the last
// resort replacement for links that have no live alternative.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/btraven00/linkmedic/internal/model"
)

// ErrUnreachable marks an archive endpoint that does not answer at all.
var ErrUnreachable = errors.New("archive endpoint unreachable")

// timestampLayout is the 14-digit Wayback timestamp.
const timestampLayout = "20060102150405"

// Confidence of archive candidates. A fresh capture or an old snapshot is
// less likely to show what the author linked.
const (
	confidenceSnapshot      = 60
	confidenceStaleSnapshot = 50
)

const userAgent = "Mozilla/5.0 (compatible; linkmedic/1.0; +https://github.com/btraven00/linkmedic)"

// Options configures a Client.
type Options struct {
	BaseURL string
	SaveURL string
	MaxAge  time.Duration
	Timeout time.Duration
	// SaveInterval spaces capture requests; zero disables the limit.
	SaveInterval time.Duration
	Client       *http.Client
	Logger       *zap.Logger
}

// Snapshot is the closest archived copy of a url.
type Snapshot struct {
	URL        string    `json:"url"`
	Timestamp  time.Time `json:"timestamp"`
	StatusCode int       `json:"status_code,omitempty"`
}

// Age is the time since the snapshot was taken.
func (s Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.Timestamp)
}

// Client talks to the availability and capture endpoints.
type Client struct {
	baseURL string
	saveURL string
	maxAge  time.Duration
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
	now     func() time.Time
}

// New creates an archive client.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://archive.org"
	}
	if opts.SaveURL == "" {
		opts.SaveURL = "https://web.archive.org/save/"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	limit := rate.Inf
	if opts.SaveInterval > 0 {
		limit = rate.Every(opts.SaveInterval)
	}

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		saveURL: strings.TrimRight(opts.SaveURL, "/") + "/",
		maxAge:  opts.MaxAge,
		client:  opts.Client,
		limiter: rate.NewLimiter(limit, 1),
		logger:  opts.Logger.Named("archive"),
		now:     time.Now,
	}
}

// availabilityResponse is the payload of /wayback/available.
type availabilityResponse struct {
	URL               string `json:"url"`
	ArchivedSnapshots struct {
		Closest *struct {
			Available bool   `json:"available"`
			URL       string `json:"url"`
			Timestamp string `json:"timestamp"`
			Status    string `json:"status"`
		} `json:"closest"`
	} `json:"archived_snapshots"`
}

// Reachable checks that the availability endpoint answers. Anything short of
// a response wraps ErrUnreachable.
func (c *Client) Reachable(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/wayback/available?url=example.com", http.NoBody)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: %s answered HTTP %d", ErrUnreachable, c.baseURL, resp.StatusCode)
	}

	return nil
}

// Available returns the closest snapshot of rawURL, or nil when none exists.
func (c *Client) Available(ctx context.Context, rawURL string) (*Snapshot, error) {
	endpoint := c.baseURL + "/wayback/available?url=" + url.QueryEscape(rawURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("availability lookup for %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("availability lookup for %s: HTTP %d", rawURL, resp.StatusCode)
	}

	var payload availabilityResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to parse availability response: %w", err)
	}

	closest := payload.ArchivedSnapshots.Closest
	if closest == nil || !closest.Available || closest.URL == "" {
		return nil, nil
	}

	ts, err := time.Parse(timestampLayout, closest.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("snapshot timestamp %q: %w", closest.Timestamp, err)
	}

	code, _ := strconv.Atoi(closest.Status)

	return &Snapshot{URL: httpsSnapshot(closest.URL), Timestamp: ts, StatusCode: code}, nil
}

// Save requests a fresh capture of rawURL and returns the snapshot url the
// archive reports.
func (c *Client) Save(ctx context.Context, rawURL string) (*Snapshot, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.saveURL+rawURL, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("capture of %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("capture of %s: HTTP %d", rawURL, resp.StatusCode)
	}

	location := resp.Header.Get("Content-Location")
	if location == "" && strings.Contains(resp.Request.URL.Path, "/web/") {
		location = resp.Request.URL.Path
	}
	if location == "" {
		return nil, fmt.Errorf("capture of %s: archive returned no snapshot location", rawURL)
	}
	if strings.HasPrefix(location, "/") {
		location = resp.Request.URL.Scheme + "://" + resp.Request.URL.Host + location
	}

	c.logger.Info("captured snapshot", zap.String("url", rawURL), zap.String("snapshot", location))

	return &Snapshot{URL: httpsSnapshot(location), Timestamp: c.now().UTC()}, nil
}

// Ensure makes sure a snapshot no older than the configured maximum age
// exists, capturing one if needed. fresh reports whether a capture was made.
func (c *Client) Ensure(ctx context.Context, rawURL string) (s *Snapshot, fresh bool, err error) {
	s, err = c.Available(ctx, rawURL)
	if err != nil {
		return nil, false, err
	}
	if s != nil && !c.stale(*s) {
		return s, false, nil
	}

	saved, err := c.Save(ctx, rawURL)
	if err != nil {
		if s != nil {
			c.logger.Warn("capture failed, keeping old snapshot", zap.String("url", rawURL), zap.Error(err))
			return s, false, nil
		}
		return nil, false, err
	}

	return saved, true, nil
}

// Candidate proposes the closest snapshot of a dead url as an
// archive-snapshot repair. Old snapshots and captures of the url in its
// current, possibly broken, state get the lower confidence.
func (c *Client) Candidate(ctx context.Context, rawURL string) (model.RepairCandidate, bool, error) {
	s, err := c.Available(ctx, rawURL)
	if err != nil {
		return model.RepairCandidate{}, false, err
	}

	confidence := float64(confidenceSnapshot)
	reason := "archived copy"
	switch {
	case s == nil:
		if s, err = c.Save(ctx, rawURL); err != nil {
			return model.RepairCandidate{}, false, err
		}
		confidence = confidenceStaleSnapshot
		reason = "fresh capture; the live page may already be gone"
	case c.stale(*s):
		confidence = confidenceStaleSnapshot
		reason = "archived copy from " + s.Timestamp.Format("2006-01-02")
	default:
		reason = "archived copy from " + s.Timestamp.Format("2006-01-02")
	}

	return model.NewCandidate(rawURL, s.URL, model.StrategyArchiveSnapshot, confidence, reason), true, nil
}

func (c *Client) stale(s Snapshot) bool {
	return c.maxAge > 0 && s.Age(c.now()) > c.maxAge
}

// httpsSnapshot upgrades the http snapshot urls the API returns.
func httpsSnapshot(u string) string {
	if rest, ok := strings.CutPrefix(u, "http://"); ok {
		return "https://" + rest
	}

	return u
}
