// Package web implements the specialized validators for code hosting, video,
// documentation, social and image urls.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/btraven00/linkmedic/internal/model"
	"github.com/btraven00/linkmedic/pkg/validators/domains"
)

const userAgent = "Mozilla/5.0 (compatible; linkmedic/1.0; +https://github.com/btraven00/linkmedic)"

// Options configures every validator in the set.
type Options struct {
	Client      *http.Client
	Timeout     time.Duration
	GitHubAPI   string
	GitHubToken string
	// YouTubeOEmbed and VimeoOEmbed override the oEmbed endpoints.
	YouTubeOEmbed string
	VimeoOEmbed   string
	Concurrency   int
	Logger        *zap.Logger
}

// NewSet builds the full validator set.
func NewSet(opts Options) *domains.Set {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &domains.Set{
		CodeHosting:   NewCodeHostingValidator(opts.Client, opts.GitHubAPI, opts.GitHubToken),
		Video:         NewVideoValidator(opts.Client, opts.YouTubeOEmbed, opts.VimeoOEmbed),
		Documentation: NewDocsValidator(opts.Client),
		Social:        NewSocialValidator(opts.Client),
		Image:         NewImageValidator(opts.Client),
		Concurrency:   opts.Concurrency,
		Logger:        opts.Logger.Named("specialized"),
	}
}

// baseValidator provides the shared plumbing of the web validators.
type baseValidator struct {
	name        string
	kind        domains.Kind
	description string
	patterns    []domains.Pattern
	client      *http.Client
}

func newBaseValidator(name string, kind domains.Kind, description string, client *http.Client) baseValidator {
	return baseValidator{
		name:        name,
		kind:        kind,
		description: description,
		client:      client,
	}
}

// Name returns the validator name
func (v *baseValidator) Name() string {
	return v.name
}

// Kind returns the kind this validator covers
func (v *baseValidator) Kind() domains.Kind {
	return v.kind
}

// Description returns the validator description
func (v *baseValidator) Description() string {
	return v.description
}

// Patterns returns the patterns this validator recognizes
func (v *baseValidator) Patterns() []domains.Pattern {
	return v.patterns
}

func (v *baseValidator) addPattern(pattern, description string, examples ...string) {
	v.patterns = append(v.patterns, domains.Pattern{
		Pattern:     pattern,
		Description: description,
		Examples:    examples,
	})
}

func (v *baseValidator) newResult(url string) *model.SpecializedResult {
	return &model.SpecializedResult{
		URL:       url,
		Kind:      string(v.kind),
		Validator: v.name,
		Valid:     true,
	}
}

// access is the reduced outcome of a reachability check.
type access struct {
	statusCode    int
	contentType   string
	contentLength int64
	finalURL      string
}

func (a access) ok() bool {
	return a.statusCode >= 200 && a.statusCode < 400
}

// reach performs a HEAD request, falling back to GET for servers that
// reject HEAD.
func (v *baseValidator) reach(ctx context.Context, url string) (*access, error) {
	a, err := v.request(ctx, http.MethodHead, url)
	if err != nil {
		return nil, err
	}
	if a.statusCode == http.StatusMethodNotAllowed || a.statusCode == http.StatusNotImplemented {
		return v.request(ctx, http.MethodGet, url)
	}

	return a, nil
}

func (v *baseValidator) request(ctx context.Context, method, url string) (*access, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return &access{
		statusCode:    resp.StatusCode,
		contentType:   resp.Header.Get("Content-Type"),
		contentLength: resp.ContentLength,
		finalURL:      resp.Request.URL.String(),
	}, nil
}

// getJSON fetches url and decodes a JSON body into target. The status code
// is returned even when it is not a success; target is only filled for 200.
func (v *baseValidator) getJSON(ctx context.Context, url string, headers map[string]string, target any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	for k, val := range headers {
		req.Header.Set(k, val)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return resp.StatusCode, nil
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	return resp.StatusCode, nil
}

// reachability records an unreachable url as invalid.
func (v *baseValidator) reachability(ctx context.Context, result *model.SpecializedResult) (*access, error) {
	a, err := v.reach(ctx, result.URL)
	if err != nil {
		return nil, err
	}
	if !a.ok() {
		result.Valid = false
		result.AddIssue(fmt.Sprintf("%s returns HTTP %d", strings.ReplaceAll(string(v.kind), "-", " "), a.statusCode))
	}

	return a, nil
}
