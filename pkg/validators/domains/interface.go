// Package domains selects and runs deeper, type-specific checks for urls
// whose host tells us what kind of resource they point at.
package domains

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/btraven00/linkmedic/internal/model"
)

// Kind is the closed set of resource types with a specialized check.
type Kind string

const (
	KindNone          Kind = ""
	KindCodeHosting   Kind = "code-hosting"
	KindVideo         Kind = "video"
	KindDocumentation Kind = "documentation"
	KindSocial        Kind = "social"
	KindImage         Kind = "image"
)

// Kinds lists every kind that has a validator, in display order.
func Kinds() []Kind {
	return []Kind{KindCodeHosting, KindVideo, KindDocumentation, KindSocial, KindImage}
}

var (
	codeHosts = map[string]bool{
		"github.com":    true,
		"gitlab.com":    true,
		"bitbucket.org": true,
		"codeberg.org":  true,
	}
	videoHosts = map[string]bool{
		"youtube.com":      true,
		"m.youtube.com":    true,
		"youtu.be":         true,
		"vimeo.com":        true,
		"player.vimeo.com": true,
	}
	socialHosts = map[string]bool{
		"twitter.com":     true,
		"x.com":           true,
		"linkedin.com":    true,
		"facebook.com":    true,
		"instagram.com":   true,
		"reddit.com":      true,
		"mastodon.social": true,
		"threads.net":     true,
		"bsky.app":        true,
	}
	imageExtensions = map[string]bool{
		".png":  true,
		".jpg":  true,
		".jpeg": true,
		".gif":  true,
		".svg":  true,
		".webp": true,
		".avif": true,
	}
)

// Classify picks the kind of a url from its host and path alone.
func Classify(rawURL string) Kind {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return KindNone
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	p := strings.ToLower(u.Path)

	switch {
	case imageExtensions[path.Ext(p)]:
		return KindImage
	case codeHosts[host]:
		return KindCodeHosting
	case videoHosts[host]:
		return KindVideo
	case socialHosts[host]:
		return KindSocial
	case isDocsHost(host) || strings.Contains(p, "/docs/") || strings.Contains(p, "/documentation/"):
		return KindDocumentation
	default:
		return KindNone
	}
}

func isDocsHost(host string) bool {
	return strings.HasPrefix(host, "docs.") ||
		strings.HasPrefix(host, "developer.") ||
		strings.HasSuffix(host, ".readthedocs.io") ||
		strings.HasSuffix(host, ".readthedocs.org") ||
		host == "pkg.go.dev"
}

// Validator performs the deeper check for one kind.
type Validator interface {
	Name() string
	Kind() Kind
	Description() string

	// Patterns returns the url shapes this validator recognizes (for help output)
	Patterns() []Pattern

	// Validate inspects url. A returned error means the check itself could not
	// run; problems with the url go into the result.
	Validate(ctx context.Context, url string) (*model.SpecializedResult, error)
}

// Pattern documents a url shape a validator recognizes.
type Pattern struct {
	Pattern     string   `json:"pattern"`
	Description string   `json:"description"`
	Examples    []string `json:"examples"`
}

// ValidatorInfo contains metadata about a validator
type ValidatorInfo struct {
	Name        string    `json:"name"`
	Kind        Kind      `json:"kind"`
	Description string    `json:"description"`
	Patterns    []Pattern `json:"patterns"`
}

// Set holds one validator per kind.
type Set struct {
	CodeHosting   Validator
	Video         Validator
	Documentation Validator
	Social        Validator
	Image         Validator

	Concurrency int
	Logger      *zap.Logger
}

// For returns the validator responsible for kind, or nil.
func (s *Set) For(kind Kind) Validator {
	switch kind {
	case KindCodeHosting:
		return s.CodeHosting
	case KindVideo:
		return s.Video
	case KindDocumentation:
		return s.Documentation
	case KindSocial:
		return s.Social
	case KindImage:
		return s.Image
	case KindNone:
		return nil
	default:
		panic(fmt.Sprintf("domains: unhandled kind %q", kind))
	}
}

// ListValidators returns metadata about every configured validator.
func (s *Set) ListValidators() []ValidatorInfo {
	var info []ValidatorInfo
	for _, kind := range Kinds() {
		v := s.For(kind)
		if v == nil {
			continue
		}
		info = append(info, ValidatorInfo{
			Name:        v.Name(),
			Kind:        v.Kind(),
			Description: v.Description(),
			Patterns:    v.Patterns(),
		})
	}

	return info
}

// Validate runs the matching validator for url. ok is false when no
// validator applies.
func (s *Set) Validate(ctx context.Context, rawURL string) (result *model.SpecializedResult, ok bool, err error) {
	kind := Classify(rawURL)
	v := s.For(kind)
	if v == nil {
		return nil, false, nil
	}

	result, err = v.Validate(ctx, rawURL)
	if err != nil {
		return nil, true, fmt.Errorf("%s check of %s: %w", v.Name(), rawURL, err)
	}
	result.URL = rawURL
	result.Kind = string(kind)
	result.Validator = v.Name()

	return result, true, nil
}

// ValidateAll checks every distinct url that has a validator, concurrently.
// Checks that fail to run are logged and left out; only cancellation is
// returned as an error.
func (s *Set) ValidateAll(ctx context.Context, urls []string) (map[string]*model.SpecializedResult, error) {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		mu      sync.Mutex
		results = make(map[string]*model.SpecializedResult)
		seen    = make(map[string]bool)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.Concurrency, 1))

	for _, u := range urls {
		if seen[u] || Classify(u) == KindNone {
			continue
		}
		seen[u] = true

		g.Go(func() error {
			r, ok, err := s.Validate(gctx, u)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.Warn("specialized check failed", zap.String("url", u), zap.Error(err))
				return nil
			}
			if !ok {
				return nil
			}

			mu.Lock()
			results[u] = r
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()

	return results, err
}
