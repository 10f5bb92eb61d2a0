package domains

import (
	"net/url"
	"regexp"
	"strings"
)

// renamedHosts maps retired hosts to their successors.
var renamedHosts = map[string]string{
	"twitter.com":        "x.com",
	"www.twitter.com":    "x.com",
	"mobile.twitter.com": "x.com",
}

// renamedPaths handles moves that change the path as well as the host.
var renamedPaths = []struct {
	host, prefix string
	toHost       string
	toPrefix     string
}{
	{"blog.golang.org", "/", "go.dev", "/blog/"},
	{"golang.org", "/pkg/", "pkg.go.dev", "/"},
	{"www.golang.org", "/pkg/", "pkg.go.dev", "/"},
}

// RenameDomain rewrites a url on a renamed host to the successor host.
func RenameDomain(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", false
	}
	host := strings.ToLower(u.Hostname())

	for _, r := range renamedPaths {
		if host == r.host && strings.HasPrefix(u.Path, r.prefix) {
			u.Host = r.toHost
			u.Path = r.toPrefix + strings.TrimPrefix(u.Path, r.prefix)
			u.Scheme = "https"
			return u.String(), true
		}
	}

	if strings.HasSuffix(host, ".readthedocs.org") {
		u.Host = strings.TrimSuffix(host, ".readthedocs.org") + ".readthedocs.io"
		u.Scheme = "https"
		return u.String(), true
	}

	if to, ok := renamedHosts[host]; ok {
		u.Host = to
		u.Scheme = "https"
		return u.String(), true
	}

	return "", false
}

var (
	// /2.7/, /3.11.2/
	bareVersionRe = regexp.MustCompile(`^\d+(\.\d+){1,2}$`)
	// /v1.4/, /v2/
	prefixedVersionRe = regexp.MustCompile(`^v\d+(\.\d+){0,2}$`)
)

// UnpinVersion rewrites the first pinned version segment of a documentation
// url to the moving alias the site uses for its current docs.
func UnpinVersion(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", false
	}
	host := strings.ToLower(u.Hostname())

	segments := strings.Split(u.Path, "/")
	for i, seg := range segments {
		var alias string
		switch {
		case host == "docs.python.org" && bareVersionRe.MatchString(seg):
			if seg == "3" {
				continue
			}
			alias = "3"
		case bareVersionRe.MatchString(seg):
			alias = stableAlias(host)
		case prefixedVersionRe.MatchString(seg) && i > 0 && i < len(segments)-1:
			alias = "latest"
		case (seg == "master" || seg == "dev") && i > 0 && isDocsPath(host, segments[:i]):
			alias = stableAlias(host)
		default:
			continue
		}

		segments[i] = alias
		u.Path = strings.Join(segments, "/")
		return u.String(), true
	}

	return "", false
}

func stableAlias(host string) string {
	if strings.HasSuffix(host, ".readthedocs.io") || strings.HasSuffix(host, ".readthedocs.org") {
		return "stable"
	}

	return "latest"
}

func isDocsPath(host string, before []string) bool {
	if isDocsHost(host) {
		return true
	}
	for _, seg := range before {
		if seg == "docs" || seg == "en" {
			return true
		}
	}

	return false
}

// Repository splits a code-hosting url into owner, repository and the rest
// of the path.
func Repository(rawURL string) (owner, repo, rest string, ok bool) {
	u, err := url.Parse(rawURL)
	if err != nil || !codeHosts[strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")] {
		return "", "", "", false
	}

	parts := strings.SplitN(strings.Trim(u.Path, "/"), "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", false
	}
	if len(parts) == 3 {
		rest = parts[2]
	}

	return parts[0], strings.TrimSuffix(parts[1], ".git"), rest, true
}

// SameLocation reports whether a and b name the same resource once escaping,
// the case of scheme and host, default ports, an empty path and the
// fragment are set aside.
func SameLocation(a, b string) bool {
	if a == b {
		return true
	}

	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}

	return canonicalLocation(ua) == canonicalLocation(ub)
}

func canonicalLocation(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" && !(scheme == "http" && port == "80") && !(scheme == "https" && port == "443") {
		host += ":" + port
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	return scheme + "://" + host + path + "?" + u.Query().Encode()
}
