package repair

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/btraven00/linkmedic/internal/extractor"
	"github.com/btraven00/linkmedic/internal/model"
)

// Confidence of each deterministic correction.
const (
	confidenceStrip     = 98
	confidenceScheme    = 97
	confidenceCanonical = 95
)

var (
	// https//example.com, http//example.com
	missingColonRe = regexp.MustCompile(`(?i)^(https?)//`)
	// https:/example.com, https:///example.com
	schemeSlashesRe = regexp.MustCompile(`(?i)^(https?):(/*)`)
	// https://https://example.com
	doubledSchemeRe = regexp.MustCompile(`(?i)^(?:https?://)+(https?://)`)
	// hxxp://, htps://
	misspelledSchemeRe = regexp.MustCompile(`(?i)^(?:htps|htttps?|hhttps?|hxxps?|ttps?)://`)
)

// step is one syntactic correction.
type step struct {
	strategy   model.Strategy
	confidence float64
	reason     string
	apply      func(string) string
}

var steps = []step{
	{model.StrategyStripPunctuation, confidenceStrip, "removed stray punctuation", stripPunctuation},
	{model.StrategyFixScheme, confidenceScheme, "repaired the url scheme", fixScheme},
}

// fixScheme repairs missing, doubled or mangled schemes.
func fixScheme(u string) string {
	u = strings.TrimSpace(u)

	if m := doubledSchemeRe.FindStringSubmatch(u); m != nil {
		u = strings.ToLower(m[1]) + u[len(m[0]):]
	}
	if m := missingColonRe.FindStringSubmatch(u); m != nil {
		u = strings.ToLower(m[1]) + "://" + u[len(m[0]):]
	}
	if m := misspelledSchemeRe.FindString(u); m != "" {
		scheme := "https://"
		if !strings.Contains(strings.ToLower(m), "s:") {
			scheme = "http://"
		}
		u = scheme + u[len(m):]
	}
	if m := schemeSlashesRe.FindStringSubmatch(u); m != nil && len(m[2]) != 2 {
		u = strings.ToLower(m[1]) + "://" + u[len(m[0]):]
	}

	lower := strings.ToLower(u)
	switch {
	case strings.HasPrefix(lower, "//"):
		u = "https:" + u
	case strings.HasPrefix(lower, "www."):
		u = "https://" + u
	case !strings.Contains(lower, "://") && looksLikeHost(lower):
		u = "https://" + u
	}

	return u
}

var hostLikeRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?(\.[a-z0-9]([a-z0-9-]*[a-z0-9])?)*\.[a-z]{2,}(/|$)`)

func looksLikeHost(s string) bool {
	return hostLikeRe.MatchString(s)
}

// stripPunctuation drops trailing sentence punctuation, unbalanced closing
// brackets and wrapping quotes.
func stripPunctuation(u string) string {
	u = strings.Trim(u, "\"'`<>")
	u = strings.TrimLeft(u, "([")

	for {
		trimmed := extractor.TrimUnbalanced(strings.TrimRight(u, ".,;:!?'\"*_>"))
		if trimmed == u {
			return u
		}
		u = trimmed
	}
}

// comparable reduces a url to the parts an identifier resolver cares about.
func comparable(u string) string {
	s := strings.ToLower(u)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "www.")
	s = strings.TrimPrefix(s, "dx.")

	return strings.TrimSuffix(s, "/")
}

// cleanup applies every syntactic correction. The candidate carries the
// strategy of the first step that changed the url and the lowest confidence
// of the steps applied.
func cleanup(original string, healthy bool) (model.RepairCandidate, bool) {
	current := original
	var (
		strategy   model.Strategy
		confidence float64 = 100
		reasons    []string
	)

	record := func(s model.Strategy, c float64, reason string) {
		if strategy == "" {
			strategy = s
		}
		confidence = min(confidence, c)
		reasons = append(reasons, reason)
	}

	for _, st := range steps {
		if next := st.apply(current); next != current {
			current = next
			record(st.strategy, st.confidence, st.reason)
		}
	}

	if id, ok := extractor.ParseIdentifier(current); ok {
		canonical := id.CanonicalURL()
		formOnly := comparable(canonical) == comparable(current)
		if canonical != "" && canonical != current && (formOnly || !healthy) {
			current = canonical
			record(model.StrategyCanonicalIdentifier, confidenceCanonical, "canonical resolver for "+id.String())
		}
	}

	if strategy == "" {
		return model.RepairCandidate{}, false
	}
	if _, err := url.ParseRequestURI(current); err != nil {
		return model.RepairCandidate{}, false
	}

	return model.NewCandidate(original, current, strategy, confidence, strings.Join(reasons, "; ")), true
}
