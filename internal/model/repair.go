package model

import "fmt"

// Strategy names how a repair candidate was produced.
type Strategy string

const (
	StrategyStripPunctuation    Strategy = "strip-punctuation"
	StrategyFixScheme           Strategy = "fix-scheme"
	StrategyCanonicalIdentifier Strategy = "canonical-identifier"
	StrategyRenamedRepository   Strategy = "renamed-repository"
	StrategyRebuildRepository   Strategy = "rebuild-repository"
	StrategyDocsVersion         Strategy = "docs-version"
	StrategyRenamedDomain       Strategy = "renamed-domain"
	StrategyFollowRedirect      Strategy = "follow-redirect"
	StrategyArchiveSnapshot     Strategy = "archive-snapshot"
)

// Deterministic reports whether the strategy is a syntactic correction.
func (s Strategy) Deterministic() bool {
	switch s {
	case StrategyStripPunctuation, StrategyFixScheme, StrategyCanonicalIdentifier:
		return true
	default:
		return false
	}
}

// RepairCandidate proposes a replacement for a problematic url. Exactly one
// of FixedURL and AlternativeURL is set.
type RepairCandidate struct {
	OriginalURL    string   `json:"original_url"`
	FixedURL       string   `json:"fixed_url,omitempty"`
	AlternativeURL string   `json:"alternative_url,omitempty"`
	Strategy       Strategy `json:"strategy"`
	Confidence     float64  `json:"confidence"`
	Reason         string   `json:"reason,omitempty"`
}

// NewCandidate builds a candidate, placing the replacement in FixedURL for
// deterministic strategies and AlternativeURL otherwise.
func NewCandidate(original, replacement string, strategy Strategy, confidence float64, reason string) RepairCandidate {
	c := RepairCandidate{
		OriginalURL: original,
		Strategy:    strategy,
		Confidence:  confidence,
		Reason:      reason,
	}
	if strategy.Deterministic() {
		c.FixedURL = replacement
	} else {
		c.AlternativeURL = replacement
	}

	return c
}

// Replacement returns whichever url the candidate proposes.
func (c RepairCandidate) Replacement() string {
	if c.FixedURL != "" {
		return c.FixedURL
	}

	return c.AlternativeURL
}

// Check verifies the exactly-one-replacement rule.
func (c RepairCandidate) Check() error {
	if (c.FixedURL == "") == (c.AlternativeURL == "") {
		return fmt.Errorf("candidate for %s must set exactly one of fixed_url and alternative_url", c.OriginalURL)
	}

	return nil
}

// Better reports whether c should replace other as the active candidate.
func (c RepairCandidate) Better(other RepairCandidate) bool {
	return c.Confidence > other.Confidence
}
