package relevance

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// TLDPattern scores every host ending in Suffix.
type TLDPattern struct {
	Suffix      string  `yaml:"suffix"`
	Score       float64 `yaml:"score"`
	Description string  `yaml:"description"`
}

// DomainGroup scores a list of domains and their subdomains.
type DomainGroup struct {
	Category    string   `yaml:"category"`
	Score       float64  `yaml:"score"`
	Description string   `yaml:"description"`
	Domains     []string `yaml:"domains"`
}

// Reliability is a static trust ranking of source websites, scored 0-100.
// Domain groups are matched before TLD patterns.
type Reliability struct {
	TLDPatterns  []TLDPattern  `yaml:"tld_patterns"`
	DomainGroups []DomainGroup `yaml:"domain_groups"`
	DefaultScore float64       `yaml:"default_score"`
}

// DefaultReliability returns the built-in ranking.
func DefaultReliability() *Reliability {
	return &Reliability{
		TLDPatterns: []TLDPattern{
			{Suffix: ".edu", Score: 90, Description: "Educational"},
			{Suffix: ".ac.uk", Score: 90, Description: "UK academic"},
			{Suffix: ".gov", Score: 85, Description: "Government"},
			{Suffix: ".mil", Score: 80, Description: "Military"},
			{Suffix: ".int", Score: 80, Description: "International organizations"},
		},
		DomainGroups: []DomainGroup{
			{
				Category: "academic", Score: 95, Description: "Journals, preprint servers and identifier resolvers",
				Domains: []string{
					"arxiv.org", "doi.org", "nature.com", "science.org", "acm.org", "ieee.org", "springer.com",
					"sciencedirect.com", "wiley.com", "ncbi.nlm.nih.gov", "plos.org", "jstor.org",
					"biorxiv.org", "semanticscholar.org", "openreview.net", "aclanthology.org",
				},
			},
			{
				Category: "standards", Score: 95, Description: "Standards bodies",
				Domains: []string{"w3.org", "ietf.org", "rfc-editor.org", "iso.org", "whatwg.org", "unicode.org", "ecma-international.org"},
			},
			{
				Category: "documentation", Score: 90, Description: "Official documentation",
				Domains: []string{
					"docs.python.org", "developer.mozilla.org", "go.dev", "pkg.go.dev", "readthedocs.io",
					"docs.github.com", "kubernetes.io", "learn.microsoft.com", "docs.oracle.com",
					"docs.rs", "doc.rust-lang.org", "postgresql.org", "nodejs.org",
				},
			},
			{
				Category: "code", Score: 80, Description: "Code hosting",
				Domains: []string{"github.com", "gitlab.com", "bitbucket.org", "codeberg.org", "sourceforge.net"},
			},
			{
				Category: "reference", Score: 75, Description: "Encyclopedias and reference works",
				Domains: []string{"wikipedia.org", "britannica.com", "archive.org", "stackoverflow.com"},
			},
			{
				Category: "news", Score: 70, Description: "Established news outlets",
				Domains: []string{"reuters.com", "apnews.com", "bbc.co.uk", "bbc.com", "nytimes.com", "theguardian.com", "arstechnica.com"},
			},
			{
				Category: "blogs", Score: 45, Description: "Blogging platforms",
				Domains: []string{"medium.com", "dev.to", "substack.com", "hashnode.dev", "blogspot.com", "wordpress.com"},
			},
			{
				Category: "social", Score: 25, Description: "Low-signal social platforms",
				Domains: []string{
					"twitter.com", "x.com", "facebook.com", "instagram.com", "tiktok.com",
					"pinterest.com", "reddit.com", "quora.com", "linkedin.com",
				},
			},
			{
				Category: "shorteners", Score: 15, Description: "URL shorteners hide the destination",
				Domains: []string{"bit.ly", "tinyurl.com", "t.co", "goo.gl", "ow.ly"},
			},
		},
		DefaultScore: 50,
	}
}

// LoadReliability reads overrides from a YAML file. Groups and patterns in
// the file take precedence over the built-in ones; a positive default_score
// replaces the default.
func LoadReliability(path string) (*Reliability, error) {
	r := DefaultReliability()
	if path == "" {
		return r, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read reliability file: %w", err)
	}

	var override Reliability
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("failed to parse reliability file %s: %w", path, err)
	}

	r.TLDPatterns = append(override.TLDPatterns, r.TLDPatterns...)
	r.DomainGroups = append(override.DomainGroups, r.DomainGroups...)
	if override.DefaultScore > 0 {
		r.DefaultScore = override.DefaultScore
	}

	return r, nil
}

// Score ranks host.
func (r *Reliability) Score(host string) float64 {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	if host == "" {
		return 0
	}

	for _, group := range r.DomainGroups {
		for _, known := range group.Domains {
			if domainMatches(host, known) {
				return group.Score
			}
		}
	}

	for _, p := range r.TLDPatterns {
		if strings.HasSuffix(host, strings.ToLower(p.Suffix)) {
			return p.Score
		}
	}

	return r.DefaultScore
}

// domainMatches is an exact match or a subdomain boundary match.
func domainMatches(host, pattern string) bool {
	pattern = strings.ToLower(pattern)

	return host == pattern || strings.HasSuffix(host, "."+pattern)
}
