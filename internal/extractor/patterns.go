package extractor

import (
	"regexp"
	"strings"
)

// Identifier is a persistent scholarly identifier carried by a url.
type Identifier struct {
	Scheme string
	Value  string
}

// String renders the identifier as scheme:value.
func (id Identifier) String() string {
	if id.Scheme == "" {
		return ""
	}

	return id.Scheme + ":" + id.Value
}

// CanonicalURL is the preferred landing page for the identifier.
func (id Identifier) CanonicalURL() string {
	switch id.Scheme {
	case "arxiv":
		return "https://arxiv.org/abs/" + id.Value
	case "doi":
		return "https://doi.org/" + id.Value
	case "pubmed":
		return "https://pubmed.ncbi.nlm.nih.gov/" + id.Value + "/"
	default:
		return ""
	}
}

// IdentifierPattern recognizes one identifier-bearing url shape.
type IdentifierPattern struct {
	Name        string
	Scheme      string
	Regex       *regexp.Regexp
	Description string
	Examples    []string
}

// identifierPatterns are tried in order; the first capture group is the value.
var identifierPatterns = []IdentifierPattern{
	{
		Name:        "arXiv",
		Scheme:      "arxiv",
		Regex:       regexp.MustCompile(`(?i)arxiv\.org/(?:abs|pdf)/(\d{4}\.\d{4,5}|[a-z\-]+(?:\.[a-z]{2})?/\d{7})(v\d+)?`),
		Description: "arXiv abstract and PDF pages",
		Examples:    []string{"https://arxiv.org/abs/2104.08935", "https://arxiv.org/pdf/2104.08935v2.pdf"},
	},
	{
		Name:        "DOI",
		Scheme:      "doi",
		Regex:       regexp.MustCompile(`(?i)(?:dx\.)?doi\.org/(10\.\d{4,9}/[^\s?#"<>]+)`),
		Description: "Digital Object Identifier resolver links",
		Examples:    []string{"https://doi.org/10.1038/nature12373", "http://dx.doi.org/10.1000/182"},
	},
	{
		Name:        "PubMed",
		Scheme:      "pubmed",
		Regex:       regexp.MustCompile(`(?i)(?:pubmed\.ncbi\.nlm\.nih\.gov/|ncbi\.nlm\.nih\.gov/pubmed/)(\d{1,9})`),
		Description: "PubMed records",
		Examples:    []string{"https://pubmed.ncbi.nlm.nih.gov/31978945/"},
	},
	{
		Name:        "ISBN",
		Scheme:      "isbn",
		Regex:       regexp.MustCompile(`(?i)isbn[/:=]?((?:97[89])?\d{9}[\dx])\b`),
		Description: "ISBN lookups on catalogue sites",
		Examples:    []string{"https://openlibrary.org/isbn/9780262035613"},
	},
}

// IdentifierPatterns lists the recognized identifier shapes.
func IdentifierPatterns() []IdentifierPattern {
	return identifierPatterns
}

// ParseIdentifier finds the identifier carried by rawURL, if any.
func ParseIdentifier(rawURL string) (Identifier, bool) {
	for _, p := range identifierPatterns {
		m := p.Regex.FindStringSubmatch(rawURL)
		if m == nil {
			continue
		}

		value := m[1]
		switch p.Scheme {
		case "doi":
			value = TrimUnbalanced(strings.TrimRight(value, ".,;"))
			value = strings.TrimSuffix(value, "/")
		case "isbn":
			value = strings.ToUpper(value)
		}

		return Identifier{Scheme: p.Scheme, Value: value}, true
	}

	return Identifier{}, false
}

// TrimUnbalanced drops trailing closing brackets that have no opener.
func TrimUnbalanced(s string) string {
	pairs := map[byte]byte{')': '(', ']': '['}
	for len(s) > 0 {
		last := s[len(s)-1]
		open, ok := pairs[last]
		if !ok {
			return s
		}
		if strings.Count(s, string(open)) >= strings.Count(s, string(last)) {
			return s
		}
		s = s[:len(s)-1]
	}

	return s
}
