package extractor

import (
	"strings"
	"unicode"

	"github.com/btraven00/linkmedic/internal/model"
)

// vocabulary is checked in priority order; the first class with a hit wins.
var vocabulary = []struct {
	class model.Classification
	terms []string
}{
	{model.ClassCitation, []string{
		"cite", "cited", "citation", "paper", "papers", "study", "studies", "journal", "doi",
		"arxiv", "preprint", "proceedings", "et al", "published", "publication", "research",
		"findings", "survey",
	}},
	{model.ClassDocumentation, []string{
		"docs", "documentation", "manual", "api", "reference guide", "tutorial", "guide",
		"readme", "specification", "handbook", "how to", "installation", "changelog",
	}},
	{model.ClassResource, []string{
		"download", "dataset", "datasets", "tool", "tools", "library", "repository", "repo",
		"source code", "github", "package", "template", "sdk", "plugin", "demo",
	}},
	{model.ClassNews, []string{
		"news", "announced", "announcement", "announces", "blog", "press release", "article",
		"report", "reported", "launch", "launched", "release notes",
	}},
	{model.ClassReference, []string{
		"see", "wikipedia", "definition", "more information", "learn more", "refer",
		"reference", "according to", "overview", "details",
	}},
}

// Classify infers a link's purpose from its text and url.
func Classify(display, before, after, rawURL string) model.Classification {
	if _, ok := ParseIdentifier(rawURL); ok {
		return model.ClassCitation
	}

	text := wordString(display + " " + before + " " + after)
	urlText := wordString(rawURL)

	for _, v := range vocabulary {
		for _, term := range v.terms {
			if strings.Contains(text, " "+term+" ") {
				return v.class
			}
		}
		if v.class == model.ClassDocumentation && looksLikeDocsURL(urlText) {
			return v.class
		}
	}

	return model.ClassInline
}

func looksLikeDocsURL(urlText string) bool {
	for _, hint := range []string{" docs ", " readthedocs ", " documentation ", " manual ", " reference "} {
		if strings.Contains(urlText, hint) {
			return true
		}
	}

	return false
}

// wordString lowercases s and joins its words with single spaces, padded on
// both ends so terms can be matched on word boundaries.
func wordString(s string) string {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	return " " + strings.Join(words, " ") + " "
}
