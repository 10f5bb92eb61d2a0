// Package relevance estimates whether a linked page still matches the text
// that cites it.
package relevance

import (
	"cmp"
	"fmt"
	"math"
	"net/url"
	"slices"
	"strings"

	"github.com/abadojack/whatlanggo"
	"go.uber.org/zap"

	"github.com/btraven00/linkmedic/internal/model"
)

// Sub-score weights; they sum to 1.
const (
	weightTitle       = 0.30
	weightContent     = 0.30
	weightKeywords    = 0.20
	weightReliability = 0.20
)

// minLanguageText is the shortest text whose language we trust.
const minLanguageText = 40

// Pair is one citing link with the validation of its url.
type Pair struct {
	Link   model.LinkContext
	Result *model.ValidationResult
}

// Scorer computes relevance scores. Fit must run over the batch before
// Score for the content similarity to use corpus statistics.
type Scorer struct {
	reliability *Reliability
	thresholds  model.Thresholds
	idf         *idf
	logger      *zap.Logger
}

// NewScorer creates a scorer. A nil reliability uses the built-in table.
func NewScorer(reliability *Reliability, thresholds model.Thresholds, logger *zap.Logger) *Scorer {
	if reliability == nil {
		reliability = DefaultReliability()
	}

	return &Scorer{
		reliability: reliability,
		thresholds:  thresholds,
		idf:         newIDF(),
		logger:      logger.Named("relevance"),
	}
}

// Fit learns document frequencies from every context and snippet of the batch.
func (s *Scorer) Fit(pairs []Pair) {
	s.idf = newIDF()
	seen := make(map[string]bool)

	for _, p := range pairs {
		s.idf.add(tokenize(p.Link.Context()))
		if p.Result == nil || seen[p.Result.URL] {
			continue
		}
		seen[p.Result.URL] = true
		if p.Result.ContentSnippet != "" {
			s.idf.add(tokenize(p.Result.ContentSnippet))
		}
	}
}

// Score rates one link against its validated target.
func (s *Scorer) Score(link model.LinkContext, result *model.ValidationResult) model.RelevanceResult {
	out := model.RelevanceResult{URL: link.URL, ContentHash: link.ContentHash}

	if result == nil || !result.Reachable() {
		out.SuggestedAction = model.ActionReplace
		out.Confidence = 100
		switch {
		case result == nil:
			out.PotentialIssues = []string{"link was not validated"}
		case result.IssueType != model.IssueNone:
			out.PotentialIssues = []string{fmt.Sprintf("link is %s (%s)", result.Status, result.IssueType)}
		default:
			out.PotentialIssues = []string{fmt.Sprintf("link is %s", result.Status)}
		}
		return out
	}

	contextTokens := tokenize(link.Context())
	displayTokens := tokenize(link.DisplayText)
	titleTokens := tokenize(result.PageTitle)
	target := result.URL
	if result.FinalURL != "" {
		target = result.FinalURL
	}

	var issues []string

	// title
	var title float64
	if len(titleTokens) == 0 {
		issues = append(issues, "target page has no title")
	} else {
		title = max(coverage(titleTokens, contextTokens), coverage(displayTokens, titleTokens),
			stringSimilarity(displayTokens, titleTokens)) * 100
	}

	// content
	content := s.contentMatch(contextTokens, result)
	if result.ContentSnippet == "" {
		issues = append(issues, "no readable content on the target page")
	}

	// keywords
	keywords := overlap(contextTokens, append(slices.Clone(titleTokens), urlTokens(target)...)) * 100

	// domain
	reliability := s.reliability.Score(hostOf(target))

	out.SubScores = model.SubScores{
		TitleMatch:        round(title),
		ContentMatch:      round(content),
		KeywordOverlap:    round(keywords),
		DomainReliability: round(reliability),
	}
	out.Score = round(weightTitle*title + weightContent*content + weightKeywords*keywords + weightReliability*reliability)
	out.SuggestedAction = s.thresholds.Action(out.Score)
	out.Confidence = confidence(out.SubScores.Values())

	if len(titleTokens) > 0 && title < 20 {
		issues = append(issues, "page title does not match the link text")
	}
	if result.ContentSnippet != "" && content < 15 {
		issues = append(issues, "page content appears unrelated to the citing text")
	}
	if reliability < 40 {
		issues = append(issues, "low-reliability domain")
	}
	if result.Status == model.StatusRedirect && hostOf(result.URL) != hostOf(result.FinalURL) {
		issues = append(issues, "redirects to a different domain: "+hostOf(result.FinalURL))
	}
	if mismatch := languageMismatch(link.Context(), result.PageTitle+" "+result.ContentSnippet); mismatch != "" {
		issues = append(issues, mismatch)
	}
	out.PotentialIssues = issues

	return out
}

// contentMatch compares the citing text with the page snippet: tf-idf cosine
// first, raw string similarity when either side has no usable vector.
func (s *Scorer) contentMatch(contextTokens []string, result *model.ValidationResult) float64 {
	text := result.ContentSnippet
	if text == "" {
		text = result.Description
	}
	pageTokens := tokenize(text)

	if sim, ok := cosine(s.idf.vector(contextTokens), s.idf.vector(pageTokens)); ok {
		return sim * 100
	}
	if len(contextTokens) == 0 || len(pageTokens) == 0 {
		return 0
	}

	return stringSimilarity(contextTokens, pageTokens) * 100
}

// ScoreAll fits the batch and scores every pair. A url cited from several
// places keeps its lowest-scoring pair. Results are sorted by url.
func (s *Scorer) ScoreAll(pairs []Pair) []model.RelevanceResult {
	s.Fit(pairs)

	lowest := make(map[string]model.RelevanceResult)
	for _, p := range pairs {
		r := s.Score(p.Link, p.Result)
		if prev, ok := lowest[r.URL]; ok && prev.Score <= r.Score {
			continue
		}
		lowest[r.URL] = r
	}

	results := make([]model.RelevanceResult, 0, len(lowest))
	for _, r := range lowest {
		results = append(results, r)
	}
	slices.SortFunc(results, func(a, b model.RelevanceResult) int {
		return cmp.Compare(a.URL, b.URL)
	})

	s.logger.Debug("scored links", zap.Int("pairs", len(pairs)), zap.Int("urls", len(results)))

	return results
}

// confidence falls as the sub-scores disagree: 100·(1 − σ/50), clamped.
func confidence(values []float64) float64 {
	c := 100 * (1 - stddev(values)/50)

	return round(math.Max(0, math.Min(100, c)))
}

// languageMismatch reports when citing text and page are confidently in
// different languages.
func languageMismatch(citing, page string) string {
	if len(citing) < minLanguageText || len(page) < minLanguageText {
		return ""
	}

	a, b := whatlanggo.Detect(citing), whatlanggo.Detect(page)
	if !a.IsReliable() || !b.IsReliable() || a.Lang == b.Lang {
		return ""
	}

	return fmt.Sprintf("language mismatch: text is %s, page is %s", a.Lang.Iso6393(), b.Lang.Iso6393())
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	return strings.ToLower(u.Hostname())
}

func round(v float64) float64 {
	return math.Round(v*10) / 10
}
