package model

// Action is the recommended handling for a link after scoring.
type Action string

const (
	ActionKeep    Action = "keep"
	ActionReview  Action = "review"
	ActionReplace Action = "replace"
)

// SubScores are the weighted components of a relevance score, each 0-100.
type SubScores struct {
	TitleMatch        float64 `json:"title_match"`
	ContentMatch      float64 `json:"content_match"`
	KeywordOverlap    float64 `json:"keyword_overlap"`
	DomainReliability float64 `json:"domain_reliability"`
}

// Values returns the sub-scores in a fixed order.
func (s SubScores) Values() []float64 {
	return []float64{s.TitleMatch, s.ContentMatch, s.KeywordOverlap, s.DomainReliability}
}

// RelevanceResult scores how well a target page matches its citing text.
type RelevanceResult struct {
	URL             string    `json:"url"`
	ContentHash     string    `json:"content_hash"`
	Score           float64   `json:"relevance_score"`
	SubScores       SubScores `json:"sub_scores"`
	PotentialIssues []string  `json:"potential_issues,omitempty"`
	SuggestedAction Action    `json:"suggested_action"`
	Confidence      float64   `json:"confidence"`
}

// Thresholds split relevance scores into actions.
type Thresholds struct {
	Keep    float64 `json:"keep"`
	Replace float64 `json:"replace"`
}

// DefaultThresholds keeps at 70 and above, replaces below 40.
func DefaultThresholds() Thresholds {
	return Thresholds{Keep: 70, Replace: 40}
}

// Action maps a score to its band. Scores equal to Keep are kept, scores
// equal to Replace are reviewed.
func (t Thresholds) Action(score float64) Action {
	switch {
	case score >= t.Keep:
		return ActionKeep
	case score < t.Replace:
		return ActionReplace
	default:
		return ActionReview
	}
}
