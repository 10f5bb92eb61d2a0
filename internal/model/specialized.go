package model

// SpecializedResult is the outcome of a type-specific deep check.
type SpecializedResult struct {
	URL          string            `json:"url"`
	Kind         string            `json:"kind"`
	Validator    string            `json:"validator"`
	Valid        bool              `json:"valid"`
	Issues       []string          `json:"issues,omitempty"`
	Suggestions  []string          `json:"suggestions,omitempty"`
	SuggestedURL string            `json:"suggested_url,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// AddIssue records a problem.
func (r *SpecializedResult) AddIssue(issue string) {
	r.Issues = append(r.Issues, issue)
}

// Suggest records a suggestion and, when url is non-empty, the replacement it
// points at. The first suggested url wins.
func (r *SpecializedResult) Suggest(suggestion, url string) {
	r.Suggestions = append(r.Suggestions, suggestion)
	if url != "" && r.SuggestedURL == "" {
		r.SuggestedURL = url
	}
}

// SetMeta stores a non-empty metadata value.
func (r *SpecializedResult) SetMeta(key, value string) {
	if value == "" {
		return
	}
	if r.Metadata == nil {
		r.Metadata = make(map[string]string)
	}
	r.Metadata[key] = value
}
