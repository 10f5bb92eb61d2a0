package model

import (
	"testing"
)

func TestContentHash(t *testing.T) {
	a := ContentHash("docs/a.md", 3, "https://example.com")
	if a != ContentHash("docs/a.md", 3, "https://example.com") {
		t.Error("ContentHash is not deterministic")
	}
	if len(a) != 32 {
		t.Errorf("Expected 32 hex characters, got %d", len(a))
	}

	others := []string{
		ContentHash("docs/a.md", 4, "https://example.com"),
		ContentHash("docs/b.md", 3, "https://example.com"),
		ContentHash("docs/a.md", 3, "https://example.org"),
	}
	for i, o := range others {
		if o == a {
			t.Errorf("variant %d hashes the same as the original", i)
		}
	}
}

func TestThresholdsAction(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		score float64
		want  Action
	}{
		{0, ActionReplace},
		{39.99, ActionReplace},
		{40, ActionReview},
		{55, ActionReview},
		{69.99, ActionReview},
		{70, ActionKeep},
		{100, ActionKeep},
	}

	for _, tt := range tests {
		if got := th.Action(tt.score); got != tt.want {
			t.Errorf("Action(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestSettle(t *testing.T) {
	tests := []struct {
		name  string
		in    ValidationResult
		issue IssueType
		final string
	}{
		{"valid clears issue", ValidationResult{Status: StatusValid, IssueType: IssuePaywall, FinalURL: "x"}, IssueNone, ""},
		{"redirect keeps final url", ValidationResult{Status: StatusRedirect, FinalURL: "https://b"}, IssueNone, "https://b"},
		{"broken without issue", ValidationResult{Status: StatusBroken}, IssueUnknown, ""},
		{"broken keeps issue", ValidationResult{Status: StatusBroken, IssueType: IssueHTTP4xx}, IssueHTTP4xx, ""},
		{"timeout", ValidationResult{Status: StatusTimeout}, IssueTimeout, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.in
			r.Settle()
			if r.IssueType != tt.issue {
				t.Errorf("issue = %q, want %q", r.IssueType, tt.issue)
			}
			if r.FinalURL != tt.final {
				t.Errorf("final url = %q, want %q", r.FinalURL, tt.final)
			}
		})
	}
}

func TestNewCandidate(t *testing.T) {
	fix := NewCandidate("a", "b", StrategyStripPunctuation, 97, "")
	if err := fix.Check(); err != nil {
		t.Fatal(err)
	}
	if fix.FixedURL != "b" || fix.AlternativeURL != "" {
		t.Errorf("Expected a fixed url only, got %+v", fix)
	}

	alt := NewCandidate("a", "c", StrategyArchiveSnapshot, 60, "")
	if err := alt.Check(); err != nil {
		t.Fatal(err)
	}
	if alt.AlternativeURL != "c" || alt.Replacement() != "c" {
		t.Errorf("Expected alternative c, got %+v", alt)
	}

	if err := (RepairCandidate{OriginalURL: "a"}).Check(); err == nil {
		t.Error("Expected an error for a candidate without a url")
	}
	if err := (RepairCandidate{OriginalURL: "a", FixedURL: "b", AlternativeURL: "c"}).Check(); err == nil {
		t.Error("Expected an error for a candidate with both urls")
	}
}
