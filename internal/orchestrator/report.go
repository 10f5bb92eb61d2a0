package orchestrator

import (
	"cmp"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/btraven00/linkmedic/internal/extractor"
	"github.com/btraven00/linkmedic/internal/model"
)

// topN bounds the problem domain and file rankings.
const topN = 10

// Severity ranks an entry of the manual-review queue.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

var severityOrder = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// Count is a ranked name.
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Summary is the headline of a run.
type Summary struct {
	Documents     int                     `json:"documents"`
	Skipped       []extractor.Skipped     `json:"skipped,omitempty"`
	TotalLinks    int                     `json:"total_links"`
	UniqueURLs    int                     `json:"unique_urls"`
	ByStatus      map[model.Status]int    `json:"by_status,omitempty"`
	ByStatusCode  map[int]int             `json:"by_status_code,omitempty"`
	ByIssue       map[model.IssueType]int `json:"by_issue,omitempty"`
	ByAction      map[model.Action]int    `json:"by_action,omitempty"`
	ByStrategy    map[model.Strategy]int  `json:"by_strategy,omitempty"`
	ProblemHosts  []Count                 `json:"top_problem_domains,omitempty"`
	ProblemFiles  []Count                 `json:"top_problem_files,omitempty"`
	Errors        []string                `json:"errors,omitempty"`
	Outcome       string                  `json:"outcome"`
	BrowserRender int                     `json:"browser_rendered"`
}

// ReviewItem is a url that needs a human decision.
type ReviewItem struct {
	URL       string                 `json:"url"`
	Severity  Severity               `json:"severity"`
	Reasons   []string               `json:"reasons"`
	Candidate *model.RepairCandidate `json:"candidate,omitempty"`
	Locations []model.Location       `json:"locations"`
}

// PlanStep maps a confidence tier to the invocation that handles it.
type PlanStep struct {
	Tier        string `json:"tier"`
	Candidates  int    `json:"candidates"`
	Command     string `json:"command"`
	Description string `json:"description"`
}

// Report is everything a command prints at the end of a run.
type Report struct {
	RunID       string       `json:"run_id"`
	GeneratedAt time.Time    `json:"generated_at"`
	Corpus      string       `json:"corpus"`
	Stage       string       `json:"stage"`
	Summary     Summary      `json:"summary"`
	Review      []ReviewItem `json:"review,omitempty"`
	Plan        []PlanStep   `json:"action_plan,omitempty"`
	Apply       *ApplyResult `json:"apply,omitempty"`

	state *State
}

// HasErrors reports whether any document or url failed to process.
func (r *Report) HasErrors() bool {
	return len(r.Summary.Errors) > 0
}

// BuildReport summarizes s. threshold is the confidence at which candidates
// are applied automatically; anything below goes to the review queue.
func BuildReport(s *State, stage Stage, corpus string, threshold float64, apply *ApplyResult) *Report {
	r := &Report{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Corpus:      corpus,
		Stage:       stage.String(),
		Apply:       apply,
		state:       s,
	}

	r.Summary = summarize(s, apply)
	if stage >= StageValidate {
		r.Review = reviewQueue(s, threshold)
	}
	if stage >= StageRepair {
		r.Plan = actionPlan(s.Repairs, threshold)
	}

	return r
}

func summarize(s *State, apply *ApplyResult) Summary {
	sum := Summary{
		Documents:  s.Documents,
		Skipped:    s.Skipped,
		TotalLinks: len(s.Links),
		UniqueURLs: len(s.URLs()),
	}

	for _, sk := range s.Skipped {
		sum.Errors = append(sum.Errors, fmt.Sprintf("skipped %s: %s", sk.Path, sk.Reason))
	}

	problemURL := make(map[string]bool)
	if len(s.Validation) > 0 {
		sum.ByStatus = make(map[model.Status]int)
		sum.ByStatusCode = make(map[int]int)
		sum.ByIssue = make(map[model.IssueType]int)

		hosts := make(map[string]int)
		for _, u := range s.URLs() {
			v := s.Validation[u]
			if v == nil {
				continue
			}
			sum.ByStatus[v.Status]++
			if v.StatusCode != 0 {
				sum.ByStatusCode[v.StatusCode]++
			}
			if v.IssueType != model.IssueNone {
				sum.ByIssue[v.IssueType]++
			}
			if v.RequiredBrowserRendering {
				sum.BrowserRender++
			}
			if v.Status == model.StatusError {
				sum.Errors = append(sum.Errors, fmt.Sprintf("%s: %s", u, v.Error))
			}
			if !v.Reachable() {
				problemURL[u] = true
				hosts[hostname(u)]++
			}
		}
		sum.ProblemHosts = ranked(hosts)

		files := make(map[string]int)
		for _, l := range s.Links {
			if problemURL[l.URL] {
				files[l.Location.File]++
			}
		}
		sum.ProblemFiles = ranked(files)
	}

	if len(s.Relevance) > 0 {
		sum.ByAction = make(map[model.Action]int)
		for _, r := range s.Relevance {
			sum.ByAction[r.SuggestedAction]++
		}
	}

	if len(s.Repairs) > 0 {
		sum.ByStrategy = make(map[model.Strategy]int)
		for _, c := range s.Repairs {
			sum.ByStrategy[c.Strategy]++
		}
	}

	if apply != nil {
		sum.Errors = append(sum.Errors, apply.Errors...)
	}

	sum.Outcome = "processed cleanly"
	if len(sum.Errors) > 0 {
		sum.Outcome = "processed with errors"
	}

	return sum
}

// reviewQueue collects the urls that need a human, most severe first.
func reviewQueue(s *State, threshold float64) []ReviewItem {
	candidates := make(map[string]model.RepairCandidate, len(s.Repairs))
	for _, c := range s.Repairs {
		candidates[c.OriginalURL] = c
	}
	scores := make(map[string]model.RelevanceResult, len(s.Relevance))
	for _, r := range s.Relevance {
		scores[r.URL] = r
	}
	locations := make(map[string][]model.Location)
	for _, l := range s.Links {
		locations[l.URL] = append(locations[l.URL], l.Location)
	}

	var items []ReviewItem
	for _, u := range s.URLs() {
		item := ReviewItem{URL: u, Locations: locations[u]}
		c, hasCandidate := candidates[u]
		if hasCandidate {
			item.Candidate = &c
		}
		belowThreshold := hasCandidate && c.Confidence < threshold

		v := s.Validation[u]
		broken := v != nil && !v.Reachable()
		if broken {
			item.Reasons = append(item.Reasons, brokenReason(v))
		}
		if belowThreshold {
			item.Reasons = append(item.Reasons, fmt.Sprintf("%s candidate at %.0f%% is below the %.0f%% threshold", c.Strategy, c.Confidence, threshold))
		}
		rel, scored := scores[u]
		if scored && rel.SuggestedAction != model.ActionKeep && !broken {
			item.Reasons = append(item.Reasons, fmt.Sprintf("relevance %.1f suggests %s", rel.Score, rel.SuggestedAction))
			item.Reasons = append(item.Reasons, rel.PotentialIssues...)
		}
		if sp := s.Specialized[u]; sp != nil && len(sp.Issues) > 0 {
			item.Reasons = append(item.Reasons, sp.Issues...)
		}

		switch {
		case broken && !hasCandidate:
			item.Severity = SeverityCritical
		case broken && belowThreshold:
			item.Severity = SeverityHigh
		case broken:
			// an accepted candidate will fix it
			continue
		case scored && rel.SuggestedAction != model.ActionKeep, belowThreshold:
			item.Severity = SeverityMedium
		case len(item.Reasons) > 0:
			item.Severity = SeverityLow
		default:
			continue
		}

		items = append(items, item)
	}

	slices.SortStableFunc(items, func(a, b ReviewItem) int {
		return cmp.Compare(slices.Index(severityOrder, a.Severity), slices.Index(severityOrder, b.Severity))
	})

	return items
}

func brokenReason(v *model.ValidationResult) string {
	switch {
	case v.StatusCode != 0:
		return fmt.Sprintf("%s (%s, HTTP %d)", v.Status, v.IssueType, v.StatusCode)
	case v.Error != "":
		return fmt.Sprintf("%s (%s): %s", v.Status, v.IssueType, v.Error)
	default:
		return fmt.Sprintf("%s (%s)", v.Status, v.IssueType)
	}
}

// actionPlan groups candidates into confidence tiers with the command that
// handles each.
func actionPlan(candidates []model.RepairCandidate, threshold float64) []PlanStep {
	var deterministic, strong, moderate, archived, weak int
	for _, c := range candidates {
		switch {
		case c.Strategy == model.StrategyArchiveSnapshot:
			archived++
		case c.Confidence >= 95:
			deterministic++
		case c.Confidence >= 85:
			strong++
		case c.Confidence >= 80:
			moderate++
		default:
			weak++
		}
	}

	var plan []PlanStep
	add := func(tier string, n int, command, description string) {
		if n > 0 {
			plan = append(plan, PlanStep{Tier: tier, Candidates: n, Command: command, Description: description})
		}
	}

	add(">=95", deterministic, "linkmedic apply-repairs --confidence-threshold 95",
		"syntactic corrections; safe to apply unattended")
	add("85-95", strong, "linkmedic apply-repairs --dry-run --confidence-threshold 85",
		"source-specific reconstructions; skim the diff, then apply")
	add("80-85", moderate, "linkmedic apply-repairs --dry-run --confidence-threshold 80",
		"redirects to other sites and repository roots; review each change")
	add("archive", archived, "linkmedic apply-repairs --dry-run --confidence-threshold 50",
		"archived copies of dead pages; use only when no live replacement exists")
	add("<80", weak, "linkmedic find-repairs --output json",
		"low-confidence proposals; fix by hand")

	if threshold < 95 && deterministic+strong+moderate > 0 {
		plan = append(plan, PlanStep{
			Tier:        "current",
			Candidates:  countAtLeast(candidates, threshold),
			Command:     fmt.Sprintf("linkmedic apply-repairs --confidence-threshold %.0f", threshold),
			Description: "everything at or above the configured threshold",
		})
	}

	return plan
}

func countAtLeast(candidates []model.RepairCandidate, threshold float64) int {
	n := 0
	for _, c := range candidates {
		if c.Confidence >= threshold {
			n++
		}
	}

	return n
}

func ranked(counts map[string]int) []Count {
	out := make([]Count, 0, len(counts))
	for name, n := range counts {
		out = append(out, Count{Name: name, Count: n})
	}
	slices.SortFunc(out, func(a, b Count) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	if len(out) > topN {
		out = out[:topN]
	}

	return out
}

func hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}

	return strings.ToLower(u.Hostname())
}
