package orchestrator

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/btraven00/linkmedic/internal/artifacts"
	"github.com/btraven00/linkmedic/internal/model"
)

// Render writes the report as human text, JSON or CSV.
func Render(w io.Writer, format string, r *Report) error {
	switch strings.ToLower(format) {
	case "json":
		return artifacts.NewJSONEncoder(w).Encode(r)
	case "csv":
		return renderCSV(w, r)
	case "human", "":
		return renderHuman(w, r)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

var statusEmoji = map[model.Status]string{
	model.StatusValid:    "✅",
	model.StatusRedirect: "↪️ ",
	model.StatusBroken:   "❌",
	model.StatusTimeout:  "⏱️ ",
	model.StatusError:    "💥",
}

var severityEmoji = map[Severity]string{
	SeverityCritical: "🔴",
	SeverityHigh:     "🟠",
	SeverityMedium:   "🟡",
	SeverityLow:      "⚪",
}

func renderHuman(w io.Writer, r *Report) error {
	p := &printer{w: w}
	s := r.Summary

	p.printf("📂 Corpus: %s (%s)\n", r.Corpus, r.Stage)
	p.printf("📄 Documents: %d | 🔗 Links: %d | 🌐 Unique urls: %d\n", s.Documents, s.TotalLinks, s.UniqueURLs)

	if len(s.ByStatus) > 0 {
		p.printf("\n📊 Status:\n")
		for _, st := range []model.Status{model.StatusValid, model.StatusRedirect, model.StatusBroken, model.StatusTimeout, model.StatusError} {
			if n := s.ByStatus[st]; n > 0 {
				p.printf("   %s %s: %d\n", statusEmoji[st], st, n)
			}
		}
		if len(s.ByStatusCode) > 0 {
			codes := make([]int, 0, len(s.ByStatusCode))
			for c := range s.ByStatusCode {
				codes = append(codes, c)
			}
			slices.Sort(codes)
			parts := make([]string, 0, len(codes))
			for _, c := range codes {
				parts = append(parts, fmt.Sprintf("%d×%d", c, s.ByStatusCode[c]))
			}
			p.printf("   HTTP: %s\n", strings.Join(parts, ", "))
		}
		if s.BrowserRender > 0 {
			p.printf("   🖥️  rendered in a browser: %d\n", s.BrowserRender)
		}
	}

	if len(s.ProblemHosts) > 0 {
		p.printf("\n🚩 Problem domains:\n")
		for _, c := range s.ProblemHosts {
			p.printf("   %s: %d\n", c.Name, c.Count)
		}
	}
	if len(s.ProblemFiles) > 0 {
		p.printf("\n📝 Problem files:\n")
		for _, c := range s.ProblemFiles {
			p.printf("   %s: %d\n", c.Name, c.Count)
		}
	}

	if len(s.ByAction) > 0 {
		p.printf("\n🧠 Relevance: keep %d | review %d | replace %d\n",
			s.ByAction[model.ActionKeep], s.ByAction[model.ActionReview], s.ByAction[model.ActionReplace])
	}

	if len(s.ByStrategy) > 0 {
		p.printf("\n🔧 Repair candidates:\n")
		strategies := make([]string, 0, len(s.ByStrategy))
		for st := range s.ByStrategy {
			strategies = append(strategies, string(st))
		}
		slices.Sort(strategies)
		for _, st := range strategies {
			p.printf("   %s: %d\n", st, s.ByStrategy[model.Strategy(st)])
		}
	}

	if a := r.Apply; a != nil {
		verb := "Applied"
		if a.DryRun {
			verb = "Would apply"
		}
		p.printf("\n✏️  %s %d change(s) from %d candidate(s) at >= %.0f%% confidence\n", verb, len(a.Changes), a.Accepted, a.Threshold)
		if a.DryRun && len(a.Changes) > 0 {
			p.printf("\n")
			if err := a.WriteDiff(w); err != nil {
				return err
			}
		}
		for _, b := range a.Backups {
			p.printf("   💾 %s\n", b)
		}
		for _, c := range a.Conflicts {
			p.printf("   ⚠️  %s:%d %s: %s\n", c.File, c.Line, c.URL, c.Reason)
		}
	}

	if len(r.Review) > 0 {
		p.printf("\n👀 Manual review (%d):\n", len(r.Review))
		for _, item := range r.Review {
			p.printf("   %s [%s] %s\n", severityEmoji[item.Severity], item.Severity, item.URL)
			for _, reason := range item.Reasons {
				p.printf("      • %s\n", reason)
			}
			if item.Candidate != nil {
				p.printf("      → %s (%s, %.0f%%)\n", item.Candidate.Replacement(), item.Candidate.Strategy, item.Candidate.Confidence)
			}
			for _, loc := range item.Locations {
				p.printf("      %s:%d\n", loc.File, loc.Line)
			}
		}
	}

	if len(r.Plan) > 0 {
		p.printf("\n📋 Action plan:\n")
		for _, step := range r.Plan {
			p.printf("   [%s] %d candidate(s): %s\n      $ %s\n", step.Tier, step.Candidates, step.Description, step.Command)
		}
	}

	if len(s.Errors) > 0 {
		p.printf("\n❌ Errors:\n")
		for _, e := range s.Errors {
			p.printf("   • %s\n", e)
		}
	}

	p.printf("\n🏁 %s\n", s.Outcome)

	return p.err
}

// renderCSV writes one row per distinct url.
func renderCSV(w io.Writer, r *Report) error {
	writer := csv.NewWriter(w)

	header := []string{
		"url", "files", "status", "status_code", "issue_type", "final_url",
		"relevance_score", "suggested_action", "replacement", "strategy", "confidence", "review_severity",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	s := r.state
	if s == nil {
		writer.Flush()
		return writer.Error()
	}

	files := make(map[string][]string)
	for _, l := range s.Links {
		ref := l.Location.File + ":" + strconv.Itoa(l.Location.Line)
		files[l.URL] = append(files[l.URL], ref)
	}
	scores := make(map[string]model.RelevanceResult, len(s.Relevance))
	for _, rel := range s.Relevance {
		scores[rel.URL] = rel
	}
	candidates := make(map[string]model.RepairCandidate, len(s.Repairs))
	for _, c := range s.Repairs {
		candidates[c.OriginalURL] = c
	}
	severity := make(map[string]Severity, len(r.Review))
	for _, item := range r.Review {
		severity[item.URL] = item.Severity
	}

	for _, u := range s.URLs() {
		row := []string{u, strings.Join(files[u], " ")}

		if v := s.Validation[u]; v != nil {
			row = append(row, string(v.Status), strconv.Itoa(v.StatusCode), string(v.IssueType), v.FinalURL)
		} else {
			row = append(row, "", "", "", "")
		}

		if rel, ok := scores[u]; ok {
			row = append(row, strconv.FormatFloat(rel.Score, 'f', 1, 64), string(rel.SuggestedAction))
		} else {
			row = append(row, "", "")
		}

		if c, ok := candidates[u]; ok {
			row = append(row, c.Replacement(), string(c.Strategy), strconv.FormatFloat(c.Confidence, 'f', 0, 64))
		} else {
			row = append(row, "", "", "")
		}

		row = append(row, string(severity[u]))

		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()

	return writer.Error()
}

// printer remembers the first write error so rendering code stays linear.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
