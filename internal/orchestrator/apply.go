package orchestrator

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/btraven00/linkmedic/internal/metrics"
	"github.com/btraven00/linkmedic/internal/model"
)

// backupLayout is the timestamp in backup file names.
const backupLayout = "20060102-150405"

// Change is one rewritten line.
type Change struct {
	File        string         `json:"file"`
	Line        int            `json:"line"`
	Before      string         `json:"before"`
	After       string         `json:"after"`
	OriginalURL string         `json:"original_url"`
	Replacement string         `json:"replacement"`
	Strategy    model.Strategy `json:"strategy"`
	Confidence  float64        `json:"confidence"`
}

// Conflict is an accepted candidate that could not be applied.
type Conflict struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// ApplyResult reports what apply-repairs did, or would do in a dry run.
type ApplyResult struct {
	DryRun    bool       `json:"dry_run"`
	Threshold float64    `json:"confidence_threshold"`
	Accepted  int        `json:"accepted"`
	Changes   []Change   `json:"changes"`
	Backups   []string   `json:"backups,omitempty"`
	Conflicts []Conflict `json:"conflicts,omitempty"`
	Errors    []string   `json:"errors,omitempty"`
}

// edit replaces one url on one line.
type edit struct {
	line      int
	candidate model.RepairCandidate
}

// Apply rewrites every link whose candidate reaches threshold. Documents are
// handled one at a time: backup first, then an atomic rewrite. A failing
// document is reported and the rest are still processed. In a dry run
// nothing on disk changes.
func (p *Pipeline) Apply(ctx context.Context, s *State, threshold float64, dryRun bool) (*ApplyResult, error) {
	result := &ApplyResult{DryRun: dryRun, Threshold: threshold, Changes: []Change{}}

	accepted := make(map[string]model.RepairCandidate)
	for _, c := range s.Repairs {
		if c.Confidence >= threshold && c.Replacement() != "" {
			accepted[c.OriginalURL] = c
		}
	}
	result.Accepted = len(accepted)

	byFile := make(map[string][]edit)
	for _, l := range s.Links {
		c, ok := accepted[l.URL]
		if !ok {
			continue
		}
		if l.ReadOnly {
			result.Conflicts = append(result.Conflicts, Conflict{
				File: l.Location.File, Line: l.Location.Line, URL: l.URL,
				Reason: "document is converted from a binary format and is never rewritten",
			})
			continue
		}
		byFile[l.Location.File] = append(byFile[l.Location.File], edit{line: l.Location.Line, candidate: c})
	}

	files := make([]string, 0, len(byFile))
	for f := range byFile {
		files = append(files, f)
	}
	slices.Sort(files)

	now := time.Now()
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		changes, conflicts, err := p.applyFile(file, byFile[file], dryRun, now, result)
		result.Conflicts = append(result.Conflicts, conflicts...)
		if err != nil {
			p.Logger.Error("failed to rewrite document", zap.String("file", file), zap.Error(err))
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", file, err))
			continue
		}
		result.Changes = append(result.Changes, changes...)
	}

	if !dryRun {
		for _, c := range result.Changes {
			metrics.IncRepairApplied(string(c.Strategy))
		}
	}

	p.Logger.Info("applied repairs",
		zap.Bool("dry_run", dryRun),
		zap.Int("changes", len(result.Changes)),
		zap.Int("conflicts", len(result.Conflicts)),
		zap.Int("errors", len(result.Errors)))

	return result, nil
}

func (p *Pipeline) applyFile(rel string, edits []edit, dryRun bool, now time.Time, result *ApplyResult) ([]Change, []Conflict, error) {
	path := filepath.Join(p.Corpus.Root, filepath.FromSlash(rel))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	lines := strings.SplitAfter(string(data), "\n")
	slices.SortStableFunc(edits, func(a, b edit) int { return cmp.Compare(a.line, b.line) })

	var (
		changes   []Change
		conflicts []Conflict
	)
	for _, e := range edits {
		old := e.candidate.OriginalURL
		if e.line < 1 || e.line > len(lines) {
			conflicts = append(conflicts, Conflict{File: rel, Line: e.line, URL: old, Reason: "line no longer exists"})
			continue
		}

		before := lines[e.line-1]
		after, n := replaceURL(before, old, e.candidate.Replacement())
		if n == 0 {
			conflicts = append(conflicts, Conflict{File: rel, Line: e.line, URL: old, Reason: "url not found on the recorded line"})
			continue
		}
		lines[e.line-1] = after

		changes = append(changes, Change{
			File:        rel,
			Line:        e.line,
			Before:      strings.TrimRight(before, "\r\n"),
			After:       strings.TrimRight(after, "\r\n"),
			OriginalURL: old,
			Replacement: e.candidate.Replacement(),
			Strategy:    e.candidate.Strategy,
			Confidence:  e.candidate.Confidence,
		})
	}

	if len(changes) == 0 || dryRun {
		return changes, conflicts, nil
	}

	backup, err := backupFile(path, data, now)
	if err != nil {
		return nil, conflicts, fmt.Errorf("backup failed, document left unchanged: %w", err)
	}
	result.Backups = append(result.Backups, backup)

	if err := writeAtomic(path, []byte(strings.Join(lines, ""))); err != nil {
		return nil, conflicts, err
	}

	return changes, conflicts, nil
}

// replaceURL swaps every standalone occurrence of old in line. An occurrence
// that continues into a longer url is left alone.
func replaceURL(line, old, replacement string) (string, int) {
	var (
		b strings.Builder
		n int
	)

	rest := line
	for {
		i := strings.Index(rest, old)
		if i < 0 {
			b.WriteString(rest)
			break
		}

		end := i + len(old)
		if standalone(rest, i, end) {
			b.WriteString(rest[:i])
			b.WriteString(replacement)
			n++
		} else {
			b.WriteString(rest[:end])
		}
		rest = rest[end:]
	}

	return b.String(), n
}

func standalone(s string, start, end int) bool {
	if start > 0 && continuesURL(s[start-1]) {
		return false
	}
	if end < len(s) {
		next := s[end]
		if strings.IndexByte("/-_~%?#=&+@", next) >= 0 || isAlnum(next) {
			return false
		}
		// sentence punctuation is fine, a dot inside a longer host or path is not
		if (next == '.' || next == ':') && end+1 < len(s) && (isAlnum(s[end+1]) || s[end+1] == '/') {
			return false
		}
	}

	return true
}

func continuesURL(c byte) bool {
	return isAlnum(c) || strings.IndexByte("/.:-_~%", c) >= 0
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// backupFile copies the original content next to path as
// <name>.<YYYYMMDD-HHMMSS>.bak, never overwriting an earlier backup.
func backupFile(path string, data []byte, now time.Time) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}

	base := path + "." + now.Format(backupLayout)
	name := base + ".bak"
	for i := 1; ; i++ {
		f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
		if errors.Is(err, fs.ErrExist) {
			name = fmt.Sprintf("%s-%d.bak", base, i)
			continue
		}
		if err != nil {
			return "", err
		}

		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", err
		}

		return name, f.Close()
	}
}

// writeAtomic replaces path through a temp file in the same directory.
func writeAtomic(path string, data []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}

// WriteDiff renders the changes as a unified-style diff.
func (r *ApplyResult) WriteDiff(w io.Writer) error {
	file := ""
	for _, c := range r.Changes {
		if c.File != file {
			file = c.File
			if _, err := fmt.Fprintf(w, "--- a/%s\n+++ b/%s\n", file, file); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "@@ -%d +%d @@ %s %.0f%%\n-%s\n+%s\n",
			c.Line, c.Line, c.Strategy, c.Confidence, c.Before, c.After); err != nil {
			return err
		}
	}

	return nil
}
