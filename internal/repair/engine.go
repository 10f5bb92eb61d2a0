// Package repair proposes replacements for problematic urls. Proposals are
// suggestions; applying them is the orchestrator's job.
package repair

import (
	"cmp"
	"slices"

	"go.uber.org/zap"

	"github.com/btraven00/linkmedic/internal/model"
)

// Input is everything known about one url.
type Input struct {
	URL         string
	Validation  *model.ValidationResult
	Specialized *model.SpecializedResult
	Relevance   *model.RelevanceResult
}

// Engine synthesizes repair candidates.
type Engine struct {
	logger *zap.Logger
}

// New creates a repair engine.
func New(logger *zap.Logger) *Engine {
	return &Engine{logger: logger.Named("repair")}
}

// Find returns the single active candidate for in, if any. Syntactic cleanup
// is tried first and short-circuits the search; reconstruction runs only for
// urls that are broken, redirected, irrelevant or flagged by a specialized
// check.
func (e *Engine) Find(in Input) (model.RepairCandidate, bool) {
	if c, ok := cleanup(in.URL, healthy(in)); ok {
		e.logger.Debug("cleanup candidate", zap.String("url", in.URL), zap.String("fixed_url", c.FixedURL))
		return c, true
	}

	if !NeedsRepair(in) {
		return model.RepairCandidate{}, false
	}

	c, ok := reconstruct(in)
	if ok {
		e.logger.Debug("reconstruction candidate",
			zap.String("url", in.URL),
			zap.String("strategy", string(c.Strategy)),
			zap.String("alternative_url", c.AlternativeURL))
	}

	return c, ok
}

// FindAll returns at most one candidate per distinct url, sorted by url.
func (e *Engine) FindAll(inputs []Input) []model.RepairCandidate {
	best := make(map[string]model.RepairCandidate)
	for _, in := range inputs {
		c, ok := e.Find(in)
		if !ok {
			continue
		}
		if prev, seen := best[in.URL]; seen && !c.Better(prev) {
			continue
		}
		best[in.URL] = c
	}

	out := make([]model.RepairCandidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b model.RepairCandidate) int {
		return cmp.Compare(a.OriginalURL, b.OriginalURL)
	})

	return out
}

// Merge adds fallback candidates (archive snapshots) for urls that have no
// candidate yet or only a weaker one.
func Merge(candidates, fallbacks []model.RepairCandidate) []model.RepairCandidate {
	index := make(map[string]int, len(candidates))
	for i, c := range candidates {
		index[c.OriginalURL] = i
	}

	out := slices.Clone(candidates)
	for _, f := range fallbacks {
		i, ok := index[f.OriginalURL]
		switch {
		case !ok:
			index[f.OriginalURL] = len(out)
			out = append(out, f)
		case f.Better(out[i]):
			out[i] = f
		}
	}
	slices.SortFunc(out, func(a, b model.RepairCandidate) int {
		return cmp.Compare(a.OriginalURL, b.OriginalURL)
	})

	return out
}

// NeedsRepair reports whether a url warrants looking for an alternative.
func NeedsRepair(in Input) bool {
	if v := in.Validation; v != nil && (!v.Reachable() || v.Status == model.StatusRedirect) {
		return true
	}
	if in.Relevance != nil && in.Relevance.SuggestedAction == model.ActionReplace {
		return true
	}
	if in.Specialized != nil && (!in.Specialized.Valid || in.Specialized.SuggestedURL != "") {
		return true
	}

	return false
}

func healthy(in Input) bool {
	return in.Validation == nil || in.Validation.Status == model.StatusValid
}
