// Package orchestrator runs the link pipeline over a corpus, persists each
// stage's artifacts and applies accepted repairs to the documents.
package orchestrator

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/btraven00/linkmedic/internal/artifacts"
	"github.com/btraven00/linkmedic/internal/extractor"
	"github.com/btraven00/linkmedic/internal/model"
	"github.com/btraven00/linkmedic/internal/relevance"
	"github.com/btraven00/linkmedic/internal/repair"
)

// Stage is one step of the pipeline.
type Stage int

const (
	StageExtract Stage = iota
	StageValidate
	StageScore
	StageRepair
	StageApply
)

func (s Stage) String() string {
	switch s {
	case StageExtract:
		return "extract"
	case StageValidate:
		return "validate"
	case StageScore:
		return "score-relevance"
	case StageRepair:
		return "find-repairs"
	case StageApply:
		return "apply-repairs"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Validator resolves urls over the network.
type Validator interface {
	ValidateAll(ctx context.Context, urls []string) (map[string]*model.ValidationResult, error)
	Prime(results []*model.ValidationResult)
}

// SpecializedChecker runs the type-specific validators.
type SpecializedChecker interface {
	ValidateAll(ctx context.Context, urls []string) (map[string]*model.SpecializedResult, error)
}

// State is everything the pipeline knows after a run.
type State struct {
	Documents   int
	Skipped     []extractor.Skipped
	Links       []model.LinkContext
	Validation  map[string]*model.ValidationResult
	Specialized map[string]*model.SpecializedResult
	Relevance   []model.RelevanceResult
	Repairs     []model.RepairCandidate
	// Loaded lists the stages read back from artifacts instead of run.
	Loaded []Stage
}

// URLs returns the distinct urls in order of first appearance.
func (s *State) URLs() []string {
	seen := make(map[string]bool, len(s.Links))
	var urls []string
	for _, l := range s.Links {
		if !seen[l.URL] {
			seen[l.URL] = true
			urls = append(urls, l.URL)
		}
	}

	return urls
}

// Pipeline wires the stages over one corpus.
type Pipeline struct {
	Corpus      *extractor.Corpus
	Extractor   *extractor.Extractor
	Validator   Validator
	Specialized SpecializedChecker
	Scorer      *relevance.Scorer
	Repairer    *repair.Engine
	Store       *artifacts.Store
	// Fresh recomputes upstream stages instead of loading their artifacts.
	Fresh bool
	// Resume reuses earlier validation results and checks only new urls.
	Resume bool
	Logger *zap.Logger
}

// Run brings the pipeline up to target. The target stage is always run;
// stages before it are loaded from artifacts when present, unless Fresh is
// set. Once a stage is recomputed every later stage is too.
func (p *Pipeline) Run(ctx context.Context, target Stage) (*State, error) {
	s := &State{}
	recomputed := false

	for stage := StageExtract; stage <= target && stage < StageApply; stage++ {
		if stage < target && !p.Fresh && !recomputed {
			found, err := p.load(stage, s)
			if err != nil {
				return s, err
			}
			if found {
				p.Logger.Debug("loaded artifact", zap.Stringer("stage", stage))
				s.Loaded = append(s.Loaded, stage)
				continue
			}
		}

		recomputed = true
		if err := p.run(ctx, stage, s); err != nil {
			return s, fmt.Errorf("%s: %w", stage, err)
		}
	}

	return s, nil
}

func (p *Pipeline) load(stage Stage, s *State) (bool, error) {
	switch stage {
	case StageExtract:
		found, err := p.Store.Load(artifacts.Links, &s.Links)
		if found && err == nil {
			s.Documents = countDocuments(s.Links)
		}
		return found, err

	case StageValidate:
		var results []*model.ValidationResult
		found, err := p.Store.Load(artifacts.Validation, &results)
		if !found || err != nil {
			return found, err
		}
		s.Validation = indexValidation(results)

		var specialized []*model.SpecializedResult
		if _, err := p.Store.Load(artifacts.Specialized, &specialized); err != nil {
			return true, err
		}
		s.Specialized = indexSpecialized(specialized)
		return true, nil

	case StageScore:
		return p.Store.Load(artifacts.Relevance, &s.Relevance)

	case StageRepair:
		return p.Store.Load(artifacts.Repairs, &s.Repairs)
	}

	return false, nil
}

func (p *Pipeline) run(ctx context.Context, stage Stage, s *State) error {
	switch stage {
	case StageExtract:
		return p.extract(ctx, s)
	case StageValidate:
		return p.validate(ctx, s)
	case StageScore:
		return p.score(s)
	case StageRepair:
		return p.findRepairs(s)
	}

	return nil
}

func (p *Pipeline) extract(ctx context.Context, s *State) error {
	scan, err := p.Corpus.Scan(ctx, p.Extractor, p.Logger)
	if err != nil {
		return err
	}

	s.Documents = scan.Documents
	s.Skipped = scan.Skipped
	s.Links = scan.Links
	if s.Links == nil {
		s.Links = []model.LinkContext{}
	}

	p.Logger.Info("extracted links",
		zap.Int("documents", s.Documents),
		zap.Int("links", len(s.Links)),
		zap.Int("skipped", len(s.Skipped)))

	return p.Store.Save(artifacts.Links, s.Links)
}

func (p *Pipeline) validate(ctx context.Context, s *State) error {
	if p.Resume {
		var previous []*model.ValidationResult
		if _, err := p.Store.Load(artifacts.Validation, &previous); err != nil {
			p.Logger.Warn("ignoring unreadable validation results", zap.Error(err))
		}
		p.Validator.Prime(previous)
	}

	urls := s.URLs()
	results, err := p.Validator.ValidateAll(ctx, urls)
	s.Validation = results
	if err != nil {
		// keep what finished so a resumed run can skip it
		if saveErr := p.Store.Save(artifacts.Validation, sortedValidation(results)); saveErr != nil {
			p.Logger.Warn("failed to save partial validation results", zap.Error(saveErr))
		}
		return err
	}

	if err := p.Store.Save(artifacts.Validation, sortedValidation(results)); err != nil {
		return err
	}

	s.Specialized = map[string]*model.SpecializedResult{}
	if p.Specialized != nil {
		specialized, err := p.Specialized.ValidateAll(ctx, urls)
		if err != nil {
			return err
		}
		s.Specialized = specialized
	}

	p.Logger.Info("validated urls",
		zap.Int("urls", len(results)),
		zap.Int("specialized", len(s.Specialized)))

	return p.Store.Save(artifacts.Specialized, sortedSpecialized(s.Specialized))
}

func (p *Pipeline) score(s *State) error {
	pairs := make([]relevance.Pair, 0, len(s.Links))
	for _, l := range s.Links {
		pairs = append(pairs, relevance.Pair{Link: l, Result: s.Validation[l.URL]})
	}

	s.Relevance = p.Scorer.ScoreAll(pairs)
	if s.Relevance == nil {
		s.Relevance = []model.RelevanceResult{}
	}

	return p.Store.Save(artifacts.Relevance, s.Relevance)
}

func (p *Pipeline) findRepairs(s *State) error {
	byURL := make(map[string]*model.RelevanceResult, len(s.Relevance))
	for i := range s.Relevance {
		byURL[s.Relevance[i].URL] = &s.Relevance[i]
	}

	urls := s.URLs()
	inputs := make([]repair.Input, 0, len(urls))
	for _, u := range urls {
		inputs = append(inputs, repair.Input{
			URL:         u,
			Validation:  s.Validation[u],
			Specialized: s.Specialized[u],
			Relevance:   byURL[u],
		})
	}

	candidates := p.Repairer.FindAll(inputs)

	// archive snapshots come from the archive command and survive re-runs
	var previous []model.RepairCandidate
	if _, err := p.Store.Load(artifacts.Repairs, &previous); err != nil {
		p.Logger.Warn("ignoring unreadable repairs", zap.Error(err))
	}
	current := make(map[string]bool, len(urls))
	for _, u := range urls {
		current[u] = true
	}
	var archived []model.RepairCandidate
	for _, c := range previous {
		if c.Strategy == model.StrategyArchiveSnapshot && current[c.OriginalURL] {
			archived = append(archived, c)
		}
	}

	s.Repairs = repair.Merge(candidates, archived)
	p.Logger.Info("found repair candidates", zap.Int("candidates", len(s.Repairs)))

	return p.Store.Save(artifacts.Repairs, s.Repairs)
}

// Archiver finds and requests archived copies of urls.
type Archiver interface {
	Candidate(ctx context.Context, rawURL string) (model.RepairCandidate, bool, error)
}

// ArchiveFallbacks looks up archive snapshots for urls that need repair and
// have no other candidate, merges them into the state and saves the repairs.
// Lookup failures for single urls are logged and skipped.
func (p *Pipeline) ArchiveFallbacks(ctx context.Context, s *State, a Archiver) ([]model.RepairCandidate, error) {
	have := make(map[string]bool, len(s.Repairs))
	for _, c := range s.Repairs {
		have[c.OriginalURL] = true
	}

	var found []model.RepairCandidate
	for _, u := range s.URLs() {
		v := s.Validation[u]
		if have[u] || v == nil || v.Reachable() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return found, err
		}

		c, ok, err := a.Candidate(ctx, u)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return found, err
			}
			p.Logger.Warn("archive lookup failed", zap.String("url", u), zap.Error(err))
			continue
		}
		if ok {
			found = append(found, c)
		}
	}

	s.Repairs = repair.Merge(s.Repairs, found)

	return found, p.Store.Save(artifacts.Repairs, s.Repairs)
}

func countDocuments(links []model.LinkContext) int {
	files := make(map[string]bool)
	for _, l := range links {
		files[l.Location.File] = true
	}

	return len(files)
}

func indexValidation(results []*model.ValidationResult) map[string]*model.ValidationResult {
	m := make(map[string]*model.ValidationResult, len(results))
	for _, r := range results {
		m[r.URL] = r
	}

	return m
}

func indexSpecialized(results []*model.SpecializedResult) map[string]*model.SpecializedResult {
	m := make(map[string]*model.SpecializedResult, len(results))
	for _, r := range results {
		m[r.URL] = r
	}

	return m
}

func sortedValidation(m map[string]*model.ValidationResult) []*model.ValidationResult {
	out := make([]*model.ValidationResult, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b *model.ValidationResult) int { return cmp.Compare(a.URL, b.URL) })

	return out
}

func sortedSpecialized(m map[string]*model.SpecializedResult) []*model.SpecializedResult {
	out := make([]*model.SpecializedResult, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b *model.SpecializedResult) int { return cmp.Compare(a.URL, b.URL) })

	return out
}
