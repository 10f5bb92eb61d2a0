package cmd

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/btraven00/linkmedic/internal/artifacts"
	"github.com/btraven00/linkmedic/internal/config"
	"github.com/btraven00/linkmedic/internal/extractor"
	"github.com/btraven00/linkmedic/internal/model"
	"github.com/btraven00/linkmedic/internal/orchestrator"
	"github.com/btraven00/linkmedic/internal/relevance"
	"github.com/btraven00/linkmedic/internal/repair"
	"github.com/btraven00/linkmedic/internal/validation"
	"github.com/btraven00/linkmedic/pkg/validators/domains/web"
)

// session is a pipeline plus the engine it owns.
type session struct {
	pipeline *orchestrator.Pipeline
	engine   *validation.Engine
}

// Close releases the HTTP session and the browser.
func (s *session) Close() {
	if err := s.engine.Close(); err != nil {
		logger.Warn("failed to release validation engine", zap.Error(err))
	}
}

// newSession wires every stage from the loaded configuration.
func newSession() (*session, error) {
	if info, err := os.Stat(cfg.Corpus); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", extractor.ErrCorpusMissing, cfg.Corpus)
	}

	var reliability *relevance.Reliability
	if cfg.Relevance.ReliabilityFile != "" {
		r, err := relevance.LoadReliability(cfg.Relevance.ReliabilityFile)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", config.ErrInvalid, err)
		}
		reliability = r
	}

	var renderer validation.Renderer
	if cfg.Browser.Enabled {
		renderer = validation.NewChromeRenderer(cfg.BrowserTimeout(), logger)
	}

	engine := validation.NewEngine(validation.Options{
		Timeout:         cfg.Timeout(),
		MaxRetries:      cfg.MaxRetries,
		BackoffBase:     cfg.BackoffBase,
		RetryHTTPErrors: cfg.RetryHTTPErrors,
		RateLimitDelay:  cfg.RateLimitDelay,
		Concurrency:     cfg.Concurrency,
		BrowserAlways:   cfg.Browser.Always,
	}, renderer, logger)

	p := &orchestrator.Pipeline{
		Corpus: &extractor.Corpus{
			Root:    cfg.Corpus,
			Include: cfg.Include,
			Exclude: cfg.Exclude,
		},
		Extractor: extractor.New(extractor.Options{ContextWindow: cfg.ContextWindow}),
		Validator: engine,
		Specialized: web.NewSet(web.Options{
			Timeout:     cfg.Timeout(),
			GitHubAPI:   cfg.GitHubAPI,
			GitHubToken: cfg.GitHubToken,
			Concurrency: cfg.Concurrency,
			Logger:      logger,
		}),
		Scorer:   relevance.NewScorer(reliability, model.Thresholds{Keep: cfg.Relevance.KeepThreshold, Replace: cfg.Relevance.ReplaceThreshold}, logger),
		Repairer: repair.New(logger),
		Store:    artifacts.NewStore(cfg.Workdir),
		Fresh:    fresh,
		Logger:   logger.Named("pipeline"),
	}

	return &session{pipeline: p, engine: engine}, nil
}

// showProgress prints a progress line for every finished url until the
// returned stop function is called.
func showProgress(ctx context.Context, engine *validation.Engine) (stop func()) {
	if quiet {
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	tracker := validation.NewProgressTracker()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case update := <-engine.Progress():
				tracker.Update(update)
				tracker.Print(os.Stderr)
			}
		}
	}()

	return func() {
		cancel()
		wg.Wait()
		if tracker.Summary().Done > 0 {
			fmt.Fprintln(os.Stderr)
		}
	}
}

// report renders a report for stage to the command output and turns
// processing errors into ErrProcessing.
func report(cmd *cobra.Command, s *orchestrator.State, stage orchestrator.Stage, apply *orchestrator.ApplyResult) error {
	r := orchestrator.BuildReport(s, stage, cfg.Corpus, cfg.ConfidenceThreshold, apply)
	if err := orchestrator.Render(cmd.OutOrStdout(), output, r); err != nil {
		return fmt.Errorf("failed to output report: %w", err)
	}

	if r.HasErrors() {
		return ErrProcessing
	}

	return nil
}
