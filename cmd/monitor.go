package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/btraven00/linkmedic/internal/artifacts"
	"github.com/btraven00/linkmedic/internal/model"
	"github.com/btraven00/linkmedic/internal/monitor"
	"github.com/btraven00/linkmedic/internal/orchestrator"
)

var (
	monitorOnce bool
	watchCorpus bool
	metricsAddr string
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Re-check the corpus urls on an interval and alert on state changes",
	Long: `Monitor keeps a health record per url across runs. A url that fails a
check is degraded; after monitor.failure_threshold consecutive failures
(default 3) it is broken. A reachable but slow url is degraded as well.

Every state change raises an alert: critical for broken, warning for
degraded, info on recovery. Alerts go to the log and, when
alert_sink_endpoint is set, are POSTed there as JSON. Delivery never holds
up the next pass.

Only one monitor may use a health store at a time.

Examples:
  linkmedic monitor --once
  linkmedic monitor --interval 30 --watch
  linkmedic monitor --metrics-addr :9090     # /metrics, /healthz, /api/links, /api/alerts`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().BoolVar(&monitorOnce, "once", false, "run a single pass and exit")
	monitorCmd.Flags().Int("interval", 60, "minutes between passes")
	monitorCmd.Flags().BoolVar(&watchCorpus, "watch", false, "re-extract urls when documents change")
	monitorCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve metrics and health records on this address")
	monitorCmd.MarkFlagsMutuallyExclusive("once", "interval")

	bindFlag("monitor.interval_minutes", monitorCmd.Flags().Lookup("interval"))
}

func openStore(ctx context.Context) (monitor.Store, error) {
	if cfg.Monitor.Store == "redis" {
		return monitor.OpenRedisStore(ctx, cfg.Monitor.RedisAddr, cfg.Monitor.RedisKey)
	}

	return monitor.OpenFileStore(cfg.Monitor.StorePath)
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	sess, err := newSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close health store", zap.Error(err))
		}
	}()

	sinks := []monitor.Sink{monitor.LogSink{Logger: logger.Named("alerts")}}
	if cfg.AlertSinkEndpoint != "" {
		sinks = append(sinks, monitor.NewWebhookSink(cfg.AlertSinkEndpoint))
	}
	dispatcher := monitor.NewDispatcher(logger, sinks...)
	defer dispatcher.Close()

	policy := monitor.Policy{
		FailureThreshold: cfg.Monitor.FailureThreshold,
		SlowThreshold:    cfg.Monitor.SlowThreshold,
	}
	mon, err := monitor.New(ctx, sess.engine, store, dispatcher, policy, logger.Named("monitor"))
	if err != nil {
		return err
	}

	// the url set always comes from the documents as they are now
	source := func(ctx context.Context) ([]string, error) {
		s, err := sess.pipeline.Run(ctx, orchestrator.StageExtract)
		if err != nil {
			return nil, err
		}
		return s.URLs(), nil
	}

	if monitorOnce {
		urls, err := source(ctx)
		if err != nil {
			return err
		}
		pass, err := mon.Pass(ctx, urls)
		if err != nil {
			return err
		}
		if err := outputPass(cmd.OutOrStdout(), pass); err != nil {
			return fmt.Errorf("failed to output result: %w", err)
		}
		if pass.Counts[model.HealthBroken] > 0 {
			return ErrProcessing
		}
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)

	opts := monitor.RunOptions{
		Interval: cfg.MonitorInterval(),
		Source:   source,
		OnPass: func(pass *monitor.PassResult) {
			if err := outputPass(cmd.OutOrStdout(), pass); err != nil {
				logger.Warn("failed to output pass", zap.Error(err))
			}
		},
	}

	if watchCorpus {
		w, err := monitor.NewWatcher(cfg.Corpus, sess.pipeline.Corpus.Matches, logger.Named("watch"))
		if err != nil {
			return fmt.Errorf("failed to watch corpus: %w", err)
		}
		defer w.Close()
		w.Start(ctx)
		opts.Watch = w
	}

	if metricsAddr != "" {
		g.Go(func() error {
			return monitor.Serve(ctx, metricsAddr, monitor.Handler(mon), logger)
		})
	}

	logger.Info("monitoring",
		zap.Duration("interval", opts.Interval),
		zap.Bool("watch", watchCorpus),
		zap.String("store", cfg.Monitor.Store))

	g.Go(func() error {
		return mon.Run(ctx, opts)
	})

	return g.Wait()
}

var healthEmoji = map[model.HealthState]string{
	model.HealthUnknown:  "❔",
	model.HealthHealthy:  "✅",
	model.HealthDegraded: "⚠️ ",
	model.HealthBroken:   "❌",
}

var alertEmoji = map[model.Severity]string{
	model.SeverityCritical: "🔴",
	model.SeverityWarning:  "🟡",
	model.SeverityInfo:     "🟢",
}

func outputPass(w io.Writer, pass *monitor.PassResult) error {
	switch output {
	case "json":
		return artifacts.NewJSONEncoder(w).Encode(pass)
	case "csv":
		return outputPassCSV(w, pass)
	}

	fmt.Fprintf(w, "🩺 %s: checked %d | %s healthy %d | %s degraded %d | %s broken %d\n",
		pass.Started.Format(time.DateTime), pass.Checked,
		healthEmoji[model.HealthHealthy], pass.Counts[model.HealthHealthy],
		healthEmoji[model.HealthDegraded], pass.Counts[model.HealthDegraded],
		healthEmoji[model.HealthBroken], pass.Counts[model.HealthBroken])

	for _, a := range pass.Alerts {
		fmt.Fprintf(w, "   %s [%s] %s: %s → %s, %s\n",
			alertEmoji[a.Severity], a.Severity, a.URL, a.PreviousState, a.State, a.Message)
	}

	return nil
}

func outputPassCSV(w io.Writer, pass *monitor.PassResult) error {
	writer := csv.NewWriter(w)

	header := []string{"url", "status", "consecutive_failures", "last_check", "response_ms", "last_status_code", "last_issue_type"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, r := range pass.Records {
		row := []string{
			r.URL,
			string(r.Status),
			strconv.Itoa(r.ConsecutiveFailureCount),
			r.LastCheck.Format(time.RFC3339),
			strconv.FormatInt(r.ResponseTime.Milliseconds(), 10),
			strconv.Itoa(r.LastStatusCode),
			string(r.LastIssueType),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()

	return writer.Error()
}
