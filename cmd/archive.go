package cmd

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/btraven00/linkmedic/internal/archive"
	"github.com/btraven00/linkmedic/internal/artifacts"
	"github.com/btraven00/linkmedic/internal/orchestrator"
)

var findAlternatives bool

// archiveCmd represents the archive command
var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Preserve live links in the Wayback Machine or find snapshots of dead ones",
	Long: `Archive talks to the Internet Archive.

By default every reachable url is checked for a snapshot younger than
archive.max_age_days and captured when there is none, so the page survives
if it disappears later.

With --find-alternatives every broken url that has no other repair gets its
closest snapshot (or a fresh capture) as a low-confidence archive-snapshot
repair. These are kept across find-repairs runs and applied by
apply-repairs only at a threshold of 60 or below.

An unreachable archive is a setup error (exit status 2).

Examples:
  linkmedic archive
  linkmedic archive --find-alternatives
  linkmedic archive --find-alternatives && linkmedic apply-repairs --dry-run --confidence-threshold 50`,
	Args: cobra.NoArgs,
	RunE: runArchive,
}

func init() {
	rootCmd.AddCommand(archiveCmd)

	archiveCmd.Flags().BoolVar(&findAlternatives, "find-alternatives", false, "propose snapshots for broken urls instead of preserving live ones")
}

// archiveEntry is one url handled by the archive command.
type archiveEntry struct {
	URL        string    `json:"url"`
	Snapshot   string    `json:"snapshot,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Captured   bool      `json:"captured"`
	Confidence float64   `json:"confidence,omitempty"`
	Error      string    `json:"error,omitempty"`
}

func runArchive(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	client := archive.New(archive.Options{
		BaseURL:      cfg.Archive.BaseURL,
		SaveURL:      cfg.Archive.SaveURL,
		MaxAge:       time.Duration(cfg.Archive.MaxAgeDays) * 24 * time.Hour,
		Timeout:      2 * cfg.Timeout(),
		SaveInterval: cfg.RateLimitDelay,
		Logger:       logger,
	})
	if err := client.Reachable(ctx); err != nil {
		return err
	}

	sess, err := newSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	stop := showProgress(ctx, sess.engine)
	s, err := sess.pipeline.Run(ctx, orchestrator.StageApply)
	stop()
	if err != nil {
		return err
	}

	entries := []archiveEntry{}
	if findAlternatives {
		found, err := sess.pipeline.ArchiveFallbacks(ctx, s, client)
		if err != nil {
			return err
		}
		for _, c := range found {
			entries = append(entries, archiveEntry{
				URL:        c.OriginalURL,
				Snapshot:   c.Replacement(),
				Confidence: c.Confidence,
			})
		}
	} else {
		entries, err = preserve(ctx, client, s)
		if err != nil {
			return err
		}
	}

	if err := outputArchive(cmd.OutOrStdout(), entries); err != nil {
		return fmt.Errorf("failed to output result: %w", err)
	}

	for _, e := range entries {
		if e.Error != "" {
			return ErrProcessing
		}
	}

	return nil
}

// preserve makes sure every reachable url has a recent snapshot.
func preserve(ctx context.Context, client *archive.Client, s *orchestrator.State) ([]archiveEntry, error) {
	entries := []archiveEntry{}
	for _, u := range s.URLs() {
		r := s.Validation[u]
		if r == nil || !r.Reachable() {
			continue
		}

		snap, captured, err := client.Ensure(ctx, u)
		if err != nil {
			if ctx.Err() != nil {
				return entries, ctx.Err()
			}
			logger.Warn("failed to preserve url", zap.String("url", u), zap.Error(err))
			entries = append(entries, archiveEntry{URL: u, Error: err.Error()})
			continue
		}

		entries = append(entries, archiveEntry{
			URL:       u,
			Snapshot:  snap.URL,
			Timestamp: snap.Timestamp,
			Captured:  captured,
		})
	}

	return entries, nil
}

func outputArchive(w io.Writer, entries []archiveEntry) error {
	switch output {
	case "json":
		return artifacts.NewJSONEncoder(w).Encode(entries)
	case "csv":
		writer := csv.NewWriter(w)
		if err := writer.Write([]string{"url", "snapshot", "timestamp", "captured", "confidence", "error"}); err != nil {
			return err
		}
		for _, e := range entries {
			ts := ""
			if !e.Timestamp.IsZero() {
				ts = e.Timestamp.Format(time.RFC3339)
			}
			row := []string{e.URL, e.Snapshot, ts, strconv.FormatBool(e.Captured), strconv.FormatFloat(e.Confidence, 'f', 0, 64), e.Error}
			if err := writer.Write(row); err != nil {
				return err
			}
		}
		writer.Flush()
		return writer.Error()
	}

	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "🏛️  Nothing to archive.")
		return err
	}

	var errs []error
	printf := func(format string, args ...any) {
		_, err := fmt.Fprintf(w, format, args...)
		errs = append(errs, err)
	}

	printf("🏛️  Archive (%d urls):\n", len(entries))
	for _, e := range entries {
		switch {
		case e.Error != "":
			printf("   ❌ %s\n      %s\n", e.URL, e.Error)
		case e.Captured:
			printf("   📸 %s\n      → %s (new capture)\n", e.URL, e.Snapshot)
		case e.Confidence > 0:
			printf("   🔧 %s\n      → %s (%.0f%%)\n", e.URL, e.Snapshot, e.Confidence)
		default:
			printf("   ✅ %s\n      → %s\n", e.URL, e.Snapshot)
		}
	}

	return errors.Join(errs...)
}
