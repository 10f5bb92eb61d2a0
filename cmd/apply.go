package cmd

import (
	"github.com/spf13/cobra"

	"github.com/btraven00/linkmedic/internal/orchestrator"
)

var dryRun bool

// applyCmd represents the apply-repairs command
var applyCmd = &cobra.Command{
	Use:   "apply-repairs",
	Short: "Rewrite links whose repair reaches the confidence threshold",
	Long: `Apply-repairs rewrites every link whose proposed repair has at least the
given confidence. Each document is backed up next to itself as
<name>.<YYYYMMDD-HHMMSS>.bak before it is rewritten, and only the recorded
line is touched. Repairs below the threshold are listed for manual review.

With --dry-run the full analysis runs and the would-be diff is printed, but
no document changes.

Examples:
  linkmedic apply-repairs --dry-run
  linkmedic apply-repairs --confidence-threshold 95
  linkmedic apply-repairs --confidence-threshold 85 -o json`,
	Args: cobra.NoArgs,
	RunE: runApplyRepairs,
}

func init() {
	rootCmd.AddCommand(applyCmd)

	applyCmd.Flags().Float64("confidence-threshold", 90, "minimum repair confidence (0-100) to apply")
	applyCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show the diff without changing any document")

	bindFlag("confidence_threshold", applyCmd.Flags().Lookup("confidence-threshold"))
}

func runApplyRepairs(cmd *cobra.Command, _ []string) error {
	sess, err := newSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	stop := showProgress(cmd.Context(), sess.engine)
	s, err := sess.pipeline.Run(cmd.Context(), orchestrator.StageApply)
	stop()
	if err != nil {
		return err
	}

	result, err := sess.pipeline.Apply(cmd.Context(), s, cfg.ConfidenceThreshold, dryRun)
	if err != nil {
		return err
	}

	return report(cmd, s, orchestrator.StageApply, result)
}
