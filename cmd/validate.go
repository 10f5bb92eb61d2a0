package cmd

import (
	"github.com/spf13/cobra"

	"github.com/btraven00/linkmedic/internal/orchestrator"
)

var resumeValidation bool

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check every extracted url over the network",
	Long: `Validate resolves each distinct url once. Urls on the same host are
checked one after another with a politeness delay; hosts are checked in
parallel. Pages that only render client-side are loaded in a headless
browser. Code hosting, video, documentation, social and image urls also get
a deeper type-specific check.

The command exits with status 1 when any url is broken, timed out or failed.

Examples:
  linkmedic validate --corpus docs
  linkmedic validate --resume          # keep earlier results, check new urls only
  linkmedic validate --fresh -o csv    # re-extract first`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&resumeValidation, "resume", false, "reuse results from an earlier or interrupted run")
}

func runValidate(cmd *cobra.Command, _ []string) error {
	sess, err := newSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	sess.pipeline.Resume = resumeValidation

	stop := showProgress(cmd.Context(), sess.engine)
	s, err := sess.pipeline.Run(cmd.Context(), orchestrator.StageValidate)
	stop()
	if err != nil {
		return err
	}

	if err := report(cmd, s, orchestrator.StageValidate, nil); err != nil {
		return err
	}

	for _, r := range s.Validation {
		if !r.Reachable() {
			return ErrProcessing
		}
	}

	return nil
}
