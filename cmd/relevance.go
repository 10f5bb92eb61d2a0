package cmd

import (
	"github.com/spf13/cobra"

	"github.com/btraven00/linkmedic/internal/orchestrator"
)

// relevanceCmd represents the score-relevance command
var relevanceCmd = &cobra.Command{
	Use:   "score-relevance",
	Short: "Score whether each link still supports the text around it",
	Long: `Score-relevance compares the text around every link with the page it
points to: title match, content similarity, keyword overlap and the
reliability of the domain. Scores of 70 and above are kept, scores below 40
should be replaced, anything between needs review. Bands are configurable
with relevance.keep_threshold and relevance.replace_threshold.

Examples:
  linkmedic score-relevance --corpus docs
  linkmedic score-relevance -o csv > relevance.csv`,
	Args: cobra.NoArgs,
	RunE: runScoreRelevance,
}

func init() {
	rootCmd.AddCommand(relevanceCmd)
}

func runScoreRelevance(cmd *cobra.Command, _ []string) error {
	sess, err := newSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	stop := showProgress(cmd.Context(), sess.engine)
	s, err := sess.pipeline.Run(cmd.Context(), orchestrator.StageScore)
	stop()
	if err != nil {
		return err
	}

	return report(cmd, s, orchestrator.StageScore, nil)
}
