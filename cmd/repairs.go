package cmd

import (
	"github.com/spf13/cobra"

	"github.com/btraven00/linkmedic/internal/orchestrator"
)

// repairsCmd represents the find-repairs command
var repairsCmd = &cobra.Command{
	Use:   "find-repairs",
	Short: "Propose replacements for broken and irrelevant links",
	Long: `Find-repairs proposes at most one replacement per url. Syntactic fixes
(stray punctuation, broken schemes, canonical identifiers) score 95 and
above; reconstructions from the code host, documentation version or a
renamed domain score 80 to 95. Nothing is changed on disk; see
apply-repairs.

Examples:
  linkmedic find-repairs --corpus docs
  linkmedic find-repairs -o json | jq '.action_plan'`,
	Args: cobra.NoArgs,
	RunE: runFindRepairs,
}

func init() {
	rootCmd.AddCommand(repairsCmd)
}

func runFindRepairs(cmd *cobra.Command, _ []string) error {
	sess, err := newSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	stop := showProgress(cmd.Context(), sess.engine)
	s, err := sess.pipeline.Run(cmd.Context(), orchestrator.StageRepair)
	stop()
	if err != nil {
		return err
	}

	return report(cmd, s, orchestrator.StageRepair, nil)
}
