package cmd

import (
	"github.com/spf13/cobra"

	"github.com/btraven00/linkmedic/internal/orchestrator"
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract links from every document in the corpus",
	Long: `Extract walks the corpus, finds inline, reference-style and bare links
in every matching document and records each with its surrounding text.

Documents that cannot be decoded are skipped and reported; the rest of the
corpus is still processed. Results are written to links.json.

Examples:
  linkmedic extract --corpus docs
  linkmedic extract --corpus docs --output json`,
	Args: cobra.NoArgs,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, _ []string) error {
	sess, err := newSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	s, err := sess.pipeline.Run(cmd.Context(), orchestrator.StageExtract)
	if err != nil {
		return err
	}

	return report(cmd, s, orchestrator.StageExtract, nil)
}
