package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/btraven00/linkmedic/internal/config"
	"github.com/btraven00/linkmedic/internal/logging"
)

var (
	cfgFile  string
	quiet    bool
	output   string
	fresh    bool
	settings = viper.New()
	cfg      *config.Config
	logger   = zap.NewNop()
	logFlush = func() {}
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "linkmedic",
	Short: "Find, score and repair broken links in a documentation corpus",
	Long: `Linkmedic walks a directory of documents, checks every external link,
scores whether each link still supports the text around it, and proposes
or applies repairs for the ones that rotted.

Each stage writes its results to the work directory so later stages can be
run on their own:

  linkmedic extract            # links.json
  linkmedic validate           # validation.json, specialized.json
  linkmedic score-relevance    # relevance.json
  linkmedic find-repairs       # repairs.json
  linkmedic apply-repairs --dry-run`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initRuntime,
	PersistentPostRun: func(*cobra.Command, []string) { logFlush() },
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("interrupted: %w", ctx.Err())
	}

	return err
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./.linkmedic.yaml, then $HOME/.linkmedic.yaml)")
	flags.String("corpus", ".", "directory of documents to check")
	flags.String("workdir", "", "directory for stage artifacts (default <corpus>/.linkmedic)")
	flags.BoolVarP(&quiet, "quiet", "q", false, "quiet output (suppress progress and info logs)")
	flags.StringVarP(&output, "output", "o", "human", "output format (human, json, csv)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.BoolVar(&fresh, "fresh", false, "recompute upstream stages instead of loading their artifacts")

	bindFlag("corpus", flags.Lookup("corpus"))
	bindFlag("workdir", flags.Lookup("workdir"))
	bindFlag("log.level", flags.Lookup("log-level"))

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})
}

// initRuntime reads in config file and ENV variables, then builds the logger.
func initRuntime(cmd *cobra.Command, _ []string) error {
	switch output {
	case "human", "json", "csv":
	default:
		return usageError{fmt.Errorf("unsupported output format: %s", output)}
	}

	if err := config.Prepare(settings, cfgFile); err != nil {
		return err
	}

	loaded, err := config.Load(settings)
	if err != nil {
		return err
	}
	cfg = loaded

	l, err := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File, Quiet: quiet})
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}
	logger = l
	logFlush = func() { _ = l.Sync() }

	if used := settings.ConfigFileUsed(); used != "" {
		logger.Debug("using config file", zap.String("path", used))
	}
	logger.Debug("starting", zap.String("command", cmd.Name()), zap.String("corpus", cfg.Corpus), zap.String("workdir", cfg.Workdir))

	return nil
}
