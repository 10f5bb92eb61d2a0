package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/btraven00/linkmedic/internal/archive"
	"github.com/btraven00/linkmedic/internal/config"
	"github.com/btraven00/linkmedic/internal/extractor"
	"github.com/btraven00/linkmedic/internal/monitor"
)

// Exit codes.
const (
	ExitOK          = 0
	ExitProcessing  = 1
	ExitSetup       = 2
	ExitInterrupted = 130
)

// ErrProcessing means the run finished but some documents or urls failed.
// The report has already been written.
var ErrProcessing = errors.New("processed with errors")

// usageError wraps bad command-line flags.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// ExitCode maps the error returned by Execute to the process exit status.
func ExitCode(err error) int {
	var usage usageError

	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.As(err, &usage),
		errors.Is(err, config.ErrInvalid),
		errors.Is(err, extractor.ErrCorpusMissing),
		errors.Is(err, archive.ErrUnreachable),
		errors.Is(err, monitor.ErrLocked):
		return ExitSetup
	default:
		return ExitProcessing
	}
}

func bindFlag(key string, flag *pflag.Flag) {
	cobra.CheckErr(settings.BindPFlag(key, flag))
}
