// Package cli implements the leitstand command line: appending entries
// without the HTTP service and inspecting how domains map to files.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"leitstand/internal/platform/config"
	"leitstand/internal/platform/logger"
	"leitstand/pkg/domain"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitInvalid = 1
	ExitUsage   = 2
)

// exitError carries the process exit code for err.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageError(err error) error   { return &exitError{code: ExitUsage, err: err} }
func invalidError(err error) error { return &exitError{code: ExitInvalid, err: err} }

// Execute runs the CLI with os.Args and returns the process exit code.
func Execute() int {
	return run(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stderr)
	cmd.SetFlagErrorFunc(flagError(args))
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}
	fmt.Fprintln(stderr, "leitstand:", err)

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitInvalid
}

type rootOptions struct {
	dataDir  string
	logLevel string
	log      *slog.Logger
}

func newRootCmd(stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "leitstand",
		Short:         "Per-domain JSONL storage tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Help()
			return usageError(errors.New("missing command"))
		},
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			opts.log = logger.NewWithWriter(stderr, opts.logLevel, "text")
		},
	}

	cmd.PersistentFlags().StringVar(&opts.dataDir, "data-dir", config.DataDirFromEnv(), "base directory for JSONL files")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	cmd.AddCommand(appendCmd(opts), resolveCmd(opts), filenameCmd(opts))
	return cmd
}

// exactArgs is cobra.ExactArgs with a usage exit code.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError(fmt.Errorf("%w\nusage: %s", err, cmd.UseLine()))
		}
		return nil
	}
}

// flagError reports flag parse failures as usage errors, except for a
// dotted "-token" given to a subcommand: that is a domain with a leading
// hyphen, which is an invalid domain rather than a typo'd flag.
func flagError(args []string) func(*cobra.Command, error) error {
	return func(cmd *cobra.Command, err error) error {
		if cmd.HasParent() {
			for _, a := range args {
				if a == "--" {
					break
				}
				if len(a) > 1 && a[0] == '-' && a[1] != '-' && strings.Contains(a, ".") && strings.Contains(err.Error(), a) {
					if _, perr := domain.ParseName(a); perr != nil {
						return invalidError(perr)
					}
				}
			}
		}
		return usageError(err)
	}
}
