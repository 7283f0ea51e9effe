package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"sfregen/internal/regen"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Dir     string
	Tool    string
	Strict  bool
	Timeout time.Duration
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify [plan.yaml]",
		Short: "Check that fixtures still match a fresh regeneration",
		Long: `Re-run the plan in a scratch directory and compare the produced
fixtures against the fixtures in --dir.

Comparison ignores comments, trailing whitespace and Unicode
normalization differences, so a tool release that only reshuffles its
YAML header does not fail verification. Use --strict for byte equality.

Example:
  sfregen verify --dir ./testdata
  sfregen verify --dir ./testdata --strict ./plans/fixtures.yaml`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			planPath := ""
			if len(args) == 1 {
				planPath = args[0]
			}
			return runVerify(opts, planPath, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dir, "dir", ".", "directory holding the recorded fixtures")
	cmd.Flags().StringVar(&opts.Tool, "tool", "", "override the plan's workflow tool binary")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "compare fixture bytes instead of canonical form")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "per-step timeout (0 = none)")

	return cmd
}

func runVerify(opts *VerifyOptions, planPath string, cmd *cobra.Command) error {
	configureLogging(opts.RootOptions)

	p, err := loadPlan(planPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load plan", err)
	}

	scratch, err := os.MkdirTemp("", "sfregen-verify-")
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create scratch directory", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(scratch); rmErr != nil {
			slog.Warn("failed to remove scratch directory", "path", scratch, "error", rmErr)
		}
	}()
	slog.Info("verifying fixtures", "plan", p.Name, "fixtures_dir", opts.Dir, "scratch", scratch)

	ctx, stop := signalContext(cmd)
	defer stop()

	r := &regen.Regenerator{
		Dir:         scratch,
		Tool:        opts.Tool,
		StepTimeout: opts.Timeout,
	}

	result, err := r.Verify(ctx, p, opts.Dir, opts.Strict)
	if err != nil {
		return WrapExitError(ExitCommandError, "verification aborted", err)
	}

	formatter := newFormatter(opts.RootOptions, cmd)
	if opts.Format == "json" {
		if encErr := formatter.Success(result); encErr != nil {
			return encErr
		}
	} else {
		for _, f := range result.Fixtures {
			fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s\n", f.Status, f.Name)
		}
	}

	if !result.OK {
		if failure := result.Run.FirstFailure(); failure != "" {
			return NewExitError(ExitFailure, failure)
		}
		return NewExitError(ExitFailure, "fixtures differ from a fresh regeneration")
	}
	if opts.Format != "json" {
		fmt.Fprintf(cmd.OutOrStdout(), "All %d fixture(s) match.\n", len(result.Fixtures))
	}
	return nil
}
