package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"sfregen/internal/history"
	"sfregen/internal/plan"
	"sfregen/internal/regen"
)

// RegenOptions holds flags for the regen command.
type RegenOptions struct {
	*RootOptions
	Dir       string
	Tool      string
	Database  string
	KeepGoing bool
	Timeout   time.Duration
}

// NewRegenCommand creates the regen command.
func NewRegenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RegenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "regen [plan.yaml]",
		Short: "Regenerate fixtures from a plan",
		Long: `Execute a regeneration plan against the workflow tool.

Removes stale YAML files, runs the plan's setup/configure/par steps in
order, and snapshots the tool's parameter file under the plan's fixture
names. With no plan argument the embedded default plan is used, which
reproduces the historical fixture script verbatim.

Example:
  sfregen regen
  sfregen regen --dir ./testdata ./plans/fixtures.yaml
  sfregen regen --db ./history.db --keep-going`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			planPath := ""
			if len(args) == 1 {
				planPath = args[0]
			}
			return runRegen(opts, planPath, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dir, "dir", ".", "working directory for the tool and fixtures")
	cmd.Flags().StringVar(&opts.Tool, "tool", "", "override the plan's workflow tool binary")
	cmd.Flags().StringVar(&opts.Database, "db", "", "optional SQLite database to record run history")
	cmd.Flags().BoolVar(&opts.KeepGoing, "keep-going", false, "continue past failed tool invocations")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "per-step timeout (0 = none)")

	return cmd
}

func runRegen(opts *RegenOptions, planPath string, cmd *cobra.Command) error {
	configureLogging(opts.RootOptions)

	p, err := loadPlan(planPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load plan", err)
	}
	slog.Info("plan loaded", "plan", p.Name, "steps", len(p.Steps))

	var recorder regen.Recorder
	if opts.Database != "" {
		slog.Info("opening history database", "path", opts.Database)
		st, err := history.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open history database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing history database", "error", closeErr)
			}
		}()
		recorder = st
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	r := &regen.Regenerator{
		Dir:         opts.Dir,
		Tool:        opts.Tool,
		History:     recorder,
		KeepGoing:   opts.KeepGoing,
		StepTimeout: opts.Timeout,
	}

	result, err := r.Run(ctx, p)
	if err != nil {
		return WrapExitError(ExitCommandError, "regeneration aborted", err)
	}

	formatter := newFormatter(opts.RootOptions, cmd)
	if !result.OK {
		if opts.Format == "json" {
			_ = formatter.Success(result)
		}
		return NewExitError(ExitFailure, result.FirstFailure())
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Run %s completed: %d step(s), %d fixture(s)\n",
		result.RunID, len(result.Steps), len(result.Fixtures))
	for _, name := range result.Fixtures {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", name)
	}
	return nil
}

// loadPlan loads the named plan file, or the embedded default plan when
// path is empty.
func loadPlan(path string) (*plan.Plan, error) {
	if path == "" {
		return plan.Default(), nil
	}
	return plan.Load(path)
}

// configureLogging installs a text slog handler on stderr, level from
// the --verbose flag.
func configureLogging(opts *RootOptions) {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// signalContext derives a context cancelled by SIGINT/SIGTERM from the
// command's context (the command context is set by tests).
func signalContext(cmd *cobra.Command) (context.Context, func()) {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, stopping", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
