package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sfregen/internal/history"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
	RunID    string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded regeneration runs",
		Long: `List regeneration runs recorded with 'regen --db'.

Without --run, prints recent runs. With --run, prints the step log of a
single run: the command sent to the workflow tool, its exit code, and
the SHA-256 of each snapshotted fixture.

Example:
  sfregen history --db ./history.db
  sfregen history --db ./history.db --run 0190a7e2-...`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the history database (required)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum runs to list (0 = all)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show the step log of one run")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	st, err := history.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open history database", err)
	}
	defer st.Close()

	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	if opts.RunID != "" {
		steps, err := st.RunSteps(ctx, opts.RunID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read run steps", err)
		}
		if len(steps) == 0 {
			return NewExitError(ExitCommandError, fmt.Sprintf("no steps recorded for run %s", opts.RunID))
		}
		if opts.Format == "json" {
			return formatter.Success(steps)
		}
		for _, s := range steps {
			line := fmt.Sprintf("%3d  %-8s exit=%d  %s", s.Seq, s.Kind, s.ExitCode, s.Command)
			if s.Snapshot != "" {
				line += fmt.Sprintf("  -> %s (%s)", s.Snapshot, short(s.SHA256))
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return nil
	}

	runs, err := st.ListRuns(ctx, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	if opts.Format == "json" {
		return formatter.Success(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		status := "ok"
		if !r.OK {
			status = "FAILED"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %-7s %s  plan=%s tool=%s\n",
			r.ID, status, r.StartedAt.Local().Format(time.RFC3339), r.PlanName, r.Tool)
	}
	return nil
}

func short(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}
