package history

import (
	"context"
	"fmt"
	"time"
)

// ListRuns returns recorded runs, most recent first, up to limit.
// A limit of 0 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT id, plan_name, tool, work_dir, started_at, finished_at, ok
		FROM runs
		ORDER BY started_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run            Run
			started, ended string
			ok             int
		)
		if err := rows.Scan(&run.ID, &run.PlanName, &run.Tool, &run.WorkDir, &started, &ended, &ok); err != nil {
			return nil, fmt.Errorf("list runs: scanning row: %w", err)
		}
		if run.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("list runs: bad started_at %q: %w", started, err)
		}
		if run.FinishedAt, err = time.Parse(time.RFC3339Nano, ended); err != nil {
			return nil, fmt.Errorf("list runs: bad finished_at %q: %w", ended, err)
		}
		run.OK = ok != 0
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// RunSteps returns the steps of a run in sequence order.
func (s *Store) RunSteps(ctx context.Context, runID string) ([]Step, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, kind, command, exit_code, duration_ms, snapshot, sha256
		FROM steps
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("run steps: %w", err)
	}
	defer rows.Close()

	var steps []Step
	for rows.Next() {
		var step Step
		if err := rows.Scan(&step.RunID, &step.Seq, &step.Kind, &step.Command,
			&step.ExitCode, &step.DurationMS, &step.Snapshot, &step.SHA256); err != nil {
			return nil, fmt.Errorf("run steps: scanning row: %w", err)
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("run steps: %w", err)
	}
	return steps, nil
}
