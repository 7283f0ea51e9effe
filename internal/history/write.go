package history

import (
	"context"
	"fmt"
	"time"
)

// Run is one recorded regeneration run.
type Run struct {
	ID         string    `json:"id"`
	PlanName   string    `json:"plan_name"`
	Tool       string    `json:"tool"`
	WorkDir    string    `json:"work_dir"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	OK         bool      `json:"ok"`
}

// Step is one recorded step of a run.
type Step struct {
	RunID      string `json:"run_id"`
	Seq        int64  `json:"seq"`
	Kind       string `json:"kind"`
	Command    string `json:"command"`
	ExitCode   int    `json:"exit_code"`
	DurationMS int64  `json:"duration_ms"`
	Snapshot   string `json:"snapshot,omitempty"`
	SHA256     string `json:"sha256,omitempty"`
}

// WriteRun inserts a run record. Idempotent on run ID.
func (s *Store) WriteRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, plan_name, tool, work_dir, started_at, finished_at, ok)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.PlanName,
		run.Tool,
		run.WorkDir,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
		boolToInt(run.OK),
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// WriteStep inserts a step record. Idempotent on (run_id, seq).
// The referenced run must already exist (foreign key constraint).
func (s *Store) WriteStep(ctx context.Context, step Step) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO steps (run_id, seq, kind, command, exit_code, duration_ms, snapshot, sha256)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		step.RunID,
		step.Seq,
		step.Kind,
		step.Command,
		step.ExitCode,
		step.DurationMS,
		step.Snapshot,
		step.SHA256,
	)
	if err != nil {
		return fmt.Errorf("write step: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
