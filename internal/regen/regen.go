package regen

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"sfregen/internal/history"
	"sfregen/internal/invoke"
	"sfregen/internal/plan"
)

// Recorder persists run history. *history.Store satisfies it; a nil
// Recorder disables recording.
type Recorder interface {
	WriteRun(ctx context.Context, run history.Run) error
	WriteStep(ctx context.Context, step history.Step) error
}

// Regenerator executes plans against a working directory.
type Regenerator struct {
	// Dir is the working directory the tool runs in and fixtures land in.
	Dir string

	// Tool overrides the plan's tool binary when non-empty.
	Tool string

	// Invoker runs the workflow tool. Defaults to invoke.Runner{}.
	Invoker invoke.Invoker

	// Clock issues step sequence numbers. Defaults to a fresh SeqClock.
	Clock Clock

	// History records the run when non-nil.
	History Recorder

	// KeepGoing continues past failed tool invocations, matching the
	// unchecked-shell behavior of the historical script.
	KeepGoing bool

	// StepTimeout bounds each tool invocation. Zero means no bound.
	StepTimeout time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// StepResult is the outcome of one plan step.
type StepResult struct {
	Seq      int64         `json:"seq"`
	Kind     plan.StepKind `json:"kind"`
	Command  string        `json:"command,omitempty"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
	Snapshot string        `json:"snapshot,omitempty"`
	SHA256   string        `json:"sha256,omitempty"`
	Failure  string        `json:"failure,omitempty"`
}

// RunResult is the outcome of executing a plan.
type RunResult struct {
	RunID    string       `json:"run_id"`
	PlanName string       `json:"plan_name"`
	Steps    []StepResult `json:"steps"`
	Fixtures []string     `json:"fixtures,omitempty"`
	OK       bool         `json:"ok"`
}

// FirstFailure returns the failure message of the earliest failed step,
// or "" when every step succeeded.
func (r *RunResult) FirstFailure() string {
	for _, s := range r.Steps {
		if s.Failure != "" {
			return s.Failure
		}
	}
	return ""
}

// Run executes the plan.
//
// A non-zero tool exit is a regeneration failure: it is recorded on the
// step, OK becomes false, and execution stops unless KeepGoing. The
// returned error is reserved for infrastructure problems (tool cannot
// start, snapshot copy fails, context cancelled); the partial result is
// returned alongside it.
func (r *Regenerator) Run(ctx context.Context, p *plan.Plan) (*RunResult, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	invoker := r.Invoker
	if invoker == nil {
		invoker = invoke.Runner{}
	}
	clock := r.Clock
	if clock == nil {
		clock = NewSeqClock()
	}
	tool := r.Tool
	if tool == "" {
		tool = p.Tool
	}

	result := &RunResult{
		RunID:    uuid.Must(uuid.NewV7()).String(),
		PlanName: p.Name,
		OK:       true,
	}
	started := time.Now()
	logger.Info("run starting", "run_id", result.RunID, "plan", p.Name, "tool", tool, "dir", r.Dir)

	if err := r.clean(p, logger); err != nil {
		result.OK = false
		return result, err
	}

	var hardErr error
	for i, step := range p.Steps {
		seq := clock.Next()
		sr := StepResult{Seq: seq, Kind: step.Kind()}
		stop := false

		if args := step.Command(); args != nil {
			sr.Command = strings.Join(append([]string{tool}, args...), " ")
			logger.Debug("invoking tool", "seq", seq, "command", sr.Command)

			res, err := r.invokeStep(ctx, invoker, tool, args)
			if err != nil {
				// Tool could not start or was cancelled: always fatal.
				sr.Failure = err.Error()
				result.Steps = append(result.Steps, sr)
				result.OK = false
				hardErr = fmt.Errorf("step %d: %w", i+1, err)
				break
			}
			sr.ExitCode = res.ExitCode
			sr.Duration = res.Duration
			if !res.Ok() {
				sr.Failure = fmt.Sprintf("step %d: %s exited %d: %s",
					i+1, sr.Command, res.ExitCode, strings.TrimSpace(string(res.Stderr)))
				logger.Warn("tool invocation failed",
					"seq", seq, "command", sr.Command, "exit_code", res.ExitCode)
				result.OK = false
				stop = !r.KeepGoing
			}
		}

		// The historical script copied unconditionally, so under
		// KeepGoing the snapshot is still attempted after a failed
		// command.
		if step.Snapshot != "" && !stop {
			sum, err := r.snapshot(p.Workfile, step.Snapshot)
			if err != nil {
				if sr.Failure == "" {
					sr.Failure = fmt.Sprintf("step %d: %v", i+1, err)
				}
				result.OK = false
				if r.KeepGoing {
					logger.Warn("snapshot failed", "seq", seq, "fixture", step.Snapshot, "error", err)
				} else {
					result.Steps = append(result.Steps, sr)
					hardErr = fmt.Errorf("step %d: %w", i+1, err)
					break
				}
			} else {
				sr.Snapshot = step.Snapshot
				sr.SHA256 = sum
				result.Fixtures = append(result.Fixtures, step.Snapshot)
				logger.Info("fixture snapshotted", "seq", seq, "fixture", step.Snapshot, "sha256", sum)
			}
		}

		result.Steps = append(result.Steps, sr)
		if stop {
			break
		}
	}

	if err := r.record(ctx, p, tool, result, started); err != nil {
		logger.Error("recording run history failed", "run_id", result.RunID, "error", err)
		if hardErr == nil {
			hardErr = err
		}
	}

	logger.Info("run finished", "run_id", result.RunID, "ok", result.OK, "fixtures", len(result.Fixtures))
	return result, hardErr
}

func (r *Regenerator) invokeStep(ctx context.Context, invoker invoke.Invoker, tool string, args []string) (*invoke.Result, error) {
	if r.StepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.StepTimeout)
		defer cancel()
	}
	return invoker.Invoke(ctx, r.Dir, tool, args...)
}

// clean removes files matching the plan's clean globs from the working
// directory. Directories are left alone.
func (r *Regenerator) clean(p *plan.Plan, logger *slog.Logger) error {
	for _, pattern := range p.Clean {
		matches, err := filepath.Glob(filepath.Join(r.Dir, pattern))
		if err != nil {
			return fmt.Errorf("clean pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || info.IsDir() {
				continue
			}
			if err := os.Remove(m); err != nil {
				return fmt.Errorf("removing %s: %w", m, err)
			}
			logger.Debug("removed stale file", "path", m)
		}
	}
	return nil
}

// snapshot copies the workfile to a fixture name and returns the
// fixture's SHA-256.
func (r *Regenerator) snapshot(workfile, fixture string) (string, error) {
	src := filepath.Join(r.Dir, workfile)
	data, err := os.ReadFile(src)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("snapshot %s: workfile %s does not exist", fixture, workfile)
		}
		return "", fmt.Errorf("snapshot %s: %w", fixture, err)
	}
	dst := filepath.Join(r.Dir, fixture)
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", fmt.Errorf("snapshot %s: %w", fixture, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func (r *Regenerator) record(ctx context.Context, p *plan.Plan, tool string, result *RunResult, started time.Time) error {
	if r.History == nil {
		return nil
	}
	run := history.Run{
		ID:         result.RunID,
		PlanName:   p.Name,
		Tool:       tool,
		WorkDir:    r.Dir,
		StartedAt:  started,
		FinishedAt: time.Now(),
		OK:         result.OK,
	}
	if err := r.History.WriteRun(ctx, run); err != nil {
		return err
	}
	for _, s := range result.Steps {
		step := history.Step{
			RunID:      result.RunID,
			Seq:        s.Seq,
			Kind:       string(s.Kind),
			Command:    s.Command,
			ExitCode:   s.ExitCode,
			DurationMS: s.Duration.Milliseconds(),
			Snapshot:   s.Snapshot,
			SHA256:     s.SHA256,
		}
		if err := r.History.WriteStep(ctx, step); err != nil {
			return err
		}
	}
	return nil
}
