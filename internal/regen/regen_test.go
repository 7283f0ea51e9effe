package regen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sfregen/internal/history"
	"sfregen/internal/invoke"
	"sfregen/internal/params"
	"sfregen/internal/plan"
	"sfregen/internal/testutil"
)

// fakeTool is an in-memory workflow tool. It understands the same
// command surface as the real one: setup and configure write the
// workfile, par edits a single parameter in place.
type fakeTool struct {
	workfile string
	calls    []string

	// failOn makes invocations whose first argument matches exit 1.
	failOn string
}

const setupContent = `# fake tool: setup
WORKFLOW: inversion
SOLVER: specfem3d
SYSTEM: workstation
`

const configureContent = setupContent + `NTASK: null
NPROC: null
WALLTIME: null
TASKTIME: null
LOG_LEVEL: null
VERBOSE: null
MISFIT: null
MIN_PERIOD: null
MAX_PERIOD: null
NT: null
DT: null
FORMAT: null
`

func (f *fakeTool) Invoke(_ context.Context, dir, _ string, args ...string) (*invoke.Result, error) {
	f.calls = append(f.calls, strings.Join(args, " "))
	if f.failOn != "" && args[0] == f.failOn {
		return &invoke.Result{ExitCode: 1, Stderr: []byte(args[0] + " failed")}, nil
	}

	path := filepath.Join(dir, f.workfile)
	switch args[0] {
	case "setup":
		if err := os.WriteFile(path, []byte(setupContent), 0o644); err != nil {
			return nil, err
		}
	case "configure":
		if err := os.WriteFile(path, []byte(configureContent), 0o644); err != nil {
			return nil, err
		}
	case "par":
		// par -p NAME VALUE
		name, value := args[2], args[3]
		data, err := os.ReadFile(path)
		if err != nil {
			return &invoke.Result{ExitCode: 1, Stderr: []byte("no parameter file")}, nil
		}
		lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
		replaced := false
		for i, line := range lines {
			if strings.HasPrefix(line, name+":") {
				lines[i] = fmt.Sprintf("%s: %s", name, value)
				replaced = true
			}
		}
		if !replaced {
			lines = append(lines, fmt.Sprintf("%s: %s", name, value))
		}
		if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
			return nil, err
		}
	}
	return &invoke.Result{ExitCode: 0, Duration: time.Millisecond}, nil
}

func newTestRegenerator(dir string, tool *fakeTool) *Regenerator {
	return &Regenerator{
		Dir:     dir,
		Invoker: tool,
		Clock:   testutil.NewDeterministicClock(),
	}
}

func TestRun_DefaultPlan(t *testing.T) {
	dir := t.TempDir()
	// Stale files: YAML is cleaned, anything else is left alone.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old_parameters.yaml"), []byte("stale"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0o644))

	p := plan.Default()
	tool := &fakeTool{workfile: p.Workfile}
	r := newTestRegenerator(dir, tool)

	result, err := r.Run(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Empty(t, result.FirstFailure())
	assert.NotEmpty(t, result.RunID)

	// Stale YAML removed, non-YAML untouched.
	assert.NoFileExists(t, filepath.Join(dir, "old_parameters.yaml"))
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))

	// All three fixtures produced, in plan order.
	assert.Equal(t, []string{
		"test_setup_parameters.yaml",
		"test_configure_parameters.yaml",
		"test_filled_parameters.yaml",
	}, result.Fixtures)
	for _, name := range result.Fixtures {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	// Sequence numbers are contiguous from 1.
	require.Len(t, result.Steps, len(p.Steps))
	for i, s := range result.Steps {
		assert.Equal(t, int64(i+1), s.Seq)
	}

	// Tool invocations happened in literal plan order.
	require.Len(t, tool.calls, 14)
	assert.Equal(t, "setup", tool.calls[0])
	assert.Equal(t, "configure -r", tool.calls[1])
	assert.Equal(t, "par -p NTASK 3", tool.calls[2])
	assert.Equal(t, "par -p FORMAT sem", tool.calls[13])

	// The final fixture reflects every par edit.
	f, err := params.Load(filepath.Join(dir, "test_filled_parameters.yaml"))
	require.NoError(t, err)
	v, ok := f.Get("NTASK")
	require.True(t, ok)
	assert.Equal(t, 3, v)
	v, ok = f.Get("FORMAT")
	require.True(t, ok)
	assert.Equal(t, "sem", v)

	// The setup fixture predates the configure edits.
	setup, err := params.Load(filepath.Join(dir, "test_setup_parameters.yaml"))
	require.NoError(t, err)
	_, ok = setup.Get("NTASK")
	assert.False(t, ok)
}

func TestRun_SnapshotWithoutWorkfile(t *testing.T) {
	p := &plan.Plan{
		Tool:     "seisflows",
		Workfile: "parameters.yaml",
		Steps:    []plan.Step{{Snapshot: "test_setup_parameters.yaml"}},
	}
	require.NoError(t, p.Validate())

	r := newTestRegenerator(t.TempDir(), &fakeTool{workfile: p.Workfile})
	result, err := r.Run(context.Background(), p)
	require.Error(t, err)
	assert.False(t, result.OK)
	assert.Contains(t, result.FirstFailure(), "workfile parameters.yaml does not exist")
}

func TestRun_ToolFailureStops(t *testing.T) {
	dir := t.TempDir()
	p := plan.Default()
	tool := &fakeTool{workfile: p.Workfile, failOn: "configure"}
	r := newTestRegenerator(dir, tool)

	result, err := r.Run(context.Background(), p)
	require.NoError(t, err, "a tool failure is a result, not an infrastructure error")
	assert.False(t, result.OK)

	// setup succeeded, configure failed, nothing after ran.
	require.Len(t, result.Steps, 2)
	assert.Equal(t, 1, result.Steps[1].ExitCode)
	assert.Contains(t, result.FirstFailure(), "configure")
	assert.Contains(t, result.FirstFailure(), "exited 1")
	assert.Equal(t, []string{"test_setup_parameters.yaml"}, result.Fixtures)
}

func TestRun_KeepGoing(t *testing.T) {
	dir := t.TempDir()
	p := plan.Default()
	tool := &fakeTool{workfile: p.Workfile, failOn: "configure"}
	r := newTestRegenerator(dir, tool)
	r.KeepGoing = true

	result, err := r.Run(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, result.OK)

	// Every step still ran, like the unchecked shell script.
	assert.Len(t, result.Steps, len(p.Steps))
	// The configure snapshot was still taken (from the setup-era
	// workfile), mirroring the script's unconditional cp.
	assert.Equal(t, []string{
		"test_setup_parameters.yaml",
		"test_configure_parameters.yaml",
		"test_filled_parameters.yaml",
	}, result.Fixtures)
}

func TestRun_MissingToolIsHardError(t *testing.T) {
	dir := t.TempDir()
	p := plan.Default()
	r := &Regenerator{Dir: dir} // real invoker, nonexistent binary
	r.Tool = filepath.Join(dir, "no-such-tool")

	result, err := r.Run(context.Background(), p)
	require.Error(t, err)
	assert.False(t, result.OK)
}

// recorderSpy captures history writes without a database.
type recorderSpy struct {
	runs  []history.Run
	steps []history.Step
}

func (r *recorderSpy) WriteRun(_ context.Context, run history.Run) error {
	r.runs = append(r.runs, run)
	return nil
}

func (r *recorderSpy) WriteStep(_ context.Context, step history.Step) error {
	r.steps = append(r.steps, step)
	return nil
}

func TestRun_RecordsHistory(t *testing.T) {
	dir := t.TempDir()
	p := plan.Default()
	tool := &fakeTool{workfile: p.Workfile}
	spy := &recorderSpy{}
	r := newTestRegenerator(dir, tool)
	r.History = spy

	result, err := r.Run(context.Background(), p)
	require.NoError(t, err)

	require.Len(t, spy.runs, 1)
	run := spy.runs[0]
	assert.Equal(t, result.RunID, run.ID)
	assert.Equal(t, p.Name, run.PlanName)
	assert.Equal(t, "seisflows", run.Tool)
	assert.True(t, run.OK)
	assert.False(t, run.FinishedAt.Before(run.StartedAt))

	require.Len(t, spy.steps, len(p.Steps))
	assert.Equal(t, "run", spy.steps[0].Kind)
	assert.Equal(t, "seisflows setup", spy.steps[0].Command)
	assert.Equal(t, "test_setup_parameters.yaml", spy.steps[0].Snapshot)
	assert.NotEmpty(t, spy.steps[0].SHA256)

	last := spy.steps[len(spy.steps)-1]
	assert.Equal(t, "snapshot", last.Kind)
	assert.Equal(t, "test_filled_parameters.yaml", last.Snapshot)
}

func TestRun_ToolOverride(t *testing.T) {
	dir := t.TempDir()
	p := plan.Default()
	tool := &fakeTool{workfile: p.Workfile}
	spy := &recorderSpy{}
	r := newTestRegenerator(dir, tool)
	r.Tool = "/opt/seisflows/bin/seisflows"
	r.History = spy

	_, err := r.Run(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "/opt/seisflows/bin/seisflows", spy.runs[0].Tool)
	assert.Equal(t, "/opt/seisflows/bin/seisflows setup", spy.steps[0].Command)
}
