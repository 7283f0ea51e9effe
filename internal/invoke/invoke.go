// Package invoke runs the external workflow tool.
//
// The tool is treated as an opaque command surface: invoke gives it a
// working directory and an argument vector, captures its output, and
// reports the exit code. Context cancellation kills the whole process
// group so a hung tool cannot outlive the run.
package invoke

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"syscall"
	"time"
)

// Result holds the outcome of a single tool invocation.
type Result struct {
	// Stdout is the captured standard output.
	Stdout []byte

	// Stderr is the captured standard error.
	Stderr []byte

	// ExitCode is the process exit code. 0 indicates success.
	ExitCode int

	// Duration is wall-clock time from start to exit.
	Duration time.Duration
}

// Ok reports whether the invocation exited zero.
func (r *Result) Ok() bool { return r.ExitCode == 0 }

// Invoker runs tool commands. The production implementation is Runner;
// tests substitute fakes.
type Invoker interface {
	Invoke(ctx context.Context, dir, tool string, args ...string) (*Result, error)
}

// Runner invokes tools as child processes.
//
// Each child runs in its own process group so cancellation can kill the
// full process tree, not just the immediate child.
type Runner struct{}

// Invoke runs `tool args...` in dir, blocking until exit or cancellation.
//
// A non-zero exit is a Result, not an error; errors are reserved for the
// tool failing to start or being killed by cancellation.
func (Runner) Invoke(ctx context.Context, dir, tool string, args ...string) (*Result, error) {
	if tool == "" {
		return nil, fmt.Errorf("invoke: tool is empty")
	}

	cmd := exec.CommandContext(ctx, tool, args...)
	cmd.Dir = dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("invoke: starting %s: %w", tool, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var waitErr error
	select {
	case <-ctx.Done():
		if cmd.Process != nil {
			// Negative PID targets the process group.
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		<-done
		return nil, fmt.Errorf("invoke: %s cancelled: %w", tool, ctx.Err())
	case waitErr = <-done:
		if ctx.Err() != nil {
			return nil, fmt.Errorf("invoke: %s cancelled: %w", tool, ctx.Err())
		}
	}

	exitCode := 0
	if waitErr != nil {
		exitErr, ok := waitErr.(*exec.ExitError)
		if !ok {
			return nil, fmt.Errorf("invoke: running %s: %w", tool, waitErr)
		}
		exitCode = exitErr.ExitCode()
	}

	return &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: exitCode,
		Duration: time.Since(start),
	}, nil
}
