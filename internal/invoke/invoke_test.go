package invoke

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScript drops an executable shell script into dir and returns its path.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestInvoke_CapturesOutput(t *testing.T) {
	dir := t.TempDir()
	tool := writeScript(t, dir, "tool.sh", `echo out; echo err >&2`)

	res, err := Runner{}.Invoke(context.Background(), dir, tool)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.True(t, res.Ok())
	assert.Equal(t, "out\n", string(res.Stdout))
	assert.Equal(t, "err\n", string(res.Stderr))
	assert.Greater(t, res.Duration, time.Duration(0))
}

func TestInvoke_NonZeroExitIsResult(t *testing.T) {
	dir := t.TempDir()
	tool := writeScript(t, dir, "tool.sh", `exit 3`)

	res, err := Runner{}.Invoke(context.Background(), dir, tool)
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.False(t, res.Ok())
}

func TestInvoke_RunsInDir(t *testing.T) {
	dir := t.TempDir()
	tool := writeScript(t, dir, "tool.sh", `pwd`)

	workDir := t.TempDir()
	res, err := Runner{}.Invoke(context.Background(), workDir, tool)
	require.NoError(t, err)

	// macOS tempdirs resolve through symlinks; compare resolved paths.
	want, err := filepath.EvalSymlinks(workDir)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(string(res.Stdout[:len(res.Stdout)-1]))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestInvoke_PassesArgs(t *testing.T) {
	dir := t.TempDir()
	tool := writeScript(t, dir, "tool.sh", `echo "$1 $2 $3 $4"`)

	res, err := Runner{}.Invoke(context.Background(), dir, tool, "par", "-p", "NTASK", "3")
	require.NoError(t, err)
	assert.Equal(t, "par -p NTASK 3\n", string(res.Stdout))
}

func TestInvoke_MissingToolIsError(t *testing.T) {
	dir := t.TempDir()
	_, err := Runner{}.Invoke(context.Background(), dir, filepath.Join(dir, "does-not-exist"))
	require.Error(t, err)
}

func TestInvoke_EmptyToolIsError(t *testing.T) {
	_, err := Runner{}.Invoke(context.Background(), t.TempDir(), "")
	require.Error(t, err)
}

func TestInvoke_CancellationKillsTool(t *testing.T) {
	dir := t.TempDir()
	tool := writeScript(t, dir, "tool.sh", `sleep 30`)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := Runner{}.Invoke(ctx, dir, tool)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second, "cancellation must not wait for the tool")
}
