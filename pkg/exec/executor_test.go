package exec

import (
	"context"
	"os"
	osexec "os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCrontabScript writes a shell stand-in for crontab(1) that keeps its
// table in a file next to the script.
func fakeCrontabScript(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	script := filepath.Join(dir, "crontab")
	body := `#!/bin/sh
table="$(dirname "$0")/table"
case "$1" in
  -l) [ -f "$table" ] || { echo "no crontab for tester" >&2; exit 1; }; cat "$table" ;;
  -)  cat > "$table" ;;
  *)  echo "usage: crontab [-l|-]" >&2; exit 2 ;;
esac
`
	require.NoError(t, os.WriteFile(script, []byte(body), 0o755))
	return script
}

func TestRealCommandExecutorCrontabRoundTrip(t *testing.T) {
	t.Parallel()

	bin := fakeCrontabScript(t)
	executor := DefaultExecutor()
	ctx := context.Background()

	_, stderr, err := executor.Execute(ctx, bin, "-l")
	require.Error(t, err)
	assert.Equal(t, "no crontab for tester\n", string(stderr))

	table := "01 13 01 06 * /usr/local/bin/secretcron check db # secretcron:db\n"
	_, _, err = executor.ExecuteWithInput(ctx, []byte(table), bin, "-")
	require.NoError(t, err)

	stdout, _, err := executor.Execute(ctx, bin, "-l")
	require.NoError(t, err)
	assert.Equal(t, table, string(stdout))

	_, _, err = executor.Execute(ctx, bin, "-e")
	var exitErr *osexec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.ExitCode())
}

func TestRealCommandExecutorMissingBinary(t *testing.T) {
	t.Parallel()

	_, _, err := DefaultExecutor().Execute(context.Background(), "secretcron_missing_binary_xyz")
	assert.ErrorIs(t, err, osexec.ErrNotFound)
}

func TestRealCommandExecutor_ExecuteWithInput(t *testing.T) {
	t.Parallel()

	executor := &RealCommandExecutor{}
	stdout, stderr, err := executor.ExecuteWithInput(context.Background(), []byte("0 1 2 3 * /bin/true\n"), "cat")
	require.NoError(t, err)
	assert.Empty(t, stderr)
	assert.Equal(t, "0 1 2 3 * /bin/true\n", string(stdout))
}

func TestRealCommandExecutor_Env(t *testing.T) {
	t.Parallel()

	executor := &RealCommandExecutor{Env: []string{"SECRETCRON_TEST_VALUE=42"}}
	stdout, _, err := executor.Execute(context.Background(), "sh", "-c", "echo $SECRETCRON_TEST_VALUE")
	require.NoError(t, err)
	assert.Equal(t, "42\n", string(stdout))
}

func TestRealCommandExecutor_Stderr(t *testing.T) {
	t.Parallel()

	executor := DefaultExecutor()
	_, stderr, err := executor.Execute(context.Background(), "sh", "-c", "echo no crontab for root >&2; exit 1")
	require.Error(t, err)
	assert.Equal(t, "no crontab for root\n", string(stderr))
}

func TestRealCommandExecutor_LookPath(t *testing.T) {
	t.Parallel()

	executor := DefaultExecutor()
	path, err := executor.LookPath("sh")
	require.NoError(t, err)
	assert.NotEmpty(t, path)

	_, err = executor.LookPath("nonexistent_command_xyz123")
	assert.Error(t, err)
}

func TestRealCommandExecutor_ContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := DefaultExecutor().Execute(ctx, "sleep", "5")
	assert.Error(t, err)
}
