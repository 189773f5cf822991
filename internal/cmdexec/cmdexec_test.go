package cmdexec_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubesage/kubesage-backend/internal/cmdexec"
	"github.com/kubesage/kubesage-backend/internal/pkg/logger"
)

// writeScript drops an executable shell script into a temp dir and returns
// its path.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tool")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func newExecutor(timeout time.Duration) *cmdexec.Executor {
	return cmdexec.NewExecutor(timeout, logger.New("error"))
}

func TestRun_ArgvPassedLiterally(t *testing.T) {
	// Echo each argv token on its own line so token boundaries are visible.
	bin := writeScript(t, `for a in "$@"; do printf '%s\n' "$a"; done`)
	exec := newExecutor(10 * time.Second)

	hostile := `; rm -rf /`
	cmd := cmdexec.New(bin).
		Arg("analyze").
		Flag("--namespace", hostile).
		Flag("--selector", "app=demo && echo pwned")

	out, err := exec.Run(context.Background(), cmd)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out.Stdout, "\n"), "\n")
	assert.Equal(t, []string{
		"analyze",
		"--namespace",
		hostile,
		"--selector",
		"app=demo && echo pwned",
	}, lines, "each value must arrive as one literal token, unevaluated")
}

func TestRun_JSONStdoutIsParsed(t *testing.T) {
	bin := writeScript(t, `printf '[{"name":"pod-x"}]'`)
	exec := newExecutor(10 * time.Second)

	out, err := exec.Run(context.Background(), cmdexec.New(bin))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"pod-x"}]`, string(out.Parsed))
	assert.JSONEq(t, `[{"name":"pod-x"}]`, string(out.Payload()))
}

func TestRun_TextStdoutWrapped(t *testing.T) {
	bin := writeScript(t, `printf 'Pod\nService\n'`)
	exec := newExecutor(10 * time.Second)

	out, err := exec.Run(context.Background(), cmdexec.New(bin))
	require.NoError(t, err)
	assert.Nil(t, out.Parsed)
	assert.JSONEq(t, `{"stdout":"Pod\nService\n"}`, string(out.Payload()))
}

func TestRun_NonZeroExit(t *testing.T) {
	bin := writeScript(t, `echo "boom" >&2; exit 3`)
	exec := newExecutor(10 * time.Second)

	_, err := exec.Run(context.Background(), cmdexec.New(bin))
	var cmdErr *cmdexec.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, 3, cmdErr.ExitCode)
	assert.Contains(t, cmdErr.Stderr, "boom")
}

func TestRun_SecretRedactedFromStderr(t *testing.T) {
	// The tool echoes its argv to stderr and fails, simulating a CLI that
	// dumps its invocation on error.
	bin := writeScript(t, `echo "invoked with: $@" >&2; exit 1`)
	exec := newExecutor(10 * time.Second)

	cmd := cmdexec.New(bin).SecretFlag("--password", "hunter2")
	_, err := exec.Run(context.Background(), cmd)

	var cmdErr *cmdexec.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.NotContains(t, cmdErr.Stderr, "hunter2")
	assert.Contains(t, cmdErr.Stderr, "***REDACTED***")
}

func TestRun_Timeout(t *testing.T) {
	bin := writeScript(t, `sleep 10`)
	exec := newExecutor(100 * time.Millisecond)

	_, err := exec.Run(context.Background(), cmdexec.New(bin))
	assert.ErrorIs(t, err, cmdexec.ErrTimeout)
}

func TestRun_ParentCancellation(t *testing.T) {
	bin := writeScript(t, `sleep 10`)
	exec := newExecutor(30 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := exec.Run(ctx, cmdexec.New(bin))
	assert.ErrorIs(t, err, context.Canceled)

	var cmdErr *cmdexec.CommandError
	assert.False(t, errors.As(err, &cmdErr), "a killed process on cancellation is not a command failure")
	assert.NotErrorIs(t, err, cmdexec.ErrTimeout)
}

func TestRun_MissingProgram(t *testing.T) {
	exec := newExecutor(time.Second)
	_, err := exec.Run(context.Background(), cmdexec.New("/nonexistent/binary"))
	require.Error(t, err)
	var cmdErr *cmdexec.CommandError
	assert.False(t, errors.As(err, &cmdErr), "a spawn failure is not a command failure")
}
