// Package cmdexec builds and runs external CLI commands from structured
// input. Commands are always spawned with an explicit argument vector, never
// through a shell, so caller-supplied values (filenames, namespaces, cluster
// names) cannot be interpreted as shell metacharacters or extra flags.
package cmdexec

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/kubesage/kubesage-backend/internal/pkg/metrics"
	"github.com/kubesage/kubesage-backend/internal/pkg/redact"
)

// ErrTimeout is returned when a command exceeds the executor's wall-clock ceiling.
var ErrTimeout = errors.New("external command timed out")

// CommandError reports a command that ran but exited non-zero. Stderr has
// already had secret values redacted and is safe to echo to clients.
type CommandError struct {
	Program  string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s exited with code %d: %s", e.Program, e.ExitCode, e.Stderr)
}

// Command is a structured command descriptor: a program plus an ordered
// argument vector. Every value is one opaque token.
type Command struct {
	Program string
	args    []string
	secrets []string
}

// New returns a command descriptor for the given program.
func New(program string) *Command {
	return &Command{Program: program}
}

// Flag appends "--name value" as two separate tokens.
func (c *Command) Flag(name, value string) *Command {
	c.args = append(c.args, name, value)
	return c
}

// SecretFlag is Flag for values that must be redacted from logs and from any
// error text echoed back to callers.
func (c *Command) SecretFlag(name, value string) *Command {
	c.secrets = append(c.secrets, value)
	return c.Flag(name, value)
}

// BoolFlag appends a valueless flag token.
func (c *Command) BoolFlag(name string) *Command {
	c.args = append(c.args, name)
	return c
}

// Arg appends one bare positional token.
func (c *Command) Arg(token string) *Command {
	c.args = append(c.args, token)
	return c
}

// Args returns a copy of the argument vector.
func (c *Command) Args() []string {
	return append([]string(nil), c.args...)
}

// Output is the result of a successful command run. Parsed is set when stdout
// was valid JSON; otherwise the raw text is kept in Stdout.
type Output struct {
	Parsed json.RawMessage
	Stdout string
}

// Payload returns the structured form of the output: the parsed JSON when
// present, otherwise the raw text wrapped in a one-field record.
func (o Output) Payload() json.RawMessage {
	if o.Parsed != nil {
		return o.Parsed
	}
	b, _ := json.Marshal(map[string]string{"stdout": o.Stdout})
	return b
}

// Executor runs command descriptors with a bounded wall-clock timeout.
type Executor struct {
	timeout time.Duration
	log     *slog.Logger
}

// NewExecutor returns an executor. A zero timeout falls back to 60s.
func NewExecutor(timeout time.Duration, log *slog.Logger) *Executor {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Executor{timeout: timeout, log: log}
}

// Run executes the command, capturing stdout, stderr and exit status
// separately. Non-zero exit returns *CommandError; exceeding the timeout
// returns ErrTimeout. The process is killed when the context or the timeout
// expires.
func (e *Executor) Run(ctx context.Context, c *Command) (Output, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	e.log.Debug("executing command", "program", c.Program, "args", redact.Args(c.args))

	cmd := exec.CommandContext(ctx, c.Program, c.args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	metrics.CommandDurationSeconds.WithLabelValues(c.Program).Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			metrics.CommandExecutionsTotal.WithLabelValues(c.Program, "timeout").Inc()
			return Output{}, fmt.Errorf("%s: %w", c.Program, ErrTimeout)
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			// The caller went away and the process was killed; this is not a
			// failure of the command itself.
			metrics.CommandExecutionsTotal.WithLabelValues(c.Program, "canceled").Inc()
			return Output{}, fmt.Errorf("%s: %w", c.Program, ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			metrics.CommandExecutionsTotal.WithLabelValues(c.Program, "failed").Inc()
			cerr := &CommandError{
				Program:  c.Program,
				ExitCode: exitErr.ExitCode(),
				Stderr:   redact.Text(stderr.String(), c.secrets),
			}
			e.log.Error("command failed", "program", c.Program, "exit_code", cerr.ExitCode, "stderr", cerr.Stderr)
			return Output{}, cerr
		}
		metrics.CommandExecutionsTotal.WithLabelValues(c.Program, "error").Inc()
		return Output{}, fmt.Errorf("failed to run %s: %w", c.Program, err)
	}

	metrics.CommandExecutionsTotal.WithLabelValues(c.Program, "success").Inc()

	out := Output{Stdout: stdout.String()}
	trimmed := bytes.TrimSpace(stdout.Bytes())
	if len(trimmed) > 0 && json.Valid(trimmed) {
		out.Parsed = json.RawMessage(append([]byte(nil), trimmed...))
	}
	return out, nil
}
