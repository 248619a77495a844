// Package exec runs external commands behind an interface so callers such as the
// crontab scheduler can be tested against an in-memory fake.
package exec

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
)

// CommandExecutor runs external commands.
type CommandExecutor interface {
	// Execute runs a command and returns stdout, stderr, and any error that occurred.
	Execute(ctx context.Context, name string, args ...string) (stdout []byte, stderr []byte, err error)

	// ExecuteWithInput is Execute with stdin fed from input.
	ExecuteWithInput(ctx context.Context, input []byte, name string, args ...string) (stdout []byte, stderr []byte, err error)

	// LookPath resolves name the way Execute would.
	LookPath(name string) (string, error)
}

// RealCommandExecutor executes actual commands using os/exec.
type RealCommandExecutor struct {
	// Env, when set, is appended to the current process environment.
	Env []string
}

// Execute runs an actual command.
func (r *RealCommandExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	return r.run(ctx, nil, name, args...)
}

// ExecuteWithInput runs an actual command with stdin.
func (r *RealCommandExecutor) ExecuteWithInput(ctx context.Context, input []byte, name string, args ...string) ([]byte, []byte, error) {
	return r.run(ctx, bytes.NewReader(input), name, args...)
}

// LookPath delegates to os/exec.
func (r *RealCommandExecutor) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func (r *RealCommandExecutor) run(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	if stdin != nil {
		cmd.Stdin = stdin
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// DefaultExecutor returns the standard production executor.
func DefaultExecutor() CommandExecutor {
	return &RealCommandExecutor{}
}
