// Package exec provides command execution abstractions for production use.
// Every external collaborator (git, gh, the agent CLI) is reached through
// the CommandRunner seam so tests can substitute canned subprocesses.
package exec

import (
	"context"
	"errors"
	"os/exec"
)

// CommandRunner abstracts command execution for dependency injection.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner executes real commands using os/exec.
type ExecRunner struct{}

// NewExecRunner creates a new ExecRunner for production use.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes a command and returns its stdout. On a non-zero exit the
// returned error is an *exec.ExitError whose Stderr field carries the
// captured diagnostics.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := execCommand(ctx, name, args...)
	return cmd.Output()
}

// execCommand is a variable to allow testing.
var execCommand = execCommandImpl

func execCommandImpl(ctx context.Context, name string, args ...string) execCmd {
	return realExecCmd{cmd: exec.CommandContext(ctx, name, args...)}
}

// execCmd abstracts exec.Cmd for testing.
type execCmd interface {
	Output() ([]byte, error)
}

type realExecCmd struct {
	cmd *exec.Cmd
}

func (c realExecCmd) Output() ([]byte, error) {
	return c.cmd.Output()
}

// ExitCode extracts the process exit code from an error returned by a
// CommandRunner. Returns 0 for nil and -1 when the error does not carry
// an exit status (command not found, context cancelled).
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// Stderr extracts captured stderr from an error returned by a
// CommandRunner, empty when none is available.
func Stderr(err error) string {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return string(exitErr.Stderr)
	}
	return ""
}

// LookPath reports whether a binary is available on PATH. It is a
// variable so dependency preflight checks can be faked in tests.
var LookPath = func(name string) error {
	_, err := exec.LookPath(name)
	return err
}
