package exec

import (
	"context"
	"errors"
	"os/exec"
	"testing"
)

type mockExecCmd struct {
	output []byte
	err    error
}

func (m mockExecCmd) Output() ([]byte, error) {
	return m.output, m.err
}

func TestExecRunner_Run(t *testing.T) {
	tests := []struct {
		name       string
		mockOutput []byte
		mockErr    error
		wantErr    bool
	}{
		{
			name:       "successful command",
			mockOutput: []byte("hello world"),
			mockErr:    nil,
			wantErr:    false,
		},
		{
			name:       "command error",
			mockOutput: nil,
			mockErr:    errors.New("command failed"),
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Replace execCommand with mock
			origExecCommand := execCommand
			defer func() { execCommand = origExecCommand }()

			execCommand = func(ctx context.Context, name string, args ...string) execCmd {
				return mockExecCmd{output: tt.mockOutput, err: tt.mockErr}
			}

			runner := NewExecRunner()
			output, err := runner.Run(context.Background(), "test", "arg1", "arg2")

			if (err != nil) != tt.wantErr {
				t.Errorf("Run() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr && string(output) != string(tt.mockOutput) {
				t.Errorf("Run() output = %q, want %q", output, tt.mockOutput)
			}
		})
	}
}

func TestNewExecRunner(t *testing.T) {
	runner := NewExecRunner()
	if runner == nil {
		t.Error("NewExecRunner() returned nil")
	}
}

func TestExitCode(t *testing.T) {
	if got := ExitCode(nil); got != 0 {
		t.Errorf("ExitCode(nil) = %d, want 0", got)
	}

	if got := ExitCode(errors.New("not an exit error")); got != -1 {
		t.Errorf("ExitCode(plain error) = %d, want -1", got)
	}

	// A real non-zero exit carries its code through.
	cmd := exec.Command("sh", "-c", "exit 3")
	err := cmd.Run()
	if err == nil {
		t.Skip("sh not available")
	}
	if got := ExitCode(err); got != 3 {
		t.Errorf("ExitCode(exit 3) = %d, want 3", got)
	}
}

func TestStderr(t *testing.T) {
	if got := Stderr(errors.New("plain")); got != "" {
		t.Errorf("Stderr(plain error) = %q, want empty", got)
	}

	cmd := exec.Command("sh", "-c", "echo boom >&2; exit 1")
	_, err := cmd.Output()
	if err == nil {
		t.Skip("sh not available")
	}
	if got := Stderr(err); got != "boom\n" {
		t.Errorf("Stderr() = %q, want %q", got, "boom\n")
	}
}
