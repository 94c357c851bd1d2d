package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dmelton/crank/internal/testutil"
)

type mockRunCmd struct {
	output []byte
	err    error
}

func (m *mockRunCmd) CombinedOutput() ([]byte, error) {
	return m.output, m.err
}

func TestCLIClient_RunPrompt_Args(t *testing.T) {
	tests := []struct {
		name     string
		opts     RunOptions
		wantArgs []string
	}{
		{
			name: "cold run",
			opts: RunOptions{Prompt: "fix the parser"},
			wantArgs: []string{
				"run", "fix the parser",
			},
		},
		{
			name: "attached run shares the session",
			opts: RunOptions{Prompt: "fix the parser", Endpoint: "http://127.0.0.1:4096"},
			wantArgs: []string{
				"run", "--attach", "http://127.0.0.1:4096", "--share", "fix the parser",
			},
		},
		{
			name: "extra args precede the prompt",
			opts: RunOptions{Prompt: "fix the parser", ExtraArgs: []string{"--model", "big"}},
			wantArgs: []string{
				"run", "--model", "big", "fix the parser",
			},
		},
		{
			name: "attached with extra args",
			opts: RunOptions{
				Prompt:    "fix the parser",
				Endpoint:  "http://127.0.0.1:4096",
				ExtraArgs: []string{"--model", "big"},
			},
			wantArgs: []string{
				"run", "--attach", "http://127.0.0.1:4096", "--share", "--model", "big", "fix the parser",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldExec := execCommand
			defer func() { execCommand = oldExec }()

			var gotName string
			var gotArgs []string
			execCommand = func(ctx context.Context, name string, arg ...string) execCmd {
				gotName = name
				gotArgs = arg
				return &mockRunCmd{output: []byte("ok\n")}
			}

			client := NewCLIClient("opencode", testutil.NewMockRunner())
			result, err := client.RunPrompt(context.Background(), tt.opts)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if gotName != "opencode" {
				t.Errorf("command = %q, want opencode", gotName)
			}
			if len(gotArgs) != len(tt.wantArgs) {
				t.Fatalf("args = %v, want %v", gotArgs, tt.wantArgs)
			}
			for i := range tt.wantArgs {
				if gotArgs[i] != tt.wantArgs[i] {
					t.Errorf("args[%d] = %q, want %q", i, gotArgs[i], tt.wantArgs[i])
				}
			}
			if result.Output != "ok\n" {
				t.Errorf("Output = %q, want ok", result.Output)
			}
			if result.ExitCode != 0 {
				t.Errorf("ExitCode = %d, want 0", result.ExitCode)
			}
		})
	}
}

func TestCLIClient_RunPrompt_LaunchFailure(t *testing.T) {
	oldExec := execCommand
	defer func() { execCommand = oldExec }()

	execCommand = func(ctx context.Context, name string, arg ...string) execCmd {
		return &mockRunCmd{err: errors.New("executable file not found")}
	}

	client := NewCLIClient("opencode", testutil.NewMockRunner())
	_, err := client.RunPrompt(context.Background(), RunOptions{Prompt: "p"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "opencode run failed") {
		t.Errorf("error %q missing command context", err)
	}
}

func TestCLIClient_RunPrompt_NonZeroExit(t *testing.T) {
	// A real process so the exit code flows through a genuine ExitError.
	fake := writeFakeAgent(t, "echo agent output\necho oops >&2\nexit 3\n")

	client := NewCLIClient(fake, testutil.NewMockRunner())
	result, err := client.RunPrompt(context.Background(), RunOptions{Prompt: "p"})
	if err != nil {
		t.Fatalf("non-zero exit should not be an error, got: %v", err)
	}
	if result.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", result.ExitCode)
	}
	if !strings.Contains(result.Output, "agent output") {
		t.Errorf("Output = %q, want stdout captured", result.Output)
	}
	if !strings.Contains(result.Output, "oops") {
		t.Errorf("Output = %q, want stderr captured", result.Output)
	}
}

func TestCLIClient_Stats(t *testing.T) {
	tests := []struct {
		name     string
		response []byte
		want     float64
		wantErr  bool
	}{
		{
			name:     "valid stats",
			response: []byte(`{"total_cost": 1.2345}`),
			want:     1.2345,
		},
		{
			name:     "zero cost",
			response: []byte(`{"total_cost": 0}`),
			want:     0,
		},
		{
			name:     "missing field defaults to zero",
			response: []byte(`{"sessions": 4}`),
			want:     0,
		},
		{
			name:     "malformed json",
			response: []byte(`not json`),
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := testutil.NewMockRunner()
			runner.SetResponse("opencode", []string{"stats", "--json"}, tt.response)

			client := NewCLIClient("opencode", runner)
			got, err := client.Stats(context.Background())

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Stats = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCLIClient_Stats_CommandFailure(t *testing.T) {
	runner := testutil.NewMockRunner()
	runner.SetError("opencode", []string{"stats", "--json"}, errors.New("no project"))

	client := NewCLIClient("opencode", runner)
	_, err := client.Stats(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "opencode stats failed") {
		t.Errorf("error %q missing command context", err)
	}
}
