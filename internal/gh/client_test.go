package gh

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dmelton/crank/internal/testutil"
)

func TestCLIClient_CreatePR(t *testing.T) {
	tests := []struct {
		name     string
		opts     CreatePROptions
		response []byte
		wantArgs []string
		wantNum  int
		wantURL  string
	}{
		{
			name: "without repo",
			opts: CreatePROptions{
				Title: "Iteration 3",
				Body:  "task description",
				Head:  "crank/i3-x",
			},
			response: []byte("https://github.com/acme/widgets/pull/17\n"),
			wantArgs: []string{"pr", "create", "--title", "Iteration 3", "--body", "task description", "--head", "crank/i3-x"},
			wantNum:  17,
			wantURL:  "https://github.com/acme/widgets/pull/17",
		},
		{
			name: "with repo",
			opts: CreatePROptions{
				Title: "Iteration 1",
				Body:  "body",
				Head:  "crank/i1-x",
				Repo:  "acme/widgets",
			},
			response: []byte("https://github.com/acme/widgets/pull/4\n"),
			wantArgs: []string{"pr", "create", "--title", "Iteration 1", "--body", "body", "--head", "crank/i1-x", "--repo", "acme/widgets"},
			wantNum:  4,
			wantURL:  "https://github.com/acme/widgets/pull/4",
		},
		{
			name: "url preceded by notice lines",
			opts: CreatePROptions{Title: "t", Body: "b", Head: "h"},
			response: []byte("Creating pull request for h into main in acme/widgets\n" +
				"https://github.com/acme/widgets/pull/99\n"),
			wantArgs: []string{"pr", "create", "--title", "t", "--body", "b", "--head", "h"},
			wantNum:  99,
			wantURL:  "https://github.com/acme/widgets/pull/99",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := testutil.NewMockRunner()
			runner.SetResponse("gh", tt.wantArgs, tt.response)

			client := NewCLIClient(runner)
			pr, err := client.CreatePR(context.Background(), tt.opts)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if pr.Number != tt.wantNum {
				t.Errorf("Number = %d, want %d", pr.Number, tt.wantNum)
			}
			if pr.URL != tt.wantURL {
				t.Errorf("URL = %q, want %q", pr.URL, tt.wantURL)
			}

			calls := runner.GetCalls()
			if len(calls) != 1 {
				t.Fatalf("expected 1 call, got %d", len(calls))
			}
		})
	}
}

func TestCLIClient_CreatePR_Errors(t *testing.T) {
	t.Run("command failure", func(t *testing.T) {
		runner := testutil.NewMockRunner()
		runner.SetError("gh", []string{"pr", "create", "--title", "t", "--body", "b", "--head", "h"},
			errors.New("a pull request already exists"))

		client := NewCLIClient(runner)
		_, err := client.CreatePR(context.Background(), CreatePROptions{Title: "t", Body: "b", Head: "h"})
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "gh pr create failed") {
			t.Errorf("error %q missing command context", err)
		}
	})

	t.Run("no url in output", func(t *testing.T) {
		runner := testutil.NewMockRunner()
		runner.SetResponse("gh", []string{"pr", "create", "--title", "t", "--body", "b", "--head", "h"},
			[]byte("something unexpected\n"))

		client := NewCLIClient(runner)
		_, err := client.CreatePR(context.Background(), CreatePROptions{Title: "t", Body: "b", Head: "h"})
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "no pull request URL") {
			t.Errorf("error %q, want URL parse failure", err)
		}
	})
}

func TestCLIClient_Checks(t *testing.T) {
	tests := []struct {
		name        string
		response    []byte
		wantTotal   int
		wantPending int
		wantFailed  []string
		wantPassed  bool
	}{
		{
			name: "all passed",
			response: []byte(`{"statusCheckRollup": [
				{"name": "build", "status": "COMPLETED", "conclusion": "SUCCESS"},
				{"name": "test", "status": "COMPLETED", "conclusion": "SUCCESS"}
			]}`),
			wantTotal:  2,
			wantPassed: true,
		},
		{
			name: "one pending",
			response: []byte(`{"statusCheckRollup": [
				{"name": "build", "status": "COMPLETED", "conclusion": "SUCCESS"},
				{"name": "test", "status": "IN_PROGRESS", "conclusion": ""}
			]}`),
			wantTotal:   2,
			wantPending: 1,
		},
		{
			name: "one failed",
			response: []byte(`{"statusCheckRollup": [
				{"name": "build", "status": "COMPLETED", "conclusion": "SUCCESS"},
				{"name": "test", "status": "COMPLETED", "conclusion": "FAILURE"}
			]}`),
			wantTotal:  2,
			wantFailed: []string{"test"},
		},
		{
			name: "timed out and cancelled count as failed",
			response: []byte(`{"statusCheckRollup": [
				{"name": "slow", "status": "COMPLETED", "conclusion": "TIMED_OUT"},
				{"name": "flaky", "status": "COMPLETED", "conclusion": "CANCELLED"}
			]}`),
			wantTotal:  2,
			wantFailed: []string{"slow", "flaky"},
		},
		{
			name: "skipped and neutral pass",
			response: []byte(`{"statusCheckRollup": [
				{"name": "lint", "status": "COMPLETED", "conclusion": "SKIPPED"},
				{"name": "notify", "status": "COMPLETED", "conclusion": "NEUTRAL"}
			]}`),
			wantTotal:  2,
			wantPassed: true,
		},
		{
			name:       "no checks configured",
			response:   []byte(`{"statusCheckRollup": []}`),
			wantTotal:  0,
			wantPassed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := testutil.NewMockRunner()
			runner.SetResponse("gh", []string{"pr", "view", "17", "--json", "statusCheckRollup"}, tt.response)

			client := NewCLIClient(runner)
			summary, err := client.Checks(context.Background(), 17)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if summary.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", summary.Total, tt.wantTotal)
			}
			if summary.Pending != tt.wantPending {
				t.Errorf("Pending = %d, want %d", summary.Pending, tt.wantPending)
			}
			if len(summary.Failed) != len(tt.wantFailed) {
				t.Fatalf("Failed = %v, want %v", summary.Failed, tt.wantFailed)
			}
			for i := range tt.wantFailed {
				if summary.Failed[i] != tt.wantFailed[i] {
					t.Errorf("Failed[%d] = %q, want %q", i, summary.Failed[i], tt.wantFailed[i])
				}
			}
			if tt.wantPassed && !summary.Passed() {
				t.Error("Passed() = false, want true")
			}
		})
	}
}

func TestCLIClient_Checks_InvalidJSON(t *testing.T) {
	runner := testutil.NewMockRunner()
	runner.SetResponse("gh", []string{"pr", "view", "17", "--json", "statusCheckRollup"}, []byte("not json"))

	client := NewCLIClient(runner)
	_, err := client.Checks(context.Background(), 17)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "parse gh pr view output") {
		t.Errorf("error %q missing parse context", err)
	}
}

func TestCLIClient_MergePR(t *testing.T) {
	tests := []struct {
		name     string
		strategy string
		wantArgs []string
	}{
		{
			name:     "squash",
			strategy: "squash",
			wantArgs: []string{"pr", "merge", "17", "--squash", "--delete-branch"},
		},
		{
			name:     "merge",
			strategy: "merge",
			wantArgs: []string{"pr", "merge", "17", "--merge", "--delete-branch"},
		},
		{
			name:     "rebase",
			strategy: "rebase",
			wantArgs: []string{"pr", "merge", "17", "--rebase", "--delete-branch"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := testutil.NewMockRunner()
			runner.SetResponse("gh", tt.wantArgs, []byte(""))

			client := NewCLIClient(runner)
			if err := client.MergePR(context.Background(), 17, tt.strategy); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			calls := runner.GetCalls()
			if len(calls) != 1 {
				t.Fatalf("expected 1 call, got %d", len(calls))
			}
		})
	}
}

func TestMockClient_ChecksSequence(t *testing.T) {
	mock := NewMockClient()
	mock.ChecksSequence = []*ChecksSummary{
		{Total: 2, Pending: 2},
		{Total: 2, Pending: 1},
		{Total: 2},
	}

	ctx := context.Background()
	first, _ := mock.Checks(ctx, 1)
	second, _ := mock.Checks(ctx, 1)
	third, _ := mock.Checks(ctx, 1)

	if first.Pending != 2 || second.Pending != 1 || third.Pending != 0 {
		t.Errorf("sequence = %d,%d,%d pending, want 2,1,0", first.Pending, second.Pending, third.Pending)
	}
	if !third.Passed() {
		t.Error("final poll should pass")
	}
}
