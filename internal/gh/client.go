package gh

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmelton/crank/internal/exec"
)

// DefaultTimeout is the default timeout for gh CLI commands.
const DefaultTimeout = 30 * time.Second

// DefaultMergeTimeout is the default timeout for pr merge, which waits on the
// host to finish the merge.
const DefaultMergeTimeout = 2 * time.Minute

// CLIClient implements Client by shelling out to the gh CLI.
type CLIClient struct {
	runner       exec.CommandRunner
	timeout      time.Duration
	mergeTimeout time.Duration
}

// NewCLIClient creates a CLIClient with the given command runner.
func NewCLIClient(runner exec.CommandRunner) *CLIClient {
	return &CLIClient{
		runner:       runner,
		timeout:      DefaultTimeout,
		mergeTimeout: DefaultMergeTimeout,
	}
}

// WithTimeouts returns a new CLIClient with the specified timeouts.
func (c *CLIClient) WithTimeouts(call, merge time.Duration) *CLIClient {
	return &CLIClient{
		runner:       c.runner,
		timeout:      call,
		mergeTimeout: merge,
	}
}

// CreatePR opens a pull request for the given head branch.
func (c *CLIClient) CreatePR(ctx context.Context, opts CreatePROptions) (*PullRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := []string{"pr", "create", "--title", opts.Title, "--body", opts.Body, "--head", opts.Head}
	if opts.Repo != "" {
		args = append(args, "--repo", opts.Repo)
	}

	output, err := c.runner.Run(ctx, "gh", args...)
	if err != nil {
		return nil, fmt.Errorf("gh pr create failed: %w", err)
	}

	return parsePRURL(string(output))
}

// parsePRURL extracts the pull request identity from gh pr create output,
// which prints the PR URL on its own line.
func parsePRURL(out string) (*PullRequest, error) {
	var url string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "http") {
			url = line
		}
	}
	if url == "" {
		return nil, fmt.Errorf("no pull request URL in gh output: %q", strings.TrimSpace(out))
	}

	idx := strings.LastIndexByte(url, '/')
	number, err := strconv.Atoi(url[idx+1:])
	if err != nil {
		return nil, fmt.Errorf("parse pull request number from %q: %w", url, err)
	}

	return &PullRequest{Number: number, URL: url}, nil
}

// Checks returns the current check rollup for a pull request. A check counts
// as pending until its status is COMPLETED; a completed check counts as
// failed when its conclusion is FAILURE, TIMED_OUT, or CANCELLED. Anything
// else (SUCCESS, NEUTRAL, SKIPPED) passes.
func (c *CLIClient) Checks(ctx context.Context, number int) (*ChecksSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	output, err := c.runner.Run(ctx, "gh", "pr", "view", strconv.Itoa(number), "--json", "statusCheckRollup")
	if err != nil {
		return nil, fmt.Errorf("gh pr view %d failed: %w", number, err)
	}

	var view struct {
		StatusCheckRollup []CheckRun `json:"statusCheckRollup"`
	}
	if err := json.Unmarshal(output, &view); err != nil {
		return nil, fmt.Errorf("parse gh pr view output: %w", err)
	}

	summary := &ChecksSummary{Total: len(view.StatusCheckRollup)}
	for _, check := range view.StatusCheckRollup {
		if check.Status != "COMPLETED" {
			summary.Pending++
			continue
		}
		switch check.Conclusion {
		case "FAILURE", "TIMED_OUT", "CANCELLED":
			summary.Failed = append(summary.Failed, check.Name)
		}
	}

	return summary, nil
}

// MergePR merges a pull request with the given strategy and deletes the
// remote branch.
func (c *CLIClient) MergePR(ctx context.Context, number int, strategy string) error {
	ctx, cancel := context.WithTimeout(ctx, c.mergeTimeout)
	defer cancel()

	_, err := c.runner.Run(ctx, "gh", "pr", "merge", strconv.Itoa(number), "--"+strategy, "--delete-branch")
	if err != nil {
		return fmt.Errorf("gh pr merge %d failed: %w", number, err)
	}

	return nil
}

// Verify CLIClient implements Client interface.
var _ Client = (*CLIClient)(nil)
