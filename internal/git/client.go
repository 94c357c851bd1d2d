package git

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmelton/crank/internal/exec"
)

// DefaultTimeout is the default timeout for local git commands.
const DefaultTimeout = 30 * time.Second

// DefaultNetworkTimeout is the default timeout for git commands that talk to
// the remote (push, pull).
const DefaultNetworkTimeout = 2 * time.Minute

// CLIClient implements Client by shelling out to the git CLI.
type CLIClient struct {
	runner         exec.CommandRunner
	timeout        time.Duration
	networkTimeout time.Duration
}

// NewCLIClient creates a CLIClient with the given command runner.
func NewCLIClient(runner exec.CommandRunner) *CLIClient {
	return &CLIClient{
		runner:         runner,
		timeout:        DefaultTimeout,
		networkTimeout: DefaultNetworkTimeout,
	}
}

// WithTimeouts returns a new CLIClient with the specified timeouts for local
// and network commands.
func (c *CLIClient) WithTimeouts(local, network time.Duration) *CLIClient {
	return &CLIClient{
		runner:         c.runner,
		timeout:        local,
		networkTimeout: network,
	}
}

// RemoteURL returns the URL of the origin remote.
func (c *CLIClient) RemoteURL(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	output, err := c.runner.Run(ctx, "git", "remote", "get-url", "origin")
	if err != nil {
		return "", fmt.Errorf("git remote get-url origin failed: %w", err)
	}

	return strings.TrimSpace(string(output)), nil
}

// CurrentBranch returns the short name of the checked-out branch.
func (c *CLIClient) CurrentBranch(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	output, err := c.runner.Run(ctx, "git", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git rev-parse failed: %w", err)
	}

	return strings.TrimSpace(string(output)), nil
}

// CreateBranch creates a new branch and switches to it.
func (c *CLIClient) CreateBranch(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.runner.Run(ctx, "git", "checkout", "-b", name)
	if err != nil {
		return fmt.Errorf("git checkout -b %s failed: %w", name, err)
	}

	return nil
}

// Checkout switches to an existing branch.
func (c *CLIClient) Checkout(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.runner.Run(ctx, "git", "checkout", name)
	if err != nil {
		return fmt.Errorf("git checkout %s failed: %w", name, err)
	}

	return nil
}

// DeleteBranch force-deletes a local branch.
func (c *CLIClient) DeleteBranch(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.runner.Run(ctx, "git", "branch", "-D", name)
	if err != nil {
		return fmt.Errorf("git branch -D %s failed: %w", name, err)
	}

	return nil
}

// Pull integrates changes from the tracked remote branch.
func (c *CLIClient) Pull(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.networkTimeout)
	defer cancel()

	_, err := c.runner.Run(ctx, "git", "pull")
	if err != nil {
		return fmt.Errorf("git pull failed: %w", err)
	}

	return nil
}

// HasChanges reports whether the working tree has uncommitted changes.
func (c *CLIClient) HasChanges(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	output, err := c.runner.Run(ctx, "git", "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("git status failed: %w", err)
	}

	return len(strings.TrimSpace(string(output))) > 0, nil
}

// AddAll stages every change in the working tree.
func (c *CLIClient) AddAll(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.runner.Run(ctx, "git", "add", "-A")
	if err != nil {
		return fmt.Errorf("git add -A failed: %w", err)
	}

	return nil
}

// Commit records staged changes with the given message.
func (c *CLIClient) Commit(ctx context.Context, message string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.runner.Run(ctx, "git", "commit", "-m", message)
	if err != nil {
		return fmt.Errorf("git commit failed: %w", err)
	}

	return nil
}

// Push publishes a branch to origin, setting the upstream.
func (c *CLIClient) Push(ctx context.Context, branch string) error {
	ctx, cancel := context.WithTimeout(ctx, c.networkTimeout)
	defer cancel()

	_, err := c.runner.Run(ctx, "git", "push", "-u", "origin", branch)
	if err != nil {
		return fmt.Errorf("git push failed: %w", err)
	}

	return nil
}

// WorktreeAdd creates a linked worktree at path. When branch is non-empty a
// new branch with that name is created for it.
func (c *CLIClient) WorktreeAdd(ctx context.Context, path, branch string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := []string{"worktree", "add"}
	if branch != "" {
		args = append(args, "-b", branch)
	}
	args = append(args, path)

	_, err := c.runner.Run(ctx, "git", args...)
	if err != nil {
		return fmt.Errorf("git worktree add %s failed: %w", path, err)
	}

	return nil
}

// WorktreeRemove removes a linked worktree.
func (c *CLIClient) WorktreeRemove(ctx context.Context, path string, force bool) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)

	_, err := c.runner.Run(ctx, "git", args...)
	if err != nil {
		return fmt.Errorf("git worktree remove %s failed: %w", path, err)
	}

	return nil
}

// WorktreeList returns all worktrees of the repository.
func (c *CLIClient) WorktreeList(ctx context.Context) ([]Worktree, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	output, err := c.runner.Run(ctx, "git", "worktree", "list", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("git worktree list failed: %w", err)
	}

	return parseWorktreeList(string(output)), nil
}

// parseWorktreeList parses git worktree list --porcelain output. Each entry is
// a group of attribute lines starting with a worktree line; groups are
// separated by blank lines.
func parseWorktreeList(out string) []Worktree {
	var trees []Worktree
	var cur Worktree

	flush := func() {
		if cur.Path != "" {
			trees = append(trees, cur)
		}
		cur = Worktree{}
	}

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case strings.HasPrefix(line, "worktree "):
			flush()
			cur.Path = strings.TrimPrefix(line, "worktree ")
		case strings.HasPrefix(line, "HEAD "):
			cur.Head = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			cur.Branch = strings.TrimPrefix(strings.TrimPrefix(line, "branch "), "refs/heads/")
		}
	}
	flush()

	return trees
}

// Verify CLIClient implements Client interface.
var _ Client = (*CLIClient)(nil)
