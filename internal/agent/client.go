package agent

import (
	"context"
	"encoding/json"
	"fmt"
	osexec "os/exec"
	"time"

	"github.com/dmelton/crank/internal/exec"
)

// DefaultStatsTimeout is the default timeout for the cost query.
const DefaultStatsTimeout = 10 * time.Second

// execCmd abstracts exec.Cmd for testing.
type execCmd interface {
	CombinedOutput() ([]byte, error)
}

// execCommand creates commands; replaced in tests.
var execCommand = func(ctx context.Context, name string, arg ...string) execCmd {
	return osexec.CommandContext(ctx, name, arg...)
}

// CLIClient implements Invoker by shelling out to the agent CLI.
type CLIClient struct {
	command      string
	runner       exec.CommandRunner
	statsTimeout time.Duration
	runTimeout   time.Duration
}

// NewCLIClient creates a CLIClient for the given agent command. The runner is
// used for the stats query; run invocations manage their own process so that
// stdout and stderr can be captured together.
func NewCLIClient(command string, runner exec.CommandRunner) *CLIClient {
	return &CLIClient{
		command:      command,
		runner:       runner,
		statsTimeout: DefaultStatsTimeout,
	}
}

// WithTimeouts returns a new CLIClient with the specified timeouts. A zero
// run timeout leaves invocations unbounded.
func (c *CLIClient) WithTimeouts(stats, run time.Duration) *CLIClient {
	return &CLIClient{
		command:      c.command,
		runner:       c.runner,
		statsTimeout: stats,
		runTimeout:   run,
	}
}

// RunPrompt executes one blocking agent invocation. When opts.Endpoint is set
// the agent attaches to the running server and shares the session; otherwise
// it runs cold. Non-zero exits are reported in the result, not as errors.
func (c *CLIClient) RunPrompt(ctx context.Context, opts RunOptions) (*RunResult, error) {
	if c.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.runTimeout)
		defer cancel()
	}

	args := []string{"run"}
	if opts.Endpoint != "" {
		args = append(args, "--attach", opts.Endpoint, "--share")
	}
	args = append(args, opts.ExtraArgs...)
	args = append(args, opts.Prompt)

	cmd := execCommand(ctx, c.command, args...)
	output, err := cmd.CombinedOutput()

	result := &RunResult{
		Output:   string(output),
		ExitCode: exec.ExitCode(err),
	}
	if err != nil && result.ExitCode < 0 {
		return nil, fmt.Errorf("%s run failed: %w", c.command, err)
	}

	return result, nil
}

// Stats returns the agent's cumulative project cost in decimal currency.
func (c *CLIClient) Stats(ctx context.Context) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.statsTimeout)
	defer cancel()

	output, err := c.runner.Run(ctx, c.command, "stats", "--json")
	if err != nil {
		return 0, fmt.Errorf("%s stats failed: %w", c.command, err)
	}

	var stats struct {
		TotalCost float64 `json:"total_cost"`
	}
	if err := json.Unmarshal(output, &stats); err != nil {
		return 0, fmt.Errorf("parse %s stats output: %w", c.command, err)
	}

	return stats.TotalCost, nil
}

// Verify CLIClient implements Invoker interface.
var _ Invoker = (*CLIClient)(nil)
