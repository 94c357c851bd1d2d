// Package agent provides the client for the code-generation agent CLI: prompt
// invocation (cold or attached to a running server), output scanning, cost
// queries, and the lifecycle of the detached server process shared by every
// iteration of a run.
package agent

import "context"

// RunOptions configures a single agent invocation.
type RunOptions struct {
	// Prompt is the full prompt text passed as the final argument.
	Prompt string
	// Endpoint, when non-empty, selects the attached fast path against a
	// running server.
	Endpoint string
	// ExtraArgs are forwarded verbatim before the prompt.
	ExtraArgs []string
}

// RunResult is the outcome of an agent invocation that actually ran.
type RunResult struct {
	// Output is the combined stdout and stderr of the invocation.
	Output string
	// ExitCode is the process exit code; non-zero exits are reported here
	// rather than as errors so an iteration can continue past them.
	ExitCode int
}

// Invoker runs prompts through the agent CLI.
type Invoker interface {
	// RunPrompt executes one blocking agent invocation. An error is returned
	// only when the process could not run at all.
	RunPrompt(ctx context.Context, opts RunOptions) (*RunResult, error)

	// Stats returns the agent's cumulative project cost in decimal currency.
	Stats(ctx context.Context) (float64, error)
}
