// Package loop drives the iteration cycle: the stopping policy, the
// seven-state iteration executor, and the controller that ties config,
// clients, and sinks into an unattended run.
package loop

import "time"

// StopReason identifies why the loop ended.
type StopReason string

const (
	StopIterationLimit   StopReason = "iteration limit reached"
	StopCostLimit        StopReason = "cost limit reached"
	StopDurationLimit    StopReason = "duration limit reached"
	StopNoChange         StopReason = "no changes for too long"
	StopCompletionSignal StopReason = "task complete"
	StopInterrupted      StopReason = "interrupted"
)

// State is the mutable run state. The controller owns it and passes it by
// pointer; nothing else holds a reference. Iteration and CostCents only ever
// grow, NoChangeStreak resets on any committed change, and CompletionCount
// accumulates across the whole run.
type State struct {
	// Iteration is the number of completed iterations, successful or not.
	Iteration int

	// CostCents is the run total, replaced wholesale by each cost refresh
	// from the agent's cumulative project figure.
	CostCents int64

	// StartedAt anchors the duration ceiling.
	StartedAt time.Time

	// CompletionCount is how many iterations printed the completion signal.
	CompletionCount int

	// NoChangeStreak counts consecutive iterations that left the tree clean.
	NoChangeStreak int

	// HasRemote is false in local-only mode: commits still happen but
	// branch, push, PR, CI, and merge never run.
	HasRemote bool
	Owner     string
	Repo      string

	// Endpoint is the agent server attach address, empty when invocations
	// run cold.
	Endpoint string

	// ShareLink is the most recent session share link seen in agent output.
	ShareLink string

	// StopReason is set once, when the loop decides to end.
	StopReason StopReason
}

// RepoSlug returns the owner/name form for gh --repo, empty when either part
// is unknown.
func (s *State) RepoSlug() string {
	if s.Owner == "" || s.Repo == "" {
		return ""
	}
	return s.Owner + "/" + s.Repo
}

// Summary describes a finished run for the final report.
type Summary struct {
	Iterations int
	CostCents  int64
	Elapsed    time.Duration
	StopReason StopReason
	DryRun     bool
}
