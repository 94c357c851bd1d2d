// Package gh provides interfaces and implementations for interacting with the
// GitHub CLI. It abstracts pull request creation, check polling, and merging
// to enable unit testing with mocks.
package gh

import "context"

// PullRequest identifies a created pull request.
type PullRequest struct {
	Number int
	URL    string
}

// CheckRun is one entry of a pull request's check rollup.
type CheckRun struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
}

// ChecksSummary aggregates one poll of a pull request's checks.
type ChecksSummary struct {
	// Total is the number of checks reported.
	Total int
	// Pending is the number of checks that have not completed.
	Pending int
	// Failed holds the names of completed checks with a failing conclusion.
	Failed []string
}

// Passed reports whether every check completed without failure.
func (s *ChecksSummary) Passed() bool {
	return s.Pending == 0 && len(s.Failed) == 0
}

// CreatePROptions configures CreatePR.
type CreatePROptions struct {
	Title string
	Body  string
	Head  string
	// Repo is the optional owner/name target, useful when the checkout's
	// origin does not identify the repository.
	Repo string
}

// Client provides pull request operations.
type Client interface {
	// CreatePR opens a pull request for the given head branch.
	CreatePR(ctx context.Context, opts CreatePROptions) (*PullRequest, error)

	// Checks returns the current check rollup for a pull request.
	Checks(ctx context.Context, number int) (*ChecksSummary, error)

	// MergePR merges a pull request with the given strategy (squash, merge,
	// or rebase) and deletes the remote branch.
	MergePR(ctx context.Context, number int, strategy string) error
}
