// Package git provides interfaces and implementations for interacting with the
// git CLI. It abstracts branch, commit, push, and worktree operations to enable
// unit testing with mocks.
package git

import "context"

// Worktree represents one entry from git worktree list output.
type Worktree struct {
	// Path is the checkout path of the worktree.
	Path string
	// Head is the commit the worktree is on.
	Head string
	// Branch is the short branch name, empty when detached.
	Branch string
}

// RemoteReader provides read access to remote configuration.
type RemoteReader interface {
	// RemoteURL returns the URL of the origin remote.
	RemoteURL(ctx context.Context) (string, error)
}

// BranchManager provides branch create/switch/delete and sync operations.
type BranchManager interface {
	// CurrentBranch returns the short name of the checked-out branch.
	CurrentBranch(ctx context.Context) (string, error)

	// CreateBranch creates a new branch and switches to it.
	CreateBranch(ctx context.Context, name string) error

	// Checkout switches to an existing branch.
	Checkout(ctx context.Context, name string) error

	// DeleteBranch force-deletes a local branch.
	DeleteBranch(ctx context.Context, name string) error

	// Pull integrates changes from the tracked remote branch.
	Pull(ctx context.Context) error
}

// Committer provides working-tree staging and publish operations.
type Committer interface {
	// HasChanges reports whether the working tree has uncommitted changes.
	HasChanges(ctx context.Context) (bool, error)

	// AddAll stages every change in the working tree.
	AddAll(ctx context.Context) error

	// Commit records staged changes with the given message.
	Commit(ctx context.Context, message string) error

	// Push publishes a branch to origin, setting the upstream.
	Push(ctx context.Context, branch string) error
}

// WorktreeOps provides linked-worktree management.
type WorktreeOps interface {
	// WorktreeAdd creates a linked worktree at path. When branch is non-empty
	// a new branch with that name is created for it.
	WorktreeAdd(ctx context.Context, path, branch string) error

	// WorktreeRemove removes a linked worktree.
	WorktreeRemove(ctx context.Context, path string, force bool) error

	// WorktreeList returns all worktrees of the repository.
	WorktreeList(ctx context.Context) ([]Worktree, error)
}

// Client combines all git operations.
// Use this when you need the full git CLI interface.
type Client interface {
	RemoteReader
	BranchManager
	Committer
	WorktreeOps
}
