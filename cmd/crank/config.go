package main

// Flag names for viper binding.
const (
	// Ambient flags
	FlagVerbose = "verbose"
	FlagConfig  = "config"
	FlagLogFile = "log-file"

	// Task and stopping limits
	FlagPrompt        = "prompt"
	FlagMaxIterations = "max-iterations"
	FlagMaxCost       = "max-cost"
	FlagMaxDuration   = "max-duration"

	// Repository and publishing
	FlagOwner         = "owner"
	FlagRepo          = "repo"
	FlagMergeStrategy = "merge-strategy"
	FlagBranchPrefix  = "branch-prefix"
	FlagNotesFile     = "notes-file"
	FlagNoCommit      = "no-commit"
	FlagNoPR          = "no-pr"

	// Worktree isolation
	FlagWorktree        = "worktree"
	FlagWorktreeDir     = "worktree-dir"
	FlagCleanupWorktree = "cleanup-worktree"
	FlagListWorktrees   = "list-worktrees"

	// Loop behavior
	FlagDryRun              = "dry-run"
	FlagCompletionSignal    = "completion-signal"
	FlagCompletionThreshold = "completion-threshold"
	FlagNoChangeThreshold   = "no-change-threshold"
	FlagReviewPrompt        = "review-prompt"
	FlagAgentCmd            = "agent-cmd"
)
