// Package config provides configuration types and defaults for crank.
package config

import (
	"fmt"
	"time"
)

// Merge strategies accepted by the PR merge step.
const (
	MergeSquash = "squash"
	MergeMerge  = "merge"
	MergeRebase = "rebase"
)

// Config holds all configuration for a crank run. It is immutable after
// LoadConfig + flag overrides; the loop only ever reads it.
type Config struct {
	Prompt       string `yaml:"prompt" mapstructure:"prompt"`
	ReviewPrompt string `yaml:"review_prompt" mapstructure:"review_prompt"`

	MaxIterations int     `yaml:"max_iterations" mapstructure:"max_iterations"` // 0 = unlimited
	MaxCost       float64 `yaml:"max_cost" mapstructure:"max_cost"`             // dollars, 0 = unlimited
	MaxDuration   string  `yaml:"max_duration" mapstructure:"max_duration"`     // human string, e.g. "2 hours 30 minutes"

	Owner         string `yaml:"owner" mapstructure:"owner"`
	Repo          string `yaml:"repo" mapstructure:"repo"`
	MergeStrategy string `yaml:"merge_strategy" mapstructure:"merge_strategy"`
	BranchPrefix  string `yaml:"branch_prefix" mapstructure:"branch_prefix"`
	NotesFile     string `yaml:"notes_file" mapstructure:"notes_file"`

	NoCommit bool `yaml:"no_commit" mapstructure:"no_commit"` // never commit; implies no branch/PR/merge
	NoPR     bool `yaml:"no_pr" mapstructure:"no_pr"`         // commit on the current branch, skip branch/PR/merge
	DryRun   bool `yaml:"dry_run" mapstructure:"dry_run"`

	CompletionSignal    string `yaml:"completion_signal" mapstructure:"completion_signal"`
	CompletionThreshold int    `yaml:"completion_threshold" mapstructure:"completion_threshold"`
	NoChangeThreshold   int    `yaml:"no_change_threshold" mapstructure:"no_change_threshold"` // 0 = disabled

	// AugmentTemplate wraps the task prompt for the main agent invocation.
	// The review pass always sends ReviewPrompt verbatim.
	AugmentTemplate string `yaml:"augment_template" mapstructure:"augment_template"`

	Agent       AgentConfig       `yaml:"agent" mapstructure:"agent"`
	Loop        LoopConfig        `yaml:"loop" mapstructure:"loop"`
	Worktree    WorktreeConfig    `yaml:"worktree" mapstructure:"worktree"`
	Paths       PathsConfig       `yaml:"paths" mapstructure:"paths"`
	LogRotation LogRotationConfig `yaml:"log_rotation" mapstructure:"log_rotation"`
}

// AgentConfig holds settings for the external code-generation agent.
type AgentConfig struct {
	Command      string        `yaml:"command" mapstructure:"command"`             // agent binary on PATH
	Port         int           `yaml:"port" mapstructure:"port"`                   // server-mode port
	Warmup       time.Duration `yaml:"warmup" mapstructure:"warmup"`               // wait after server launch before probing
	ProbeTimeout time.Duration `yaml:"probe_timeout" mapstructure:"probe_timeout"` // liveness dial timeout
	StopGrace    time.Duration `yaml:"stop_grace" mapstructure:"stop_grace"`       // SIGTERM grace before SIGKILL
	StatsTimeout time.Duration `yaml:"stats_timeout" mapstructure:"stats_timeout"` // cost query timeout
	RunTimeout   time.Duration `yaml:"run_timeout" mapstructure:"run_timeout"`     // per-invocation timeout (0 = none)
	ExtraArgs    []string      `yaml:"extra_args" mapstructure:"extra_args"`       // forwarded verbatim to every invocation
}

// LoopConfig holds iteration-loop timing knobs. Tests shrink these.
type LoopConfig struct {
	PollInterval    time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`         // CI status poll interval
	MaxPollAttempts int           `yaml:"max_poll_attempts" mapstructure:"max_poll_attempts"` // CI poll budget
	IterationDelay  time.Duration `yaml:"iteration_delay" mapstructure:"iteration_delay"`     // sleep between iterations
	CallTimeout     time.Duration `yaml:"call_timeout" mapstructure:"call_timeout"`           // git/gh call timeout
	MergeTimeout    time.Duration `yaml:"merge_timeout" mapstructure:"merge_timeout"`         // push/merge call timeout
}

// WorktreeConfig holds linked-worktree isolation settings.
type WorktreeConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`       // empty = run in place
	Dir     string `yaml:"dir" mapstructure:"dir"`         // base directory for linked worktrees
	Cleanup bool   `yaml:"cleanup" mapstructure:"cleanup"` // remove the worktree on exit
}

// PathsConfig holds file paths for run state and logs.
type PathsConfig struct {
	PRFile    string `yaml:"pr_file" mapstructure:"pr_file"`       // single-line active PR id
	EventLog  string `yaml:"event_log" mapstructure:"event_log"`   // JSONL event sink
	State     string `yaml:"state" mapstructure:"state"`           // latest run-state snapshot
	ServerPID string `yaml:"server_pid" mapstructure:"server_pid"` // agent server pidfile
	ServerLog string `yaml:"server_log" mapstructure:"server_log"` // agent server stdio
	DebugLog  string `yaml:"debug_log" mapstructure:"debug_log"`   // slog output file (empty = stderr)
}

// LogRotationConfig holds settings for debug log rotation (lumberjack).
type LogRotationConfig struct {
	MaxSizeMB  int  `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool `yaml:"compress" mapstructure:"compress"`
}

// Default returns a Config with working defaults for every knob except the
// prompt and the stopping limits, which the operator must supply.
func Default() *Config {
	return &Config{
		MergeStrategy:       MergeSquash,
		BranchPrefix:        "crank/",
		NotesFile:           "AGENT_NOTES.md",
		CompletionSignal:    "TASK_FULLY_COMPLETE",
		CompletionThreshold: 2,
		NoChangeThreshold:   3,
		AugmentTemplate:     DefaultAugmentTemplate,
		Agent: AgentConfig{
			Command:      "opencode",
			Port:         4096,
			Warmup:       3 * time.Second,
			ProbeTimeout: 2 * time.Second,
			StopGrace:    5 * time.Second,
			StatsTimeout: 10 * time.Second,
			RunTimeout:   0,
			ExtraArgs:    []string{},
		},
		Loop: LoopConfig{
			PollInterval:    10 * time.Second,
			MaxPollAttempts: 180,
			IterationDelay:  2 * time.Second,
			CallTimeout:     30 * time.Second,
			MergeTimeout:    2 * time.Minute,
		},
		Worktree: WorktreeConfig{
			Dir: "../crank-worktrees",
		},
		Paths: PathsConfig{
			PRFile:    ".crank/active-pr",
			EventLog:  ".crank/events.jsonl",
			State:     ".crank/state.json",
			ServerPID: ".crank/server.pid",
			ServerLog: ".crank/server.log",
		},
		LogRotation: LogRotationConfig{
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
	}
}

// MaxDurationSecs returns the duration ceiling in seconds, 0 when unset or
// unparseable. The lenient parse means a garbage value counts as no limit.
func (c *Config) MaxDurationSecs() int64 {
	return ParseHumanDuration(c.MaxDuration)
}

// MaxCostCents returns the cost ceiling in cents, 0 when unset. Truncation
// matches the cost tracker's conversion so the two sides compare cleanly.
func (c *Config) MaxCostCents() int64 {
	return int64(c.MaxCost * 100)
}

// HasStoppingLimit reports whether at least one of the three hard ceilings
// (iterations, cost, duration) is configured.
func (c *Config) HasStoppingLimit() bool {
	return c.MaxIterations > 0 || c.MaxCost > 0 || c.MaxDurationSecs() > 0
}

// Validate checks operator-supplied fields. Failures here are fatal: the run
// must not start and no side effects may have happened yet.
func (c *Config) Validate() error {
	if c.Prompt == "" {
		return fmt.Errorf("a task prompt is required (--prompt)")
	}
	if !c.HasStoppingLimit() {
		return fmt.Errorf("at least one stopping limit is required (--max-iterations, --max-cost, or --max-duration)")
	}
	switch c.MergeStrategy {
	case MergeSquash, MergeMerge, MergeRebase:
	default:
		return fmt.Errorf("invalid merge strategy %q (supported: %s, %s, %s)",
			c.MergeStrategy, MergeSquash, MergeMerge, MergeRebase)
	}
	if c.CompletionThreshold < 1 {
		return fmt.Errorf("completion threshold must be at least 1, got %d", c.CompletionThreshold)
	}
	if c.NoChangeThreshold < 0 {
		return fmt.Errorf("no-change threshold must not be negative, got %d", c.NoChangeThreshold)
	}
	if c.Agent.Command == "" {
		return fmt.Errorf("agent command must not be empty")
	}
	if c.Agent.Port <= 0 || c.Agent.Port > 65535 {
		return fmt.Errorf("invalid agent server port %d", c.Agent.Port)
	}
	return nil
}
