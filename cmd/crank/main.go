package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dmelton/crank/internal/agent"
	"github.com/dmelton/crank/internal/config"
	"github.com/dmelton/crank/internal/events"
	"github.com/dmelton/crank/internal/exec"
	"github.com/dmelton/crank/internal/gh"
	"github.com/dmelton/crank/internal/git"
	"github.com/dmelton/crank/internal/loop"
	"github.com/dmelton/crank/internal/shutdown"
	"github.com/dmelton/crank/internal/tui"
	"github.com/dmelton/crank/internal/update"
	"github.com/dmelton/crank/internal/worktree"
)

var version = "dev"

var (
	summaryTitleStyle = lipgloss.NewStyle().Bold(true)
	summaryLabelStyle = lipgloss.NewStyle().Faint(true)
)

// isSubcommand reports whether the first argument names a subcommand, in
// which case argument splitting is skipped and cobra dispatches normally.
// Subcommands must come first; anything later that crank does not recognize
// belongs to the agent.
func isSubcommand(root *cobra.Command, args []string) bool {
	if len(args) == 0 {
		return false
	}
	first := args[0]
	if strings.HasPrefix(first, "-") {
		return false
	}
	switch first {
	case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
		return true
	}
	for _, c := range root.Commands() {
		if c.Name() == first || c.HasAlias(first) {
			return true
		}
	}
	return false
}

// applyFlagOverrides copies explicitly set CLI flags into the loaded config.
// Only flags the user actually passed override file and environment values.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed(FlagPrompt) {
		cfg.Prompt = viper.GetString(FlagPrompt)
	}
	if cmd.Flags().Changed(FlagMaxIterations) {
		cfg.MaxIterations = viper.GetInt(FlagMaxIterations)
	}
	if cmd.Flags().Changed(FlagMaxCost) {
		cfg.MaxCost = viper.GetFloat64(FlagMaxCost)
	}
	if cmd.Flags().Changed(FlagMaxDuration) {
		cfg.MaxDuration = viper.GetString(FlagMaxDuration)
	}
	if cmd.Flags().Changed(FlagOwner) {
		cfg.Owner = viper.GetString(FlagOwner)
	}
	if cmd.Flags().Changed(FlagRepo) {
		cfg.Repo = viper.GetString(FlagRepo)
	}
	if cmd.Flags().Changed(FlagMergeStrategy) {
		cfg.MergeStrategy = viper.GetString(FlagMergeStrategy)
	}
	if cmd.Flags().Changed(FlagBranchPrefix) {
		cfg.BranchPrefix = viper.GetString(FlagBranchPrefix)
	}
	if cmd.Flags().Changed(FlagNotesFile) {
		cfg.NotesFile = viper.GetString(FlagNotesFile)
	}
	if cmd.Flags().Changed(FlagNoCommit) {
		cfg.NoCommit = viper.GetBool(FlagNoCommit)
	}
	if cmd.Flags().Changed(FlagNoPR) {
		cfg.NoPR = viper.GetBool(FlagNoPR)
	}
	if cmd.Flags().Changed(FlagWorktree) {
		// Unbound flag: its name is taken by the worktree config section.
		cfg.Worktree.Name, _ = cmd.Flags().GetString(FlagWorktree)
	}
	if cmd.Flags().Changed(FlagWorktreeDir) {
		cfg.Worktree.Dir = viper.GetString(FlagWorktreeDir)
	}
	if cmd.Flags().Changed(FlagCleanupWorktree) {
		cfg.Worktree.Cleanup = viper.GetBool(FlagCleanupWorktree)
	}
	if cmd.Flags().Changed(FlagDryRun) {
		cfg.DryRun = viper.GetBool(FlagDryRun)
	}
	if cmd.Flags().Changed(FlagCompletionSignal) {
		cfg.CompletionSignal = viper.GetString(FlagCompletionSignal)
	}
	if cmd.Flags().Changed(FlagCompletionThreshold) {
		cfg.CompletionThreshold = viper.GetInt(FlagCompletionThreshold)
	}
	if cmd.Flags().Changed(FlagNoChangeThreshold) {
		cfg.NoChangeThreshold = viper.GetInt(FlagNoChangeThreshold)
	}
	if cmd.Flags().Changed(FlagReviewPrompt) {
		cfg.ReviewPrompt = viper.GetString(FlagReviewPrompt)
	}
	if cmd.Flags().Changed(FlagAgentCmd) {
		cfg.Agent.Command = viper.GetString(FlagAgentCmd)
	}
	if cmd.Flags().Changed(FlagLogFile) {
		cfg.Paths.DebugLog = viper.GetString(FlagLogFile)
	}
}

// listWorktrees prints the repository's worktrees, one per line.
func listWorktrees(ctx context.Context, mgr *worktree.Manager, w io.Writer) error {
	wts, err := mgr.List(ctx)
	if err != nil {
		return fmt.Errorf("list worktrees: %w", err)
	}
	if len(wts) == 0 {
		fmt.Fprintln(w, "no worktrees")
		return nil
	}
	for _, wt := range wts {
		branch := wt.Branch
		if branch == "" {
			branch = "(detached)"
		}
		fmt.Fprintf(w, "%s  %s  %s\n", wt.Path, shortHead(wt.Head), branch)
	}
	return nil
}

// shortHead abbreviates a commit hash for display.
func shortHead(head string) string {
	if len(head) > 8 {
		return head[:8]
	}
	return head
}

// printSummary writes the final run report to w.
func printSummary(w io.Writer, sum *loop.Summary) {
	title := "run summary"
	if sum.DryRun {
		title = "run summary (dry-run)"
	}
	fmt.Fprintln(w, summaryTitleStyle.Render(title))
	fmt.Fprintf(w, "  %s %d\n", summaryLabelStyle.Render("iterations:"), sum.Iterations)
	fmt.Fprintf(w, "  %s %s\n", summaryLabelStyle.Render("elapsed:   "), sum.Elapsed.Round(time.Second))
	fmt.Fprintf(w, "  %s %s\n", summaryLabelStyle.Render("cost:      "), events.FormatCents(sum.CostCents))
	fmt.Fprintf(w, "  %s %s\n", summaryLabelStyle.Render("stopped:   "), sum.StopReason)
}

// printUpdateHintIfDue runs the passive daily release check and prints a
// one-line hint on stderr when a newer version exists. Failures are silent;
// the run already finished.
func printUpdateHintIfDue(ctx context.Context, logger *slog.Logger) {
	dir, err := update.StampDir()
	if err != nil {
		return
	}
	checker := update.NewChecker(afero.NewOsFs(), dir, logger)
	if !checker.Due() {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := checker.Check(ctx, version)
	if err != nil {
		logger.Debug("update check failed", "error", err)
		return
	}
	if !res.UpToDate() {
		fmt.Fprintf(os.Stderr, "crank %s is available (running %s): %s\n", res.Latest, res.Current, res.URL)
	}
}

func main() {
	logLevel := &slog.LevelVar{}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	viper.SetEnvPrefix("CRANK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// Populated by the argument split below; forwarded verbatim to every
	// agent invocation.
	var agentArgs []string

	rootCmd := &cobra.Command{
		Use:   "crank [flags] [-- agent args]",
		Short: "Unattended iteration loop for a code-generation agent",
		Long: `crank drives a code-generation agent through repeated work cycles. Each
cycle branches, invokes the agent, commits what changed, opens a pull
request, waits for CI, and merges or discards - until an iteration, cost,
or duration ceiling is reached, the tree stops changing, or the agent
signals completion.

A task prompt and at least one stopping limit are required. Arguments
crank does not recognize are forwarded to the agent; subcommands must be
the first argument.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if viper.GetBool(FlagVerbose) {
				logLevel.Set(slog.LevelDebug)
				logger.Debug("verbose logging enabled")
			}

			cfg, err := config.LoadConfig(viper.GetViper())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			applyFlagOverrides(cmd, cfg)
			cfg.Agent.ExtraArgs = append(cfg.Agent.ExtraArgs, agentArgs...)

			runner := exec.NewExecRunner()
			gitClient := git.NewCLIClient(runner).
				WithTimeouts(cfg.Loop.CallTimeout, cfg.Loop.MergeTimeout)
			wtManager := worktree.NewManager(cfg.Worktree, gitClient, logger)

			if viper.GetBool(FlagListWorktrees) {
				return listWorktrees(cmd.Context(), wtManager, os.Stdout)
			}

			if err := cfg.Validate(); err != nil {
				fmt.Fprintln(os.Stderr, cmd.UsageString())
				return err
			}

			// Long overnight runs log to a rotating file instead of stderr
			// when asked to.
			if cfg.Paths.DebugLog != "" {
				fileLogger, closer := newLogger(logLevel, cfg.Paths.DebugLog, cfg.LogRotation)
				if closer != nil {
					defer func() { _ = closer.Close() }()
				}
				logger = fileLogger
				slog.SetDefault(logger)
			}

			logger.Info("crank starting",
				"version", version,
				"max_iterations", cfg.MaxIterations,
				"max_cost", cfg.MaxCost,
				"max_duration", cfg.MaxDuration,
				"dry_run", cfg.DryRun,
			)

			ctx := cmd.Context()
			router := events.NewRouter(events.DefaultBufferSize)
			sinkCtx, sinkCancel := context.WithCancel(ctx)
			defer sinkCancel()

			console := events.NewConsoleSink(os.Stdout, viper.GetBool(FlagVerbose))
			if err := console.Start(sinkCtx, router.Subscribe()); err != nil {
				return fmt.Errorf("start console sink: %w", err)
			}

			// File sinks stay off under dry-run so a simulated run leaves
			// the filesystem untouched.
			var logSink *events.LogSink
			var stateSink *events.StateSink
			if !cfg.DryRun {
				logSink = events.NewLogSink(cfg.Paths.EventLog)
				if err := logSink.Start(sinkCtx, router.Subscribe()); err != nil {
					return fmt.Errorf("start event log sink: %w", err)
				}
				stateSink = events.NewStateSink(cfg.Paths.State)
				if err := stateSink.Start(sinkCtx, router.SubscribeBuffered(events.StateBufferSize)); err != nil {
					return fmt.Errorf("start state sink: %w", err)
				}
			}

			agentClient := agent.NewCLIClient(cfg.Agent.Command, runner).
				WithTimeouts(cfg.Agent.StatsTimeout, cfg.Agent.RunTimeout)

			ctrl := loop.NewController(cfg, loop.Deps{
				Git:      gitClient,
				GH:       gh.NewCLIClient(runner).WithTimeouts(cfg.Loop.CallTimeout, cfg.Loop.MergeTimeout),
				Agent:    agentClient,
				Server:   agent.NewServer(cfg, logger),
				Worktree: wtManager,
				Router:   router,
				Logger:   logger,
				Spinner:  tui.NewSpinner(os.Stderr),
			})

			var sum *loop.Summary
			runErr := shutdown.Run(ctx, logger, shutdown.DefaultGrace, func(runCtx context.Context) error {
				s, err := ctrl.Run(runCtx)
				sum = s
				return err
			})

			// Closing the router ends every sink's feed; the Stops block
			// until the last buffered event is flushed.
			router.Close()
			_ = console.Stop()
			if logSink != nil {
				_ = logSink.Stop()
			}
			if stateSink != nil {
				_ = stateSink.Stop()
			}

			if runErr != nil {
				return runErr
			}
			if sum != nil {
				printSummary(os.Stdout, sum)
				if sum.StopReason != loop.StopInterrupted {
					printUpdateHintIfDue(ctx, logger)
				}
			}
			return nil
		},
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().Bool(FlagVerbose, false, "Enable verbose (debug) logging")
	rootCmd.PersistentFlags().String(FlagConfig, "", "Config file path (default: .crank.yaml)")
	rootCmd.PersistentFlags().String(FlagLogFile, "", "Write logs to a rotating file instead of stderr")

	// Task and stopping limits
	rootCmd.Flags().StringP(FlagPrompt, "p", "", "Task prompt for the agent (required)")
	rootCmd.Flags().IntP(FlagMaxIterations, "n", 0, "Stop after this many iterations (0 = unlimited)")
	rootCmd.Flags().Float64(FlagMaxCost, 0, "Stop when cumulative cost reaches this many dollars")
	rootCmd.Flags().String(FlagMaxDuration, "", `Stop after this much wall time, e.g. "2 hours 30 minutes"`)

	// Repository and publishing
	rootCmd.Flags().String(FlagOwner, "", "Repository owner (default: detected from origin)")
	rootCmd.Flags().String(FlagRepo, "", "Repository name (default: detected from origin)")
	rootCmd.Flags().String(FlagMergeStrategy, config.MergeSquash, "PR merge strategy: squash, merge, or rebase")
	rootCmd.Flags().String(FlagBranchPrefix, "crank/", "Prefix for iteration branch names")
	rootCmd.Flags().String(FlagNotesFile, "AGENT_NOTES.md", "Shared notes file the agent keeps between iterations")
	rootCmd.Flags().Bool(FlagNoCommit, false, "Never commit; run the agent against the tree only")
	rootCmd.Flags().Bool(FlagNoPR, false, "Commit on the current branch but skip branches and PRs")

	// Worktree isolation
	rootCmd.Flags().String(FlagWorktree, "", "Run inside a linked worktree with this name")
	rootCmd.Flags().String(FlagWorktreeDir, "../crank-worktrees", "Base directory for linked worktrees")
	rootCmd.Flags().Bool(FlagCleanupWorktree, false, "Remove the worktree when the run ends")
	rootCmd.Flags().Bool(FlagListWorktrees, false, "List the repository's worktrees and exit")

	// Loop behavior
	rootCmd.Flags().Bool(FlagDryRun, false, "Log every step without executing side effects")
	rootCmd.Flags().String(FlagCompletionSignal, "TASK_FULLY_COMPLETE", "Phrase the agent prints when the whole task is done")
	rootCmd.Flags().Int(FlagCompletionThreshold, 2, "Completion signals needed to end the run")
	rootCmd.Flags().Int(FlagNoChangeThreshold, 3, "Consecutive no-change iterations that end the run (0 = never)")
	rootCmd.Flags().String(FlagReviewPrompt, "", "Run a second review invocation with this prompt each iteration")
	rootCmd.Flags().String(FlagAgentCmd, "opencode", "Agent CLI command")

	// Bind all flags to viper. The worktree flag stays unbound: its name is
	// taken by the worktree config section and would shadow it.
	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})
	rootCmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Name == FlagWorktree {
			return
		}
		_ = viper.BindPFlag(f.Name, f)
	})

	// Version command
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("crank %s\n", version)
		},
	}

	// Update command: the explicit check always queries, the post-run hint
	// is the one that goes through the daily stamp.
	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Check for a newer release",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := update.StampDir()
			if err != nil {
				return err
			}
			checker := update.NewChecker(afero.NewOsFs(), dir, logger)
			res, err := checker.Check(cmd.Context(), version)
			if err != nil {
				return fmt.Errorf("check for updates: %w", err)
			}
			if res.UpToDate() {
				fmt.Printf("crank %s is up to date\n", version)
				return nil
			}
			fmt.Printf("crank %s is available (running %s)\n", res.Latest, res.Current)
			if res.URL != "" {
				fmt.Println(res.URL)
			}
			return nil
		},
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(updateCmd)

	// Split our flags from agent passthrough before cobra parses. The help
	// flag is registered first so -h/--help are recognized as ours.
	rootCmd.InitDefaultHelpFlag()
	argv := os.Args[1:]
	if !isSubcommand(rootCmd, argv) {
		var own []string
		own, agentArgs = SplitArgs(rootCmd.Flags(), argv)
		rootCmd.SetArgs(own)
	}

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
