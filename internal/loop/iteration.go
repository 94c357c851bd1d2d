package loop

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmelton/crank/internal/agent"
	"github.com/dmelton/crank/internal/config"
	"github.com/dmelton/crank/internal/events"
	"github.com/dmelton/crank/internal/gh"
	"github.com/dmelton/crank/internal/git"
	"github.com/dmelton/crank/internal/statefile"
)

// CIOutcome is the resolution of a CI wait.
type CIOutcome int

const (
	// CINotRun means no pull request reached the CI wait.
	CINotRun CIOutcome = iota
	// CIPassed means every check completed cleanly.
	CIPassed
	// CIFailed means at least one check completed unsuccessfully.
	CIFailed
	// CITimeout means the poll budget ran out with checks still pending.
	CITimeout
)

// Spinner shows liveness on stderr during blocking agent calls.
// Implementations decide whether to render at all; a no-op spinner is used
// when stderr is not a terminal.
type Spinner interface {
	// Start begins the animation and returns a function that stops it.
	Start(label string) (stop func())
}

// NopSpinner is a Spinner that renders nothing.
type NopSpinner struct{}

// Start implements Spinner.
func (NopSpinner) Start(string) func() { return func() {} }

// Executor runs the seven-state sequence of a single iteration: branch,
// agent invocation, review pass, commit, push + PR, CI wait, merge and
// cleanup. Any state may cut the rest of its iteration short; nothing in
// here ever ends the run.
type Executor struct {
	cfg     *config.Config
	git     git.Client
	gh      gh.Client
	agent   agent.Invoker
	cost    *agent.Tracker
	router  *events.Router
	prStore *statefile.Store
	spinner Spinner
	logger  *slog.Logger
	now     func() time.Time

	// PollInterval and MaxPollAttempts govern the CI wait. They default
	// from the loop config; tests shrink them.
	PollInterval    time.Duration
	MaxPollAttempts int
}

// NewExecutor creates an Executor for one run. Deps must have been filled.
func NewExecutor(cfg *config.Config, d Deps) *Executor {
	return &Executor{
		cfg:             cfg,
		git:             d.Git,
		gh:              d.GH,
		agent:           d.Agent,
		cost:            agent.NewTracker(d.Agent, d.Logger),
		router:          d.Router,
		prStore:         statefile.NewStore(d.FS, cfg.Paths.PRFile),
		spinner:         d.Spinner,
		logger:          d.Logger,
		now:             d.Clock,
		PollInterval:    cfg.Loop.PollInterval,
		MaxPollAttempts: cfg.Loop.MaxPollAttempts,
	}
}

// Run executes one iteration, ordinal st.Iteration+1. The returned error is
// the failure that cut the iteration short, nil when every reached state
// succeeded. The caller counts the iteration either way.
func (e *Executor) Run(ctx context.Context, st *State) error {
	ordinal := st.Iteration + 1
	started := e.now()

	e.emit(&events.IterationStartEvent{
		BaseEvent: events.NewLoopEvent(events.EventIterationStart),
		Number:    ordinal,
	})

	err := e.runStates(ctx, st, ordinal)

	end := &events.IterationEndEvent{
		BaseEvent:  events.NewLoopEvent(events.EventIterationEnd),
		Number:     ordinal,
		Success:    err == nil,
		CostCents:  st.CostCents,
		DurationMs: e.now().Sub(started).Milliseconds(),
	}
	if err != nil {
		end.Error = err.Error()
	}
	e.emit(end)
	return err
}

func (e *Executor) runStates(ctx context.Context, st *State, ordinal int) error {
	branch, err := e.branchState(ctx, st, ordinal)
	if err != nil {
		return e.fail(ordinal, "branch", err)
	}

	if err := e.invokeState(ctx, st, ordinal); err != nil {
		return e.fail(ordinal, "invoke", err)
	}

	e.reviewState(ctx, st, ordinal)

	if err := e.commitState(ctx, st, ordinal); err != nil {
		return e.fail(ordinal, "commit", err)
	}

	pr, err := e.publishState(ctx, st, ordinal, branch)
	if err != nil {
		return e.fail(ordinal, "push", err)
	}
	if pr == 0 {
		return nil
	}

	if outcome := e.awaitChecks(ctx, pr); outcome != CIPassed {
		return nil
	}

	e.mergeState(ctx, ordinal, pr, branch)
	return nil
}

// fail logs a recoverable step failure, emits its error event, and passes
// the error up so the iteration ends.
func (e *Executor) fail(ordinal int, step string, err error) error {
	e.logger.Error("iteration step failed",
		"step", step, "iteration", ordinal, "recoverable", true, "error", err)
	e.emit(&events.ErrorEvent{
		BaseEvent: events.NewLoopEvent(events.EventError),
		Message:   err.Error(),
		Severity:  events.SeverityError,
		Iteration: ordinal,
		Step:      step,
	})
	return err
}

// warn logs and emits a recoverable condition that does not end the
// iteration.
func (e *Executor) warn(ordinal int, step, message string) {
	e.logger.Warn(message, "step", step, "iteration", ordinal, "recoverable", true)
	e.emit(&events.ErrorEvent{
		BaseEvent: events.NewLoopEvent(events.EventError),
		Message:   message,
		Severity:  events.SeverityWarning,
		Iteration: ordinal,
		Step:      step,
	})
}

// shouldPublish reports whether this run creates branches and pull requests.
func (e *Executor) shouldPublish(st *State) bool {
	return !e.cfg.NoCommit && !e.cfg.NoPR && st.HasRemote
}

// branchState creates the iteration branch. Outside publishing mode nothing
// happens; in dry-run the name it would use is reported instead.
func (e *Executor) branchState(ctx context.Context, st *State, ordinal int) (string, error) {
	if !e.shouldPublish(st) {
		e.logger.Debug("branch step skipped",
			"no_commit", e.cfg.NoCommit, "no_pr", e.cfg.NoPR, "has_remote", st.HasRemote)
		return "", nil
	}

	name := BranchName(e.cfg.BranchPrefix, ordinal, e.now())
	if e.cfg.DryRun {
		e.emit(&events.BranchCreatedEvent{
			BaseEvent: simulate(events.NewLoopEvent(events.EventBranchCreated)),
			Iteration: ordinal,
			Name:      name,
		})
		return name, nil
	}

	if err := e.git.CreateBranch(ctx, name); err != nil {
		return "", fmt.Errorf("create branch %s: %w", name, err)
	}
	e.emit(&events.BranchCreatedEvent{
		BaseEvent: events.NewLoopEvent(events.EventBranchCreated),
		Iteration: ordinal,
		Name:      name,
	})
	return name, nil
}

// invokeState runs the main agent invocation with the augmented prompt and
// scans its output. A process that could not run fails the iteration; a
// non-zero exit is only a warning, because partial work may be in the tree.
func (e *Executor) invokeState(ctx context.Context, st *State, ordinal int) error {
	if e.cfg.DryRun {
		e.emit(&events.AgentStartEvent{
			BaseEvent: simulate(events.NewAgentEvent(events.EventAgentStart)),
			Iteration: ordinal,
		})
		return nil
	}

	e.emit(&events.AgentStartEvent{
		BaseEvent: events.NewAgentEvent(events.EventAgentStart),
		Iteration: ordinal,
		Endpoint:  st.Endpoint,
	})

	stop := e.spinner.Start("agent working")
	started := e.now()
	res, err := e.agent.RunPrompt(ctx, agent.RunOptions{
		Prompt:    e.cfg.AgentPrompt(),
		Endpoint:  st.Endpoint,
		ExtraArgs: e.cfg.Agent.ExtraArgs,
	})
	stop()
	if err != nil {
		return fmt.Errorf("agent invocation: %w", err)
	}
	elapsed := e.now().Sub(started)

	if res.ExitCode != 0 {
		e.warn(ordinal, "invoke", fmt.Sprintf("agent exited with code %d", res.ExitCode))
	}

	link := agent.ExtractShareLink(res.Output, agent.DefaultShareLinkPrefix)
	if link != "" {
		st.ShareLink = link
	}

	e.emit(&events.AgentEndEvent{
		BaseEvent:  events.NewAgentEvent(events.EventAgentEnd),
		Iteration:  ordinal,
		ExitCode:   res.ExitCode,
		DurationMs: elapsed.Milliseconds(),
		ShareLink:  link,
	})

	if agent.HasCompletionSignal(res.Output, e.cfg.CompletionSignal) {
		st.CompletionCount++
		e.logger.Info("completion signal detected",
			"count", st.CompletionCount, "threshold", e.cfg.CompletionThreshold)
		e.emit(&events.CompletionSignalEvent{
			BaseEvent: events.NewAgentEvent(events.EventCompletionSignal),
			Count:     st.CompletionCount,
			Threshold: e.cfg.CompletionThreshold,
		})
	}

	e.refreshCost(ctx, st)
	return nil
}

// reviewState runs the optional review pass: the literal review prompt, no
// augmentation, output logged but never scanned. Failures here are warnings;
// the iteration's real work already happened.
func (e *Executor) reviewState(ctx context.Context, st *State, ordinal int) {
	if e.cfg.ReviewPrompt == "" {
		return
	}

	if e.cfg.DryRun {
		e.emit(&events.AgentStartEvent{
			BaseEvent: simulate(events.NewAgentEvent(events.EventAgentStart)),
			Iteration: ordinal,
			Review:    true,
		})
		return
	}

	e.emit(&events.AgentStartEvent{
		BaseEvent: events.NewAgentEvent(events.EventAgentStart),
		Iteration: ordinal,
		Review:    true,
		Endpoint:  st.Endpoint,
	})

	stop := e.spinner.Start("review pass")
	started := e.now()
	res, err := e.agent.RunPrompt(ctx, agent.RunOptions{
		Prompt:    e.cfg.ReviewPrompt,
		Endpoint:  st.Endpoint,
		ExtraArgs: e.cfg.Agent.ExtraArgs,
	})
	stop()
	if err != nil {
		e.warn(ordinal, "review", "review invocation failed: "+err.Error())
		return
	}
	elapsed := e.now().Sub(started)

	if res.ExitCode != 0 {
		e.logger.Warn("review exited non-zero", "exit_code", res.ExitCode, "iteration", ordinal)
	}
	e.logger.Debug("review output", "output", events.Truncate(res.Output, 2000))

	e.emit(&events.AgentEndEvent{
		BaseEvent:  events.NewAgentEvent(events.EventAgentEnd),
		Iteration:  ordinal,
		Review:     true,
		ExitCode:   res.ExitCode,
		DurationMs: elapsed.Milliseconds(),
	})

	e.refreshCost(ctx, st)
}

// commitState stages and commits the iteration's changes and maintains the
// no-change streak. Dry-run reports the commit it would make and leaves the
// streak alone.
func (e *Executor) commitState(ctx context.Context, st *State, ordinal int) error {
	if e.cfg.NoCommit {
		e.logger.Info("commits disabled, leaving changes in the tree", "iteration", ordinal)
		return nil
	}

	message := commitMessage(ordinal, e.cfg.Prompt)
	if e.cfg.DryRun {
		e.emit(&events.CommitCreatedEvent{
			BaseEvent: simulate(events.NewLoopEvent(events.EventCommitCreated)),
			Iteration: ordinal,
			Message:   message,
		})
		return nil
	}

	changed, err := e.git.HasChanges(ctx)
	if err != nil {
		return fmt.Errorf("inspect working tree: %w", err)
	}
	if !changed {
		st.NoChangeStreak++
		e.logger.Info("no changes this iteration",
			"streak", st.NoChangeStreak, "threshold", e.cfg.NoChangeThreshold)
		e.emit(&events.NoChangesEvent{
			BaseEvent: events.NewLoopEvent(events.EventNoChanges),
			Iteration: ordinal,
			Streak:    st.NoChangeStreak,
			Threshold: e.cfg.NoChangeThreshold,
		})
		return nil
	}

	st.NoChangeStreak = 0
	if err := e.git.AddAll(ctx); err != nil {
		return fmt.Errorf("stage changes: %w", err)
	}
	if err := e.git.Commit(ctx, message); err != nil {
		return fmt.Errorf("commit changes: %w", err)
	}
	e.emit(&events.CommitCreatedEvent{
		BaseEvent: events.NewLoopEvent(events.EventCommitCreated),
		Iteration: ordinal,
		Message:   message,
	})
	return nil
}

// publishState pushes the iteration branch and opens a pull request. The
// returned number is zero when the state is skipped or no pull request came
// out of it; PR-creation failure is a warning, not an iteration failure.
func (e *Executor) publishState(ctx context.Context, st *State, ordinal int, branch string) (int, error) {
	if !e.shouldPublish(st) || branch == "" {
		return 0, nil
	}

	if e.cfg.DryRun {
		e.emit(&events.BranchPushedEvent{
			BaseEvent: simulate(events.NewLoopEvent(events.EventBranchPushed)),
			Iteration: ordinal,
			Name:      branch,
		})
		e.emit(&events.PRCreatedEvent{
			BaseEvent: simulate(events.NewLoopEvent(events.EventPRCreated)),
			Iteration: ordinal,
		})
		return 0, nil
	}

	if err := e.git.Push(ctx, branch); err != nil {
		return 0, fmt.Errorf("push branch %s: %w", branch, err)
	}
	e.emit(&events.BranchPushedEvent{
		BaseEvent: events.NewLoopEvent(events.EventBranchPushed),
		Iteration: ordinal,
		Name:      branch,
	})

	pr, err := e.gh.CreatePR(ctx, gh.CreatePROptions{
		Title: fmt.Sprintf("Iteration %d", ordinal),
		Body:  e.prBody(st),
		Head:  branch,
		Repo:  st.RepoSlug(),
	})
	if err != nil {
		e.warn(ordinal, "pr", "pull request creation failed: "+err.Error())
		return 0, nil
	}
	e.emit(&events.PRCreatedEvent{
		BaseEvent: events.NewLoopEvent(events.EventPRCreated),
		Iteration: ordinal,
		Number:    pr.Number,
		URL:       pr.URL,
	})

	// Written out before the CI wait so a crash leaves the active PR
	// discoverable. Without the record the CI wait does not run.
	if err := e.prStore.SaveInt(pr.Number); err != nil {
		e.warn(ordinal, "pr", fmt.Sprintf("persist active PR %d: %v", pr.Number, err))
		return 0, nil
	}
	return pr.Number, nil
}

// prBody builds the pull request body from the task prompt and the session
// share link when one was captured.
func (e *Executor) prBody(st *State) string {
	if st.ShareLink == "" {
		return e.cfg.Prompt
	}
	return e.cfg.Prompt + "\n\nSession: " + st.ShareLink
}

// awaitChecks polls the pull request's check rollup until every check
// completes or the poll budget runs out. Pending means not completed; failed
// means completed with a failing conclusion.
func (e *Executor) awaitChecks(ctx context.Context, pr int) CIOutcome {
	e.emit(&events.CIWaitEvent{
		BaseEvent: events.NewLoopEvent(events.EventCIWait),
		PR:        pr,
	})

	pending := 0
	for attempt := 1; ; attempt++ {
		summary, err := e.gh.Checks(ctx, pr)
		if err != nil {
			e.logger.Warn("check poll failed", "attempt", attempt, "pr", pr, "error", err)
		} else {
			pending = summary.Pending
			if summary.Pending == 0 && len(summary.Failed) == 0 {
				e.emit(&events.CIResultEvent{
					BaseEvent: events.NewLoopEvent(events.EventCIResult),
					PR:        pr,
					Outcome:   events.CIOutcomePassed,
				})
				return CIPassed
			}
			if summary.Pending == 0 {
				e.emit(&events.CIResultEvent{
					BaseEvent: events.NewLoopEvent(events.EventCIResult),
					PR:        pr,
					Outcome:   events.CIOutcomeFailed,
					Failed:    summary.Failed,
				})
				return CIFailed
			}
			e.logger.Debug("checks still running",
				"attempt", attempt, "pr", pr, "pending", summary.Pending)
		}

		if attempt >= e.MaxPollAttempts {
			break
		}
		select {
		case <-ctx.Done():
			e.logger.Debug("CI wait interrupted", "pr", pr)
			e.emit(&events.CIResultEvent{
				BaseEvent: events.NewLoopEvent(events.EventCIResult),
				PR:        pr,
				Outcome:   events.CIOutcomeTimeout,
				Pending:   pending,
			})
			return CITimeout
		case <-time.After(e.PollInterval):
		}
	}

	e.emit(&events.CIResultEvent{
		BaseEvent: events.NewLoopEvent(events.EventCIResult),
		PR:        pr,
		Outcome:   events.CIOutcomeTimeout,
		Pending:   pending,
	})
	return CITimeout
}

// mergeState merges the pull request, clears the active PR record, and
// returns the checkout to the primary branch. Merge failure is a warning;
// the post-merge cleanup runs regardless and its failures are debug-only.
func (e *Executor) mergeState(ctx context.Context, ordinal, pr int, branch string) {
	if err := e.gh.MergePR(ctx, pr, e.cfg.MergeStrategy); err != nil {
		e.warn(ordinal, "merge", fmt.Sprintf("merge of PR #%d failed: %v", pr, err))
	} else {
		e.emit(&events.PRMergedEvent{
			BaseEvent: events.NewLoopEvent(events.EventPRMerged),
			Number:    pr,
			Strategy:  e.cfg.MergeStrategy,
		})
		if err := e.prStore.Clear(); err != nil {
			e.logger.Warn("clear active PR record", "error", err)
		}
	}

	// Back onto the primary branch so the next iteration starts from it.
	if err := e.git.Checkout(ctx, "main"); err != nil {
		if err := e.git.Checkout(ctx, "master"); err != nil {
			e.logger.Debug("checkout primary branch", "error", err)
		}
	}
	if err := e.git.Pull(ctx); err != nil {
		e.logger.Debug("pull after merge", "error", err)
	}
	if err := e.git.DeleteBranch(ctx, branch); err != nil {
		e.logger.Debug("delete iteration branch", "branch", branch, "error", err)
	} else {
		e.emit(&events.BranchCleanedEvent{
			BaseEvent: events.NewLoopEvent(events.EventBranchCleaned),
			Name:      branch,
		})
	}
}

// refreshCost replaces the run total with the agent's cumulative figure.
// Reads only happen with a live server and commits enabled. A failed read
// reports zero; the total never goes backwards.
func (e *Executor) refreshCost(ctx context.Context, st *State) {
	if st.Endpoint == "" || e.cfg.NoCommit {
		return
	}

	cents := e.cost.Refresh(ctx)
	if cents < st.CostCents {
		return
	}
	st.CostCents = cents
	e.emit(&events.CostUpdatedEvent{
		BaseEvent:  events.NewAgentEvent(events.EventCostUpdated),
		CostCents:  st.CostCents,
		LimitCents: e.cfg.MaxCostCents(),
	})
}

// emit publishes an event; a nil router drops it.
func (e *Executor) emit(ev events.Event) {
	if e.router != nil {
		e.router.Emit(ev)
	}
}

// simulate marks a base event as a dry-run record.
func simulate(b events.BaseEvent) events.BaseEvent {
	b.Simulated = true
	return b
}

// commitMessage records the iteration ordinal and the task prompt.
func commitMessage(ordinal int, prompt string) string {
	return fmt.Sprintf("iteration %d: %s", ordinal, prompt)
}
