package loop

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	osexec "os/exec"
	"time"

	"github.com/spf13/afero"

	"github.com/dmelton/crank/internal/agent"
	"github.com/dmelton/crank/internal/config"
	"github.com/dmelton/crank/internal/events"
	"github.com/dmelton/crank/internal/gh"
	"github.com/dmelton/crank/internal/git"
	"github.com/dmelton/crank/internal/notes"
	"github.com/dmelton/crank/internal/worktree"
)

// ServerManager is the agent server lifecycle the controller drives.
type ServerManager interface {
	// Start brings the server up and returns its endpoint, empty when the
	// run proceeds with cold invocations.
	Start(ctx context.Context) string

	// Stop terminates the server. Safe to call more than once.
	Stop()
}

// Deps bundles the run's external collaborators. Nil ambient fields (Logger,
// Spinner, Clock, FS, LookPath) get working defaults; nil Server or Worktree
// simply disables that piece.
type Deps struct {
	Git      git.Client
	GH       gh.Client
	Agent    agent.Invoker
	Server   ServerManager
	Worktree *worktree.Manager
	Router   *events.Router
	Logger   *slog.Logger
	Spinner  Spinner
	Clock    func() time.Time
	FS       afero.Fs
	LookPath func(string) (string, error)
}

func (d *Deps) fill() {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Spinner == nil {
		d.Spinner = NopSpinner{}
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.FS == nil {
		d.FS = afero.NewOsFs()
	}
	if d.LookPath == nil {
		d.LookPath = osexec.LookPath
	}
}

// Controller owns the run: preflight, setup, the iteration loop, stopping
// decisions, and teardown.
type Controller struct {
	cfg    *config.Config
	deps   Deps
	exec   *Executor
	logger *slog.Logger
	now    func() time.Time
}

// NewController creates a Controller. The config must already be validated.
func NewController(cfg *config.Config, deps Deps) *Controller {
	deps.fill()
	return &Controller{
		cfg:    cfg,
		deps:   deps,
		exec:   NewExecutor(cfg, deps),
		logger: deps.Logger,
		now:    deps.Clock,
	}
}

// Executor exposes the iteration executor so its poll knobs can be shrunk in
// tests.
func (c *Controller) Executor() *Executor {
	return c.exec
}

// Run executes the whole run and returns its summary. An error means a fatal
// setup failure before the loop started; once the loop runs, every exit path
// produces a summary, interruption included.
func (c *Controller) Run(ctx context.Context) (*Summary, error) {
	if err := c.checkDependencies(); err != nil {
		return nil, err
	}

	st := &State{StartedAt: c.now()}

	remote, ok := git.DetectRemote(ctx, c.deps.Git, c.cfg.Owner, c.cfg.Repo)
	st.HasRemote = ok
	if ok {
		st.Owner, st.Repo = remote.Owner, remote.Name
		c.logger.Info("remote detected", "owner", st.Owner, "repo", st.Repo)
	} else {
		c.logger.Info("no usable remote, running local-only")
	}

	if err := c.enterWorktree(ctx); err != nil {
		return nil, err
	}
	if err := c.bootstrapNotes(); err != nil {
		return nil, err
	}

	if c.deps.Server != nil {
		// Registered before Start so every exit path, interruption
		// included, stops the server exactly once.
		defer c.deps.Server.Stop()
		st.Endpoint = c.deps.Server.Start(ctx)
	}

	c.emit(&events.RunStartEvent{
		BaseEvent: events.NewLoopEvent(events.EventRunStart),
		WorkDir:   workDir(),
		Prompt:    c.cfg.Prompt,
		DryRun:    c.cfg.DryRun,
	})

	c.loop(ctx, st)

	if c.deps.Worktree != nil && !c.cfg.DryRun {
		if err := c.deps.Worktree.Cleanup(ctx); err != nil {
			c.logger.Warn("worktree cleanup failed", "error", err)
		}
	}

	elapsed := c.now().Sub(st.StartedAt)
	c.emit(&events.RunEndEvent{
		BaseEvent:  events.NewLoopEvent(events.EventRunEnd),
		Iterations: st.Iteration,
		CostCents:  st.CostCents,
		DurationMs: elapsed.Milliseconds(),
		StopReason: string(st.StopReason),
	})

	return &Summary{
		Iterations: st.Iteration,
		CostCents:  st.CostCents,
		Elapsed:    elapsed,
		StopReason: st.StopReason,
		DryRun:     c.cfg.DryRun,
	}, nil
}

// loop runs iterations until a stopping condition or cancellation ends the
// run. Failed iterations count toward the iteration ceiling.
func (c *Controller) loop(ctx context.Context, st *State) {
	for {
		if ctx.Err() != nil {
			st.StopReason = StopInterrupted
			return
		}
		if reason, stop := Evaluate(c.cfg, st, c.now()); stop {
			st.StopReason = reason
			return
		}

		// The executor reports failures through its own events; a failed
		// iteration still counts.
		_ = c.exec.Run(ctx, st)
		st.Iteration++

		if ctx.Err() != nil {
			st.StopReason = StopInterrupted
			return
		}
		if CompletionReached(c.cfg, st) {
			st.StopReason = StopCompletionSignal
			return
		}
		if c.cfg.NoChangeThreshold > 0 && st.NoChangeStreak >= c.cfg.NoChangeThreshold {
			st.StopReason = StopNoChange
			return
		}

		if !c.sleep(ctx) {
			st.StopReason = StopInterrupted
			return
		}
	}
}

// sleep waits the inter-iteration delay. Returns false when the context was
// canceled while waiting.
func (c *Controller) sleep(ctx context.Context) bool {
	if c.cfg.Loop.IterationDelay <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(c.cfg.Loop.IterationDelay):
		return true
	}
}

// checkDependencies verifies the required external tools before anything can
// have a side effect. Missing tools are fatal.
func (c *Controller) checkDependencies() error {
	required := []string{"git", c.cfg.Agent.Command}
	if !c.cfg.NoCommit && !c.cfg.NoPR {
		required = append(required, "gh")
	}
	for _, tool := range required {
		if _, err := c.deps.LookPath(tool); err != nil {
			return fmt.Errorf("required tool %q not found on PATH", tool)
		}
	}
	return nil
}

// enterWorktree moves the process into the linked worktree when one is
// configured. The chdir makes every later relative path resolve inside the
// worktree. Dry-run stays where it is: worktree creation is a VCS mutation.
func (c *Controller) enterWorktree(ctx context.Context) error {
	if c.deps.Worktree == nil || !c.deps.Worktree.Configured() {
		return nil
	}
	if c.cfg.DryRun {
		c.logger.Info("dry-run, not entering worktree", "path", c.deps.Worktree.Path())
		return nil
	}

	path, err := c.deps.Worktree.Setup(ctx)
	if err != nil {
		return fmt.Errorf("worktree setup: %w", err)
	}
	if err := os.Chdir(path); err != nil {
		return fmt.Errorf("enter worktree %s: %w", path, err)
	}
	c.logger.Info("running in worktree", "path", path)

	if err := c.deps.Git.Pull(ctx); err != nil {
		c.logger.Debug("pull in worktree", "error", err)
	}
	return nil
}

// bootstrapNotes creates the shared notes file when missing. An existing
// file is never touched; dry-run leaves the filesystem alone entirely.
func (c *Controller) bootstrapNotes() error {
	if c.cfg.DryRun {
		c.logger.Debug("dry-run, skipping notes bootstrap")
		return nil
	}

	created, err := notes.Bootstrap(c.deps.FS, c.cfg.NotesFile, c.cfg.Prompt)
	if err != nil {
		return fmt.Errorf("notes bootstrap: %w", err)
	}
	if created {
		c.logger.Info("notes file created", "path", c.cfg.NotesFile)
	}
	return nil
}

func (c *Controller) emit(ev events.Event) {
	if c.deps.Router != nil {
		c.deps.Router.Emit(ev)
	}
}

func workDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return wd
}
