// Package worktree isolates a run in a linked git worktree so the main
// checkout stays untouched while iterations branch, commit, and merge.
package worktree

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dmelton/crank/internal/config"
	"github.com/dmelton/crank/internal/git"
)

// branchPrefix names the branch each linked worktree is created on.
const branchPrefix = "crank-wt-"

// Client is the git surface the manager needs.
type Client interface {
	git.WorktreeOps

	// DeleteBranch force-deletes a local branch.
	DeleteBranch(ctx context.Context, name string) error
}

// Manager creates the run worktree on demand and tears it down on exit.
type Manager struct {
	cfg    config.WorktreeConfig
	git    Client
	logger *slog.Logger
}

// NewManager creates a Manager for the given worktree settings.
func NewManager(cfg config.WorktreeConfig, client Client, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		git:    client,
		logger: logger,
	}
}

// Configured reports whether a worktree name is set for this run.
func (m *Manager) Configured() bool {
	return m.cfg.Name != ""
}

// Path returns the worktree checkout path, empty when not configured.
func (m *Manager) Path() string {
	if m.cfg.Name == "" {
		return ""
	}
	return filepath.Join(m.cfg.Dir, m.cfg.Name)
}

// Branch returns the branch the worktree is created on.
func (m *Manager) Branch() string {
	if m.cfg.Name == "" {
		return ""
	}
	return branchPrefix + m.cfg.Name
}

// Setup ensures the configured worktree exists and returns its path. With no
// name configured it returns an empty path and the run stays in place. An
// existing directory at the path is reused as-is so repeated runs share one
// worktree.
func (m *Manager) Setup(ctx context.Context) (string, error) {
	if m.cfg.Name == "" {
		return "", nil
	}

	path := m.Path()
	info, err := os.Stat(path)
	switch {
	case err == nil && !info.IsDir():
		return "", fmt.Errorf("worktree path %s exists and is not a directory", path)
	case err == nil:
		m.logger.Debug("reusing existing worktree", "path", path)
		return path, nil
	case !os.IsNotExist(err):
		return "", fmt.Errorf("check worktree path %s: %w", path, err)
	}

	m.logger.Info("creating worktree", "path", path, "branch", m.Branch())
	if err := m.git.WorktreeAdd(ctx, path, m.Branch()); err != nil {
		return "", fmt.Errorf("add worktree %s: %w", path, err)
	}
	return path, nil
}

// Cleanup removes the worktree and its branch. It only acts when a name is
// configured and cleanup-on-exit was requested.
func (m *Manager) Cleanup(ctx context.Context) error {
	if m.cfg.Name == "" || !m.cfg.Cleanup {
		return nil
	}

	path := m.Path()
	m.logger.Info("removing worktree", "path", path)
	removeErr := m.git.WorktreeRemove(ctx, path, true)

	// Best-effort: with the worktree still attached the delete fails, and the
	// remove error is the one worth reporting.
	if err := m.git.DeleteBranch(ctx, m.Branch()); err != nil {
		m.logger.Debug("worktree branch not deleted", "branch", m.Branch(), "error", err)
	}

	if removeErr != nil {
		return fmt.Errorf("remove worktree %s: %w", path, removeErr)
	}
	return nil
}

// List returns the repository's worktrees.
func (m *Manager) List(ctx context.Context) ([]git.Worktree, error) {
	return m.git.WorktreeList(ctx)
}
