package worktree

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmelton/crank/internal/config"
	"github.com/dmelton/crank/internal/git"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSetupNotConfigured(t *testing.T) {
	mock := git.NewMockClient()
	m := NewManager(config.WorktreeConfig{}, mock, discardLogger())

	path, err := m.Setup(context.Background())
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if path != "" {
		t.Errorf("path = %q, want empty", path)
	}
	if len(mock.WorktreeAddCalls) != 0 {
		t.Errorf("WorktreeAddCalls = %d, want 0", len(mock.WorktreeAddCalls))
	}
	if m.Configured() {
		t.Error("Configured() = true, want false")
	}
	if m.Path() != "" {
		t.Errorf("Path() = %q, want empty", m.Path())
	}
}

func TestSetupCreatesWorktree(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "worktrees")
	mock := git.NewMockClient()
	m := NewManager(config.WorktreeConfig{Name: "run1", Dir: dir}, mock, discardLogger())

	path, err := m.Setup(context.Background())
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	want := filepath.Join(dir, "run1")
	if path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	if len(mock.WorktreeAddCalls) != 1 {
		t.Fatalf("WorktreeAddCalls = %d, want 1", len(mock.WorktreeAddCalls))
	}
	call := mock.WorktreeAddCalls[0]
	if call.Path != want {
		t.Errorf("add path = %q, want %q", call.Path, want)
	}
	if call.Branch != "crank-wt-run1" {
		t.Errorf("add branch = %q, want %q", call.Branch, "crank-wt-run1")
	}
}

func TestSetupReusesExistingPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run1")
	if err := os.MkdirAll(path, 0755); err != nil {
		t.Fatal(err)
	}

	mock := git.NewMockClient()
	m := NewManager(config.WorktreeConfig{Name: "run1", Dir: dir}, mock, discardLogger())

	got, err := m.Setup(context.Background())
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if got != path {
		t.Errorf("path = %q, want %q", got, path)
	}
	if len(mock.WorktreeAddCalls) != 0 {
		t.Errorf("WorktreeAddCalls = %d, want 0 for existing path", len(mock.WorktreeAddCalls))
	}
}

func TestSetupPathIsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run1")
	if err := os.WriteFile(path, []byte("in the way"), 0644); err != nil {
		t.Fatal(err)
	}

	mock := git.NewMockClient()
	m := NewManager(config.WorktreeConfig{Name: "run1", Dir: dir}, mock, discardLogger())

	if _, err := m.Setup(context.Background()); err == nil {
		t.Fatal("Setup() error = nil, want error for non-directory path")
	}
	if len(mock.WorktreeAddCalls) != 0 {
		t.Errorf("WorktreeAddCalls = %d, want 0", len(mock.WorktreeAddCalls))
	}
}

func TestSetupAddError(t *testing.T) {
	mock := git.NewMockClient()
	mock.WorktreeAddError = errors.New("fatal: not a git repository")
	m := NewManager(config.WorktreeConfig{Name: "run1", Dir: t.TempDir()}, mock, discardLogger())

	path, err := m.Setup(context.Background())
	if err == nil {
		t.Fatal("Setup() error = nil, want error")
	}
	if path != "" {
		t.Errorf("path = %q, want empty on error", path)
	}
}

func TestCleanupSkippedWithoutFlag(t *testing.T) {
	mock := git.NewMockClient()
	m := NewManager(config.WorktreeConfig{Name: "run1", Dir: "/tmp/w"}, mock, discardLogger())

	if err := m.Cleanup(context.Background()); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if len(mock.WorktreeRemoveCalls) != 0 {
		t.Errorf("WorktreeRemoveCalls = %d, want 0", len(mock.WorktreeRemoveCalls))
	}
	if len(mock.DeleteBranchCalls) != 0 {
		t.Errorf("DeleteBranchCalls = %d, want 0", len(mock.DeleteBranchCalls))
	}
}

func TestCleanupSkippedWithoutName(t *testing.T) {
	mock := git.NewMockClient()
	m := NewManager(config.WorktreeConfig{Cleanup: true}, mock, discardLogger())

	if err := m.Cleanup(context.Background()); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if len(mock.WorktreeRemoveCalls) != 0 {
		t.Errorf("WorktreeRemoveCalls = %d, want 0", len(mock.WorktreeRemoveCalls))
	}
}

func TestCleanupRemovesWorktreeAndBranch(t *testing.T) {
	mock := git.NewMockClient()
	m := NewManager(config.WorktreeConfig{Name: "run1", Dir: "/tmp/w", Cleanup: true}, mock, discardLogger())

	if err := m.Cleanup(context.Background()); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}

	if len(mock.WorktreeRemoveCalls) != 1 {
		t.Fatalf("WorktreeRemoveCalls = %d, want 1", len(mock.WorktreeRemoveCalls))
	}
	call := mock.WorktreeRemoveCalls[0]
	if call.Path != filepath.Join("/tmp/w", "run1") {
		t.Errorf("remove path = %q", call.Path)
	}
	if !call.Force {
		t.Error("remove force = false, want true")
	}

	if len(mock.DeleteBranchCalls) != 1 {
		t.Fatalf("DeleteBranchCalls = %d, want 1", len(mock.DeleteBranchCalls))
	}
	if got := mock.DeleteBranchCalls[0]; got != "crank-wt-run1" {
		t.Errorf("deleted branch = %q, want %q", got, "crank-wt-run1")
	}
}

func TestCleanupRemoveErrorStillTriesBranch(t *testing.T) {
	mock := git.NewMockClient()
	mock.WorktreeRemoveError = errors.New("worktree is dirty")
	m := NewManager(config.WorktreeConfig{Name: "run1", Dir: "/tmp/w", Cleanup: true}, mock, discardLogger())

	if err := m.Cleanup(context.Background()); err == nil {
		t.Fatal("Cleanup() error = nil, want remove error")
	}
	if len(mock.DeleteBranchCalls) != 1 {
		t.Errorf("DeleteBranchCalls = %d, want 1", len(mock.DeleteBranchCalls))
	}
}

func TestCleanupBranchDeleteErrorIgnored(t *testing.T) {
	mock := git.NewMockClient()
	mock.DeleteBranchError = errors.New("branch not found")
	m := NewManager(config.WorktreeConfig{Name: "run1", Dir: "/tmp/w", Cleanup: true}, mock, discardLogger())

	if err := m.Cleanup(context.Background()); err != nil {
		t.Fatalf("Cleanup() error = %v, want nil when only the branch delete fails", err)
	}
}

func TestList(t *testing.T) {
	mock := git.NewMockClient()
	mock.WorktreeListResponse = []git.Worktree{
		{Path: "/repo", Head: "abc1234", Branch: "main"},
		{Path: "/tmp/w/run1", Head: "def5678", Branch: "crank-wt-run1"},
	}
	m := NewManager(config.WorktreeConfig{Name: "run1", Dir: "/tmp/w"}, mock, discardLogger())

	got, err := m.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[1].Branch != "crank-wt-run1" {
		t.Errorf("Branch = %q, want %q", got[1].Branch, "crank-wt-run1")
	}
	if mock.WorktreeListCalls != 1 {
		t.Errorf("WorktreeListCalls = %d, want 1", mock.WorktreeListCalls)
	}
}

func TestBranchName(t *testing.T) {
	m := NewManager(config.WorktreeConfig{Name: "exp"}, git.NewMockClient(), discardLogger())
	if got := m.Branch(); got != "crank-wt-exp" {
		t.Errorf("Branch() = %q, want %q", got, "crank-wt-exp")
	}

	empty := NewManager(config.WorktreeConfig{}, git.NewMockClient(), discardLogger())
	if got := empty.Branch(); got != "" {
		t.Errorf("Branch() = %q, want empty", got)
	}
}
