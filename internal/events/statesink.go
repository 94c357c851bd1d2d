package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/dmelton/crank/internal/statefile"
)

// StateBufferSize is the recommended buffer size for state sink subscriptions.
const StateBufferSize = 1000

// CurrentStateVersion is the current state file format version.
// Increment this when making incompatible changes to the State struct.
const CurrentStateVersion = 1

// Run status values recorded in the state snapshot.
const (
	StatusRunning = "running"
	StatusStopped = "stopped"
)

// State is the latest run snapshot, written for outside observers. A
// stale file with Status "running" means the process died mid-run.
type State struct {
	Version         int       `json:"version"`
	Status          string    `json:"status"`
	Iteration       int       `json:"iteration"`
	Branch          string    `json:"branch,omitempty"`
	PR              int       `json:"pr,omitempty"`
	CostCents       int64     `json:"cost_cents"`
	CompletionCount int       `json:"completion_count"`
	NoChangeStreak  int       `json:"no_change_streak"`
	DryRun          bool      `json:"dry_run,omitempty"`
	StopReason      string    `json:"stop_reason,omitempty"`
	LastError       string    `json:"last_error,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DefaultMinSaveDelay is the minimum time between saves.
const DefaultMinSaveDelay = 5 * time.Second

// StateSink folds events into a State and persists it to a JSON file.
type StateSink struct {
	fs       afero.Fs
	path     string
	state    *State
	dirty    bool
	mu       sync.Mutex
	done     chan struct{}
	lastSave time.Time
	minDelay time.Duration
}

// NewStateSink creates a new StateSink that writes to the specified path.
func NewStateSink(path string) *StateSink {
	return &StateSink{
		fs:       afero.NewOsFs(),
		path:     path,
		state:    &State{Version: CurrentStateVersion},
		done:     make(chan struct{}),
		minDelay: DefaultMinSaveDelay,
	}
}

// Start loads any existing state and begins processing events.
func (s *StateSink) Start(ctx context.Context, events <-chan Event) error {
	if err := s.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load state: %w", err)
	}

	go s.run(ctx, events)
	return nil
}

func (s *StateSink) run(ctx context.Context, events <-chan Event) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			s.flushIfDirty()
			return
		case event, ok := <-events:
			if !ok {
				s.flushIfDirty()
				return
			}
			s.handleEvent(event)
		}
	}
}

func (s *StateSink) handleEvent(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e := event.(type) {
	case *RunStartEvent:
		s.state.Status = StatusRunning
		s.state.StartedAt = event.Timestamp()
		s.state.DryRun = e.DryRun
		s.dirty = true

	case *RunEndEvent:
		s.state.Status = StatusStopped
		s.state.StopReason = e.StopReason
		s.state.Iteration = e.Iterations
		s.state.CostCents = e.CostCents
		s.dirty = true
		// Always save immediately on run end
		s.saveUnlocked()
		return

	case *IterationStartEvent:
		s.state.Iteration = e.Number
		s.state.LastError = ""
		s.dirty = true

	case *IterationEndEvent:
		s.state.CostCents = e.CostCents
		if !e.Success {
			s.state.LastError = e.Error
		}
		s.dirty = true

	case *BranchCreatedEvent:
		s.state.Branch = e.Name
		s.dirty = true

	case *BranchCleanedEvent:
		s.state.Branch = ""
		s.dirty = true

	case *CommitCreatedEvent:
		s.state.NoChangeStreak = 0
		s.dirty = true

	case *NoChangesEvent:
		s.state.NoChangeStreak = e.Streak
		s.dirty = true

	case *PRCreatedEvent:
		s.state.PR = e.Number
		s.dirty = true

	case *PRMergedEvent:
		s.state.PR = 0
		s.dirty = true

	case *CostUpdatedEvent:
		s.state.CostCents = e.CostCents
		s.dirty = true

	case *CompletionSignalEvent:
		s.state.CompletionCount = e.Count
		s.dirty = true

	case *ErrorEvent:
		s.state.LastError = e.Message
		s.dirty = true
	}

	// Debounced save
	if s.dirty && time.Since(s.lastSave) >= s.minDelay {
		s.saveUnlocked()
	}
}

func (s *StateSink) saveUnlocked() {
	s.state.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "state sink: marshal error: %v\n", err)
		return
	}

	if err := statefile.WriteAtomic(s.fs, s.path, append(data, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "state sink: write error: %v\n", err)
		return
	}

	s.dirty = false
	s.lastSave = time.Now()
}

func (s *StateSink) flushIfDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dirty {
		s.saveUnlocked()
	}
}

// Stop waits for the run goroutine to finish and performs a final save if needed.
func (s *StateSink) Stop() error {
	<-s.done
	return nil
}

// Load reads the state file from disk.
// If the version is missing or incompatible, the old state is backed up and a fresh state is used.
func (s *StateSink) Load() error {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		// Corrupted JSON: backup and start fresh
		if backupErr := s.backupStateFile(); backupErr != nil {
			slog.Warn("state file corrupted, failed to backup",
				"path", s.path,
				"error", err,
				"backup_error", backupErr)
		} else {
			slog.Warn("state file corrupted, backed up and starting fresh",
				"path", s.path,
				"error", err)
		}
		s.state = &State{Version: CurrentStateVersion}
		return nil
	}

	if state.Version == 0 || state.Version != CurrentStateVersion {
		if backupErr := s.backupStateFile(); backupErr != nil {
			slog.Warn("incompatible state version, failed to backup",
				"path", s.path,
				"file_version", state.Version,
				"current_version", CurrentStateVersion,
				"backup_error", backupErr)
		} else {
			slog.Warn("incompatible state version, backed up and starting fresh",
				"path", s.path,
				"file_version", state.Version,
				"current_version", CurrentStateVersion)
		}
		s.state = &State{Version: CurrentStateVersion}
		return nil
	}

	s.state = &state
	return nil
}

// backupStateFile moves the current state file to a .backup file.
// Must be called with s.mu held.
func (s *StateSink) backupStateFile() error {
	return s.fs.Rename(s.path, s.path+".backup")
}

// State returns a copy of the current state.
func (s *StateSink) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.state
}

// Path returns the state file path.
func (s *StateSink) Path() string {
	return s.path
}

// SetMinDelay sets the minimum delay between saves (for testing).
func (s *StateSink) SetMinDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minDelay = d
}
