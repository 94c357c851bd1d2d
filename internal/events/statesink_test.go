package events

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// waitForFile polls until path exists or the deadline passes.
func waitForFile(t *testing.T, path string, timeout time.Duration) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestStateSink_FoldsEvents(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "state.json")

	sink := NewStateSink(path)
	sink.SetMinDelay(0)
	events := make(chan Event, 20)

	if err := sink.Start(context.Background(), events); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	events <- &RunStartEvent{BaseEvent: NewInternalEvent(EventRunStart), WorkDir: tmp, Prompt: "add tests"}
	events <- &IterationStartEvent{BaseEvent: NewLoopEvent(EventIterationStart), Number: 1}
	events <- &BranchCreatedEvent{BaseEvent: NewLoopEvent(EventBranchCreated), Iteration: 1, Name: "crank/i1"}
	events <- &NoChangesEvent{BaseEvent: NewLoopEvent(EventNoChanges), Iteration: 1, Streak: 1, Threshold: 3}
	events <- &PRCreatedEvent{BaseEvent: NewLoopEvent(EventPRCreated), Iteration: 1, Number: 7, URL: "https://github.com/acme/widgets/pull/7"}
	events <- &CostUpdatedEvent{BaseEvent: NewLoopEvent(EventCostUpdated), CostCents: 120}
	events <- &CompletionSignalEvent{BaseEvent: NewLoopEvent(EventCompletionSignal), Count: 1, Threshold: 2}
	events <- &PRMergedEvent{BaseEvent: NewLoopEvent(EventPRMerged), Number: 7, Strategy: "squash"}
	events <- &BranchCleanedEvent{BaseEvent: NewLoopEvent(EventBranchCleaned), Name: "crank/i1"}
	events <- &RunEndEvent{BaseEvent: NewInternalEvent(EventRunEnd), Iterations: 1, CostCents: 120, StopReason: "iteration limit reached"}
	close(events)
	_ = sink.Stop()

	state := sink.State()
	if state.Status != StatusStopped {
		t.Errorf("Status = %q, want %q", state.Status, StatusStopped)
	}
	if state.Iteration != 1 {
		t.Errorf("Iteration = %d, want 1", state.Iteration)
	}
	if state.Branch != "" {
		t.Errorf("Branch = %q, want empty after cleanup", state.Branch)
	}
	if state.PR != 0 {
		t.Errorf("PR = %d, want 0 after merge", state.PR)
	}
	if state.CostCents != 120 {
		t.Errorf("CostCents = %d, want 120", state.CostCents)
	}
	if state.CompletionCount != 1 {
		t.Errorf("CompletionCount = %d, want 1", state.CompletionCount)
	}
	if state.NoChangeStreak != 1 {
		t.Errorf("NoChangeStreak = %d, want 1", state.NoChangeStreak)
	}
	if state.StopReason != "iteration limit reached" {
		t.Errorf("StopReason = %q, want %q", state.StopReason, "iteration limit reached")
	}
	if state.StartedAt.IsZero() {
		t.Error("expected StartedAt to be set")
	}

	// Persisted snapshot matches
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read state file: %v", err)
	}
	var persisted State
	if err := json.Unmarshal(data, &persisted); err != nil {
		t.Fatalf("state file is not valid JSON: %v", err)
	}
	if persisted.Version != CurrentStateVersion {
		t.Errorf("persisted Version = %d, want %d", persisted.Version, CurrentStateVersion)
	}
	if persisted.Status != StatusStopped {
		t.Errorf("persisted Status = %q, want %q", persisted.Status, StatusStopped)
	}
}

func TestStateSink_MidIterationSnapshot(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "state.json")

	sink := NewStateSink(path)
	sink.SetMinDelay(0)
	events := make(chan Event, 10)

	if err := sink.Start(context.Background(), events); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	events <- &RunStartEvent{BaseEvent: NewInternalEvent(EventRunStart), Prompt: "add tests", DryRun: true}
	events <- &IterationStartEvent{BaseEvent: NewLoopEvent(EventIterationStart), Number: 2}
	events <- &BranchCreatedEvent{BaseEvent: NewLoopEvent(EventBranchCreated), Iteration: 2, Name: "crank/i2"}
	events <- &PRCreatedEvent{BaseEvent: NewLoopEvent(EventPRCreated), Iteration: 2, Number: 9, URL: "https://github.com/acme/widgets/pull/9"}
	close(events)
	_ = sink.Stop()

	state := sink.State()
	if state.Status != StatusRunning {
		t.Errorf("Status = %q, want %q (no run.end seen)", state.Status, StatusRunning)
	}
	if !state.DryRun {
		t.Error("expected DryRun to be recorded")
	}
	if state.Iteration != 2 {
		t.Errorf("Iteration = %d, want 2", state.Iteration)
	}
	if state.Branch != "crank/i2" {
		t.Errorf("Branch = %q, want crank/i2", state.Branch)
	}
	if state.PR != 9 {
		t.Errorf("PR = %d, want 9", state.PR)
	}
}

func TestStateSink_RunEndSavesImmediately(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "state.json")

	sink := NewStateSink(path)
	// Default min delay would normally hold saves back
	events := make(chan Event, 10)

	if err := sink.Start(context.Background(), events); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() {
		close(events)
		_ = sink.Stop()
	}()

	events <- &RunEndEvent{BaseEvent: NewInternalEvent(EventRunEnd), Iterations: 3, CostCents: 50, StopReason: "duration limit reached"}

	// The file must appear while the channel is still open
	if !waitForFile(t, path, 2*time.Second) {
		t.Fatal("expected run.end to save the state file immediately")
	}
}

func TestStateSink_ErrorRecorded(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "state.json")

	sink := NewStateSink(path)
	sink.SetMinDelay(0)
	events := make(chan Event, 10)

	if err := sink.Start(context.Background(), events); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	events <- &IterationStartEvent{BaseEvent: NewLoopEvent(EventIterationStart), Number: 1}
	events <- &ErrorEvent{BaseEvent: NewLoopEvent(EventError), Message: "push rejected", Severity: SeverityWarning, Step: "push"}
	close(events)
	_ = sink.Stop()

	if got := sink.State().LastError; got != "push rejected" {
		t.Errorf("LastError = %q, want %q", got, "push rejected")
	}

	// A new iteration clears the previous error
	sink2 := NewStateSink(filepath.Join(tmp, "state2.json"))
	sink2.SetMinDelay(0)
	events2 := make(chan Event, 10)
	if err := sink2.Start(context.Background(), events2); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	events2 <- &ErrorEvent{BaseEvent: NewLoopEvent(EventError), Message: "old failure", Severity: SeverityError}
	events2 <- &IterationStartEvent{BaseEvent: NewLoopEvent(EventIterationStart), Number: 2}
	close(events2)
	_ = sink2.Stop()

	if got := sink2.State().LastError; got != "" {
		t.Errorf("LastError = %q, want empty after iteration start", got)
	}
}

func TestStateSink_DebouncedSaveFlushedOnExit(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "state.json")

	sink := NewStateSink(path)
	sink.SetMinDelay(time.Hour)
	events := make(chan Event, 10)

	if err := sink.Start(context.Background(), events); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	events <- &IterationStartEvent{BaseEvent: NewLoopEvent(EventIterationStart), Number: 1}
	time.Sleep(50 * time.Millisecond)

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected save to be held back by the debounce delay")
	}

	close(events)
	_ = sink.Stop()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected dirty state flushed on exit: %v", err)
	}
}

func TestStateSink_LoadExistingState(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "state.json")

	existing := State{
		Version:         CurrentStateVersion,
		Status:          StatusStopped,
		Iteration:       4,
		CostCents:       321,
		CompletionCount: 1,
	}
	data, err := json.Marshal(existing)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	sink := NewStateSink(path)
	events := make(chan Event, 1)
	if err := sink.Start(context.Background(), events); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	close(events)
	_ = sink.Stop()

	state := sink.State()
	if state.Iteration != 4 {
		t.Errorf("Iteration = %d, want 4", state.Iteration)
	}
	if state.CostCents != 321 {
		t.Errorf("CostCents = %d, want 321", state.CostCents)
	}
}

func TestStateSink_CorruptedStateBackedUp(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "state.json")

	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	sink := NewStateSink(path)
	events := make(chan Event, 1)
	if err := sink.Start(context.Background(), events); err != nil {
		t.Fatalf("Start should recover from corrupted state: %v", err)
	}
	close(events)
	_ = sink.Stop()

	state := sink.State()
	if state.Version != CurrentStateVersion {
		t.Errorf("Version = %d, want fresh state version %d", state.Version, CurrentStateVersion)
	}
	if state.Iteration != 0 {
		t.Errorf("Iteration = %d, want 0 in fresh state", state.Iteration)
	}

	backup, err := os.ReadFile(path + ".backup")
	if err != nil {
		t.Fatalf("expected corrupted file backed up: %v", err)
	}
	if !strings.Contains(string(backup), "not json") {
		t.Errorf("backup content = %q, want original garbage", backup)
	}
}

func TestStateSink_IncompatibleVersionBackedUp(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "state.json")

	old := `{"version":99,"status":"stopped","iteration":7}`
	if err := os.WriteFile(path, []byte(old), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	sink := NewStateSink(path)
	events := make(chan Event, 1)
	if err := sink.Start(context.Background(), events); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	close(events)
	_ = sink.Stop()

	if got := sink.State().Iteration; got != 0 {
		t.Errorf("Iteration = %d, want 0 after version reset", got)
	}
	if _, err := os.Stat(path + ".backup"); err != nil {
		t.Errorf("expected incompatible file backed up: %v", err)
	}
}

func TestStateSink_StateReturnsCopy(t *testing.T) {
	sink := NewStateSink(filepath.Join(t.TempDir(), "state.json"))

	state := sink.State()
	state.Iteration = 99

	if sink.State().Iteration != 0 {
		t.Error("mutating the returned state must not affect the sink")
	}
}

func TestStateSink_Path(t *testing.T) {
	sink := NewStateSink("/path/to/state.json")
	if sink.Path() != "/path/to/state.json" {
		t.Errorf("Path() = %q, want %q", sink.Path(), "/path/to/state.json")
	}
}
