// Package events defines the event taxonomy and base structures for the
// crank event system. Every user-visible step of a run is emitted as an
// event; sinks turn the stream into console lines, a JSONL log, and a
// state snapshot for outside observers.
package events

import "time"

// EventType identifies the category and nature of an event.
type EventType string

const (
	// Run lifecycle events
	EventRunStart EventType = "run.start"
	EventRunEnd   EventType = "run.end"

	// Iteration lifecycle events
	EventIterationStart EventType = "iteration.start"
	EventIterationEnd   EventType = "iteration.end"

	// Step events, one per side effect inside an iteration
	EventBranchCreated EventType = "branch.created"
	EventAgentStart    EventType = "agent.start"
	EventAgentEnd      EventType = "agent.end"
	EventCommitCreated EventType = "commit.created"
	EventNoChanges     EventType = "commit.no_changes"
	EventBranchPushed  EventType = "branch.pushed"
	EventPRCreated     EventType = "pr.created"
	EventCIWait        EventType = "ci.wait"
	EventCIResult      EventType = "ci.result"
	EventPRMerged      EventType = "pr.merged"
	EventBranchCleaned EventType = "branch.cleaned"

	// Progress tracking events
	EventCostUpdated      EventType = "cost.updated"
	EventCompletionSignal EventType = "completion.signal"

	// Error events
	EventError EventType = "error"
)

// Source constants identify the origin of events.
const (
	SourceLoop     = "loop"
	SourceAgent    = "agent"
	SourceInternal = "crank"
)

// Event is the base interface for all events in the system.
type Event interface {
	Type() EventType
	Timestamp() time.Time
	Source() string
}

// BaseEvent provides the common fields for all events. Simulated marks a
// dry-run record: the step was reported but its side effect never ran.
type BaseEvent struct {
	EventType EventType `json:"type"`
	Time      time.Time `json:"timestamp"`
	Src       string    `json:"source"`
	Simulated bool      `json:"simulated,omitempty"`
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.Time
}

// Source returns the origin of the event.
func (e BaseEvent) Source() string {
	return e.Src
}

// RunStartEvent is emitted once when the loop controller starts.
type RunStartEvent struct {
	BaseEvent
	WorkDir string `json:"work_dir"`
	Prompt  string `json:"prompt"`
	DryRun  bool   `json:"dry_run,omitempty"`
}

// RunEndEvent is emitted once when the run finishes, whatever the reason.
type RunEndEvent struct {
	BaseEvent
	Iterations int    `json:"iterations"`
	CostCents  int64  `json:"cost_cents"`
	DurationMs int64  `json:"duration_ms"`
	StopReason string `json:"stop_reason"`
}

// IterationStartEvent is emitted at the top of each iteration.
type IterationStartEvent struct {
	BaseEvent
	Number int `json:"number"`
}

// IterationEndEvent is emitted when an iteration completes. CostCents is
// the run total after the iteration's cost refresh, not a per-iteration
// delta.
type IterationEndEvent struct {
	BaseEvent
	Number     int    `json:"number"`
	Success    bool   `json:"success"`
	CostCents  int64  `json:"cost_cents"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// BranchCreatedEvent is emitted after the iteration branch is created.
type BranchCreatedEvent struct {
	BaseEvent
	Iteration int    `json:"iteration"`
	Name      string `json:"name"`
}

// AgentStartEvent is emitted before an agent invocation begins.
type AgentStartEvent struct {
	BaseEvent
	Iteration int    `json:"iteration"`
	Review    bool   `json:"review,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
}

// AgentEndEvent is emitted after an agent invocation returns.
type AgentEndEvent struct {
	BaseEvent
	Iteration  int    `json:"iteration"`
	Review     bool   `json:"review,omitempty"`
	ExitCode   int    `json:"exit_code"`
	DurationMs int64  `json:"duration_ms"`
	ShareLink  string `json:"share_link,omitempty"`
}

// CommitCreatedEvent is emitted after changes are committed.
type CommitCreatedEvent struct {
	BaseEvent
	Iteration int    `json:"iteration"`
	Message   string `json:"message"`
}

// NoChangesEvent is emitted when an iteration produced no tree changes.
type NoChangesEvent struct {
	BaseEvent
	Iteration int `json:"iteration"`
	Streak    int `json:"streak"`
	Threshold int `json:"threshold"`
}

// BranchPushedEvent is emitted after the iteration branch is pushed.
type BranchPushedEvent struct {
	BaseEvent
	Iteration int    `json:"iteration"`
	Name      string `json:"name"`
}

// PRCreatedEvent is emitted after a pull request is opened.
type PRCreatedEvent struct {
	BaseEvent
	Iteration int    `json:"iteration"`
	Number    int    `json:"number"`
	URL       string `json:"url"`
}

// CIWaitEvent is emitted before CI polling begins for a pull request.
type CIWaitEvent struct {
	BaseEvent
	PR int `json:"pr"`
}

// CI outcome values carried by CIResultEvent.
const (
	CIOutcomePassed  = "passed"
	CIOutcomeFailed  = "failed"
	CIOutcomeTimeout = "timeout"
)

// CIResultEvent is emitted once polling resolves. Failed lists the names
// of checks that completed unsuccessfully; Pending counts checks still
// running when the poll budget ran out.
type CIResultEvent struct {
	BaseEvent
	PR      int      `json:"pr"`
	Outcome string   `json:"outcome"`
	Pending int      `json:"pending,omitempty"`
	Failed  []string `json:"failed,omitempty"`
}

// PRMergedEvent is emitted after a pull request is merged.
type PRMergedEvent struct {
	BaseEvent
	Number   int    `json:"number"`
	Strategy string `json:"strategy"`
}

// BranchCleanedEvent is emitted after the local iteration branch is
// deleted during post-merge cleanup.
type BranchCleanedEvent struct {
	BaseEvent
	Name string `json:"name"`
}

// CostUpdatedEvent is emitted after each cost refresh. LimitCents is 0
// when no cost ceiling is configured.
type CostUpdatedEvent struct {
	BaseEvent
	CostCents  int64 `json:"cost_cents"`
	LimitCents int64 `json:"limit_cents,omitempty"`
}

// CompletionSignalEvent is emitted when the agent output contains the
// completion signal. Count is cumulative for the run.
type CompletionSignalEvent struct {
	BaseEvent
	Count     int `json:"count"`
	Threshold int `json:"threshold"`
}

// Severity constants for error events.
const (
	SeverityWarning = "warning"
	SeverityError   = "error"
	SeverityFatal   = "fatal"
)

// ErrorEvent is emitted for any error condition the loop survives.
type ErrorEvent struct {
	BaseEvent
	Message   string `json:"message"`
	Severity  string `json:"severity"`
	Iteration int    `json:"iteration,omitempty"`
	Step      string `json:"step,omitempty"`
}

// NewEvent creates a BaseEvent with the given type and source.
func NewEvent(eventType EventType, source string) BaseEvent {
	return BaseEvent{
		EventType: eventType,
		Time:      time.Now(),
		Src:       source,
	}
}

// NewLoopEvent creates a BaseEvent with the iteration loop as the source.
func NewLoopEvent(eventType EventType) BaseEvent {
	return NewEvent(eventType, SourceLoop)
}

// NewAgentEvent creates a BaseEvent with the agent as the source.
func NewAgentEvent(eventType EventType) BaseEvent {
	return NewEvent(eventType, SourceAgent)
}

// NewInternalEvent creates a BaseEvent with crank itself as the source.
func NewInternalEvent(eventType EventType) BaseEvent {
	return NewEvent(eventType, SourceInternal)
}
