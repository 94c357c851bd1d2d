package events

import (
	"encoding/json"
	"log/slog"
)

// eventEnvelope is used for initial JSON parsing to determine event type.
type eventEnvelope struct {
	Type EventType `json:"type"`
}

// ParseEvent parses a JSONL line into a typed Event.
// Returns nil with no error for unknown event types (for forward compatibility).
func ParseEvent(line []byte) (Event, error) {
	// First pass: determine event type
	var envelope eventEnvelope
	if err := json.Unmarshal(line, &envelope); err != nil {
		return nil, err
	}

	// Second pass: unmarshal into the correct type
	var ev Event
	var err error

	switch envelope.Type {
	case EventRunStart:
		var e RunStartEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	case EventRunEnd:
		var e RunEndEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	case EventIterationStart:
		var e IterationStartEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	case EventIterationEnd:
		var e IterationEndEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	case EventBranchCreated:
		var e BranchCreatedEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	case EventAgentStart:
		var e AgentStartEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	case EventAgentEnd:
		var e AgentEndEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	case EventCommitCreated:
		var e CommitCreatedEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	case EventNoChanges:
		var e NoChangesEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	case EventBranchPushed:
		var e BranchPushedEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	case EventPRCreated:
		var e PRCreatedEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	case EventCIWait:
		var e CIWaitEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	case EventCIResult:
		var e CIResultEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	case EventPRMerged:
		var e PRMergedEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	case EventBranchCleaned:
		var e BranchCleanedEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	case EventCostUpdated:
		var e CostUpdatedEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	case EventCompletionSignal:
		var e CompletionSignalEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	case EventError:
		var e ErrorEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	default:
		// Unknown event type, skip it for forward compatibility
		slog.Debug("unknown event type", "type", envelope.Type)
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return ev, nil
}

// GetIteration extracts the iteration number from an event, if present.
// Returns 0 for events not tied to a specific iteration.
func GetIteration(ev Event) int {
	switch e := ev.(type) {
	case *IterationStartEvent:
		return e.Number
	case *IterationEndEvent:
		return e.Number
	case *BranchCreatedEvent:
		return e.Iteration
	case *AgentStartEvent:
		return e.Iteration
	case *AgentEndEvent:
		return e.Iteration
	case *CommitCreatedEvent:
		return e.Iteration
	case *NoChangesEvent:
		return e.Iteration
	case *BranchPushedEvent:
		return e.Iteration
	case *PRCreatedEvent:
		return e.Iteration
	case *ErrorEvent:
		return e.Iteration
	default:
		return 0
	}
}
