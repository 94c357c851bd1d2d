package events

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
)

const (
	maxMessageLength  = 100
	maxPromptLength   = 60
	truncateIndicator = "..."
)

// Format converts an event to a human-readable step line for display.
// Simulated events render as "would ..." lines. Returns empty string for
// nil or unknown event types.
func Format(event Event) string {
	if event == nil {
		return ""
	}

	switch e := event.(type) {
	case *RunStartEvent:
		return formatRunStart(e)
	case *RunEndEvent:
		return formatRunEnd(e)
	case *IterationStartEvent:
		return formatIterationStart(e)
	case *IterationEndEvent:
		return formatIterationEnd(e)
	case *BranchCreatedEvent:
		return formatBranchCreated(e)
	case *AgentStartEvent:
		return formatAgentStart(e)
	case *AgentEndEvent:
		return formatAgentEnd(e)
	case *CommitCreatedEvent:
		return formatCommitCreated(e)
	case *NoChangesEvent:
		return formatNoChanges(e)
	case *BranchPushedEvent:
		return formatBranchPushed(e)
	case *PRCreatedEvent:
		return formatPRCreated(e)
	case *CIWaitEvent:
		return formatCIWait(e)
	case *CIResultEvent:
		return formatCIResult(e)
	case *PRMergedEvent:
		return formatPRMerged(e)
	case *BranchCleanedEvent:
		return formatBranchCleaned(e)
	case *CostUpdatedEvent:
		return formatCostUpdated(e)
	case *CompletionSignalEvent:
		return formatCompletionSignal(e)
	case *ErrorEvent:
		return formatError(e)
	default:
		return ""
	}
}

// FormatWithTimestamp formats an event with a timestamp prefix.
// Used for verbose console output and log replay.
func FormatWithTimestamp(event Event) string {
	if event == nil {
		return ""
	}
	ts := event.Timestamp().Format("15:04:05")
	detail := Format(event)
	if detail == "" {
		return fmt.Sprintf("[%s] %s", ts, event.Type())
	}
	return fmt.Sprintf("[%s] %s", ts, detail)
}

func formatRunStart(e *RunStartEvent) string {
	prompt := Truncate(SafeString(e.Prompt), maxPromptLength)
	if e.DryRun {
		return fmt.Sprintf("run started (dry-run): %s", prompt)
	}
	return fmt.Sprintf("run started: %s", prompt)
}

func formatRunEnd(e *RunEndEvent) string {
	elapsed := (time.Duration(e.DurationMs) * time.Millisecond).Round(time.Second)
	return fmt.Sprintf("run finished: %d iterations, %s, %s (%s)",
		e.Iterations, FormatCents(e.CostCents), elapsed, SafeString(e.StopReason))
}

func formatIterationStart(e *IterationStartEvent) string {
	return fmt.Sprintf("--- iteration %d ---", e.Number)
}

func formatIterationEnd(e *IterationEndEvent) string {
	symbol := "+"
	status := "complete"
	if !e.Success {
		symbol = "x"
		status = "failed"
	}
	if e.Error != "" {
		return fmt.Sprintf("[%s] iteration %d %s: %s", symbol, e.Number, status,
			Truncate(SafeString(e.Error), maxMessageLength))
	}
	return fmt.Sprintf("[%s] iteration %d %s (%s total)", symbol, e.Number, status,
		FormatCents(e.CostCents))
}

func formatBranchCreated(e *BranchCreatedEvent) string {
	if e.Simulated {
		return fmt.Sprintf("would create branch %s", e.Name)
	}
	return fmt.Sprintf("branch created: %s", e.Name)
}

func formatAgentStart(e *AgentStartEvent) string {
	kind := "agent"
	if e.Review {
		kind = "review"
	}
	if e.Simulated {
		return fmt.Sprintf("would run %s", kind)
	}
	if e.Endpoint != "" {
		return fmt.Sprintf("%s running (attached to %s)", kind, e.Endpoint)
	}
	return fmt.Sprintf("%s running", kind)
}

func formatAgentEnd(e *AgentEndEvent) string {
	kind := "agent"
	if e.Review {
		kind = "review"
	}
	elapsed := (time.Duration(e.DurationMs) * time.Millisecond).Round(time.Second)
	if e.ExitCode != 0 {
		return fmt.Sprintf("%s finished: exit %d (%s)", kind, e.ExitCode, elapsed)
	}
	if e.ShareLink != "" {
		return fmt.Sprintf("%s finished (%s) share: %s", kind, elapsed, e.ShareLink)
	}
	return fmt.Sprintf("%s finished (%s)", kind, elapsed)
}

func formatCommitCreated(e *CommitCreatedEvent) string {
	msg := Truncate(SafeString(e.Message), maxMessageLength)
	if e.Simulated {
		return fmt.Sprintf("would commit: %s", msg)
	}
	return fmt.Sprintf("committed: %s", msg)
}

func formatNoChanges(e *NoChangesEvent) string {
	if e.Threshold > 0 {
		return fmt.Sprintf("no changes (%d/%d)", e.Streak, e.Threshold)
	}
	return "no changes"
}

func formatBranchPushed(e *BranchPushedEvent) string {
	if e.Simulated {
		return fmt.Sprintf("would push %s", e.Name)
	}
	return fmt.Sprintf("pushed: %s", e.Name)
}

func formatPRCreated(e *PRCreatedEvent) string {
	if e.Simulated {
		return fmt.Sprintf("would open a pull request for iteration %d", e.Iteration)
	}
	return fmt.Sprintf("PR #%d created: %s", e.Number, e.URL)
}

func formatCIWait(e *CIWaitEvent) string {
	return fmt.Sprintf("waiting on CI for PR #%d", e.PR)
}

func formatCIResult(e *CIResultEvent) string {
	switch e.Outcome {
	case CIOutcomePassed:
		return fmt.Sprintf("CI passed for PR #%d", e.PR)
	case CIOutcomeFailed:
		if len(e.Failed) > 0 {
			return fmt.Sprintf("CI failed for PR #%d: %s", e.PR, strings.Join(e.Failed, ", "))
		}
		return fmt.Sprintf("CI failed for PR #%d", e.PR)
	case CIOutcomeTimeout:
		return fmt.Sprintf("CI timed out for PR #%d (%d checks still pending)", e.PR, e.Pending)
	default:
		return fmt.Sprintf("CI %s for PR #%d", e.Outcome, e.PR)
	}
}

func formatPRMerged(e *PRMergedEvent) string {
	if e.Simulated {
		return fmt.Sprintf("would merge PR #%d (%s)", e.Number, e.Strategy)
	}
	return fmt.Sprintf("PR #%d merged (%s)", e.Number, e.Strategy)
}

func formatBranchCleaned(e *BranchCleanedEvent) string {
	if e.Simulated {
		return fmt.Sprintf("would delete branch %s", e.Name)
	}
	return fmt.Sprintf("branch deleted: %s", e.Name)
}

func formatCostUpdated(e *CostUpdatedEvent) string {
	if e.LimitCents > 0 {
		return fmt.Sprintf("cost: %s / %s", FormatCents(e.CostCents), FormatCents(e.LimitCents))
	}
	return fmt.Sprintf("cost: %s", FormatCents(e.CostCents))
}

func formatCompletionSignal(e *CompletionSignalEvent) string {
	return fmt.Sprintf("completion signal (%d/%d)", e.Count, e.Threshold)
}

func formatError(e *ErrorEvent) string {
	severity := SafeString(e.Severity)
	if severity == "" {
		severity = SeverityError
	}
	prefix := strings.ToUpper(severity)
	msg := Truncate(SafeString(e.Message), maxMessageLength)
	if e.Step != "" {
		return fmt.Sprintf("%s: %s: %s", prefix, e.Step, msg)
	}
	return fmt.Sprintf("%s: %s", prefix, msg)
}

// FormatCents renders a cent amount as dollars, e.g. 1234 -> "$12.34".
func FormatCents(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}

// Truncate shortens text to maxLen, adding indicator if truncated.
func Truncate(s string, maxLen int) string {
	s = SafeString(s)
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= len(truncateIndicator) {
		return truncateIndicator
	}
	return s[:maxLen-len(truncateIndicator)] + truncateIndicator
}

// ansiRegex matches ANSI escape sequences.
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// StripANSI removes ANSI escape sequences from a string.
func StripANSI(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// SafeString sanitizes a string for single-line display by removing ANSI
// sequences and control characters and collapsing whitespace.
func SafeString(s string) string {
	s = StripANSI(s)

	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")

	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if r == ' ' || !unicode.IsControl(r) {
			sb.WriteRune(r)
		}
	}

	result := sb.String()
	for strings.Contains(result, "  ") {
		result = strings.ReplaceAll(result, "  ", " ")
	}

	return strings.TrimSpace(result)
}
