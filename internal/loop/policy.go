package loop

import (
	"time"

	"github.com/dmelton/crank/internal/config"
)

// Evaluate checks the hard stopping conditions against the run state, in
// fixed order: iteration ceiling, cost ceiling, duration ceiling, no-change
// threshold. The first satisfied condition wins; unset limits are skipped.
// The completion-signal threshold is deliberately not here: the controller
// checks it after each iteration so a signal cannot stop the loop mid-cycle.
func Evaluate(cfg *config.Config, st *State, now time.Time) (StopReason, bool) {
	if cfg.MaxIterations > 0 && st.Iteration >= cfg.MaxIterations {
		return StopIterationLimit, true
	}
	if limit := cfg.MaxCostCents(); limit > 0 && st.CostCents >= limit {
		return StopCostLimit, true
	}
	if secs := cfg.MaxDurationSecs(); secs > 0 {
		if now.Sub(st.StartedAt) >= time.Duration(secs)*time.Second {
			return StopDurationLimit, true
		}
	}
	if cfg.NoChangeThreshold > 0 && st.NoChangeStreak >= cfg.NoChangeThreshold {
		return StopNoChange, true
	}
	return "", false
}

// CompletionReached reports whether enough completion signals have been seen
// to end the run.
func CompletionReached(cfg *config.Config, st *State) bool {
	return cfg.CompletionThreshold > 0 && st.CompletionCount >= cfg.CompletionThreshold
}
