package agent

import (
	"context"
	"log/slog"
)

// ToCents converts a decimal currency amount to integer cents, truncating
// fractional cents rather than rounding.
func ToCents(amount float64) int64 {
	return int64(amount * 100)
}

// Tracker reads the run's cost from the agent's cumulative project figure.
// Each read replaces the previous total; the agent, not this process, is the
// source of truth.
type Tracker struct {
	invoker Invoker
	logger  *slog.Logger
}

// NewTracker creates a Tracker backed by the given invoker.
func NewTracker(invoker Invoker, logger *slog.Logger) *Tracker {
	return &Tracker{invoker: invoker, logger: logger}
}

// Refresh queries the agent for its total cost and returns it in cents. A
// failed or malformed read counts as zero and is logged; it never interrupts
// the run.
func (t *Tracker) Refresh(ctx context.Context) int64 {
	total, err := t.invoker.Stats(ctx)
	if err != nil {
		t.logger.Warn("cost query failed, treating as zero", "error", err)
		return 0
	}
	return ToCents(total)
}
