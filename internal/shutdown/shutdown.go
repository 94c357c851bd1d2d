// Package shutdown coordinates signal handling for a run. The loop and
// all of its cleanup (agent server stop, worktree removal, final
// summary) unwind through the runner's own defers once its context is
// canceled, so all this package does is translate SIGINT/SIGTERM into
// that cancellation and bound how long the unwind may take.
package shutdown

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// DefaultGrace bounds how long a canceled runner gets to unwind.
const DefaultGrace = 30 * time.Second

// Run executes runner under a context that is canceled on SIGINT or
// SIGTERM. After the first signal the runner gets grace to finish; a
// second signal or an exceeded grace window abandons the wait. A run
// that unwound cleanly after a signal reports success.
func Run(ctx context.Context, logger *slog.Logger, grace time.Duration, runner func(ctx context.Context) error) error {
	if grace <= 0 {
		grace = DefaultGrace
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Register before the runner starts so no signal can slip through
	// with default delivery.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	done := make(chan error, 1)
	go func() {
		done <- runner(runCtx)
	}()

	select {
	case err := <-done:
		return err

	case sig := <-sigChan:
		logger.Info("received signal, finishing up", "signal", sig.String())
		cancel()

		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(grace):
			logger.Warn("shutdown grace exceeded, exiting")
			return nil
		case sig := <-sigChan:
			logger.Warn("second signal, exiting immediately", "signal", sig.String())
			return nil
		}
	}
}
