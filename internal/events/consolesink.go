package events

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// ConsoleSink prints human-readable step lines to a writer, normally
// stdout. Events that format to an empty string are skipped. With
// timestamps enabled each line carries an HH:MM:SS prefix.
type ConsoleSink struct {
	w          io.Writer
	timestamps bool
	mu         sync.Mutex
	done       chan struct{}
}

// NewConsoleSink creates a ConsoleSink writing to w.
func NewConsoleSink(w io.Writer, timestamps bool) *ConsoleSink {
	return &ConsoleSink{
		w:          w,
		timestamps: timestamps,
		done:       make(chan struct{}),
	}
}

// Start begins printing events. It runs until the context is canceled or
// the events channel is closed.
func (s *ConsoleSink) Start(ctx context.Context, events <-chan Event) error {
	go s.run(ctx, events)
	return nil
}

func (s *ConsoleSink) run(ctx context.Context, events <-chan Event) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			s.print(event)
		}
	}
}

func (s *ConsoleSink) print(event Event) {
	var line string
	if s.timestamps {
		line = FormatWithTimestamp(event)
	} else {
		line = Format(event)
	}
	if line == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.w, line)
}

// Stop waits for the print loop to finish.
func (s *ConsoleSink) Stop() error {
	<-s.done
	return nil
}
