package agent

import (
	"context"
	"sync"
)

// MockInvoker is a mock implementation of Invoker for testing.
// It records all calls and returns configured responses.
type MockInvoker struct {
	mu sync.Mutex

	// Configured responses
	RunResponse *RunResult
	RunError    error
	// RunSequence overrides RunResponse call by call until it is exhausted,
	// letting a test script different outputs per iteration.
	RunSequence   []*RunResult
	StatsResponse float64
	StatsError    error

	// Call tracking
	RunCalls   []RunOptions
	StatsCalls int
}

// NewMockInvoker creates a new MockInvoker.
func NewMockInvoker() *MockInvoker {
	return &MockInvoker{}
}

// RunPrompt implements Invoker.
func (m *MockInvoker) RunPrompt(ctx context.Context, opts RunOptions) (*RunResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RunCalls = append(m.RunCalls, opts)

	if m.RunError != nil {
		return nil, m.RunError
	}
	if len(m.RunSequence) > 0 {
		next := m.RunSequence[0]
		m.RunSequence = m.RunSequence[1:]
		return next, nil
	}
	if m.RunResponse != nil {
		return m.RunResponse, nil
	}
	return &RunResult{Output: "done"}, nil
}

// Stats implements Invoker.
func (m *MockInvoker) Stats(ctx context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StatsCalls++
	if m.StatsError != nil {
		return 0, m.StatsError
	}
	return m.StatsResponse, nil
}

// Reset clears all recorded calls.
func (m *MockInvoker) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RunCalls = nil
	m.StatsCalls = 0
}

// Verify MockInvoker implements Invoker interface.
var _ Invoker = (*MockInvoker)(nil)
