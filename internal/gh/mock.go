package gh

import (
	"context"
	"sync"
)

// MergePRCall records a MergePR call.
type MergePRCall struct {
	Number   int
	Strategy string
}

// MockClient is a mock implementation of Client for testing.
// It records all calls and returns configured responses.
type MockClient struct {
	mu sync.Mutex

	// Configured responses
	CreatePRResponse *PullRequest
	CreatePRError    error
	ChecksResponse   *ChecksSummary
	ChecksError      error
	// ChecksSequence overrides ChecksResponse call by call until it is
	// exhausted, letting a test script checks that settle over time.
	ChecksSequence []*ChecksSummary
	MergePRError   error

	// Call tracking
	CreatePRCalls []CreatePROptions
	ChecksCalls   []int
	MergePRCalls  []MergePRCall
}

// NewMockClient creates a new MockClient.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// CreatePR implements Client.
func (m *MockClient) CreatePR(ctx context.Context, opts CreatePROptions) (*PullRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreatePRCalls = append(m.CreatePRCalls, opts)

	if m.CreatePRError != nil {
		return nil, m.CreatePRError
	}
	if m.CreatePRResponse != nil {
		return m.CreatePRResponse, nil
	}
	return &PullRequest{Number: 1, URL: "https://github.com/acme/widgets/pull/1"}, nil
}

// Checks implements Client.
func (m *MockClient) Checks(ctx context.Context, number int) (*ChecksSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ChecksCalls = append(m.ChecksCalls, number)

	if m.ChecksError != nil {
		return nil, m.ChecksError
	}
	if len(m.ChecksSequence) > 0 {
		next := m.ChecksSequence[0]
		m.ChecksSequence = m.ChecksSequence[1:]
		return next, nil
	}
	if m.ChecksResponse != nil {
		return m.ChecksResponse, nil
	}
	return &ChecksSummary{}, nil
}

// MergePR implements Client.
func (m *MockClient) MergePR(ctx context.Context, number int, strategy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.MergePRCalls = append(m.MergePRCalls, MergePRCall{Number: number, Strategy: strategy})
	return m.MergePRError
}

// Reset clears all recorded calls.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreatePRCalls = nil
	m.ChecksCalls = nil
	m.MergePRCalls = nil
}

// Verify MockClient implements Client interface.
var _ Client = (*MockClient)(nil)
