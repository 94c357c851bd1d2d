package git

import (
	"context"
	"sync"
)

// WorktreeAddCall records a WorktreeAdd call.
type WorktreeAddCall struct {
	Path   string
	Branch string
}

// WorktreeRemoveCall records a WorktreeRemove call.
type WorktreeRemoveCall struct {
	Path  string
	Force bool
}

// MockClient is a mock implementation of Client for testing.
// It records all calls and returns configured responses.
type MockClient struct {
	mu sync.Mutex

	// Configured responses
	RemoteURLResponse     string
	RemoteURLError        error
	CurrentBranchResponse string
	CurrentBranchError    error
	CreateBranchError     error
	CheckoutError         error
	DeleteBranchError     error
	PullError             error
	HasChangesResponse    bool
	HasChangesError       error
	// HasChangesSequence overrides HasChangesResponse call by call until it
	// is exhausted, letting a test script a changing working tree.
	HasChangesSequence   []bool
	AddAllError          error
	CommitError          error
	PushError            error
	WorktreeAddError     error
	WorktreeRemoveError  error
	WorktreeListResponse []Worktree
	WorktreeListError    error

	// Call tracking
	RemoteURLCalls      int
	CurrentBranchCalls  int
	CreateBranchCalls   []string
	CheckoutCalls       []string
	DeleteBranchCalls   []string
	PullCalls           int
	HasChangesCalls     int
	AddAllCalls         int
	CommitCalls         []string
	PushCalls           []string
	WorktreeAddCalls    []WorktreeAddCall
	WorktreeRemoveCalls []WorktreeRemoveCall
	WorktreeListCalls   int
}

// NewMockClient creates a new MockClient.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// RemoteURL implements RemoteReader.
func (m *MockClient) RemoteURL(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RemoteURLCalls++
	if m.RemoteURLError != nil {
		return "", m.RemoteURLError
	}
	return m.RemoteURLResponse, nil
}

// CurrentBranch implements BranchManager.
func (m *MockClient) CurrentBranch(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CurrentBranchCalls++
	if m.CurrentBranchError != nil {
		return "", m.CurrentBranchError
	}
	return m.CurrentBranchResponse, nil
}

// CreateBranch implements BranchManager.
func (m *MockClient) CreateBranch(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateBranchCalls = append(m.CreateBranchCalls, name)
	return m.CreateBranchError
}

// Checkout implements BranchManager.
func (m *MockClient) Checkout(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CheckoutCalls = append(m.CheckoutCalls, name)
	return m.CheckoutError
}

// DeleteBranch implements BranchManager.
func (m *MockClient) DeleteBranch(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteBranchCalls = append(m.DeleteBranchCalls, name)
	return m.DeleteBranchError
}

// Pull implements BranchManager.
func (m *MockClient) Pull(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PullCalls++
	return m.PullError
}

// HasChanges implements Committer.
func (m *MockClient) HasChanges(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.HasChangesCalls++
	if m.HasChangesError != nil {
		return false, m.HasChangesError
	}
	if len(m.HasChangesSequence) > 0 {
		next := m.HasChangesSequence[0]
		m.HasChangesSequence = m.HasChangesSequence[1:]
		return next, nil
	}
	return m.HasChangesResponse, nil
}

// AddAll implements Committer.
func (m *MockClient) AddAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AddAllCalls++
	return m.AddAllError
}

// Commit implements Committer.
func (m *MockClient) Commit(ctx context.Context, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CommitCalls = append(m.CommitCalls, message)
	return m.CommitError
}

// Push implements Committer.
func (m *MockClient) Push(ctx context.Context, branch string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PushCalls = append(m.PushCalls, branch)
	return m.PushError
}

// WorktreeAdd implements WorktreeOps.
func (m *MockClient) WorktreeAdd(ctx context.Context, path, branch string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WorktreeAddCalls = append(m.WorktreeAddCalls, WorktreeAddCall{Path: path, Branch: branch})
	return m.WorktreeAddError
}

// WorktreeRemove implements WorktreeOps.
func (m *MockClient) WorktreeRemove(ctx context.Context, path string, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WorktreeRemoveCalls = append(m.WorktreeRemoveCalls, WorktreeRemoveCall{Path: path, Force: force})
	return m.WorktreeRemoveError
}

// WorktreeList implements WorktreeOps.
func (m *MockClient) WorktreeList(ctx context.Context) ([]Worktree, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WorktreeListCalls++
	if m.WorktreeListError != nil {
		return nil, m.WorktreeListError
	}
	return m.WorktreeListResponse, nil
}

// Reset clears all recorded calls.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RemoteURLCalls = 0
	m.CurrentBranchCalls = 0
	m.CreateBranchCalls = nil
	m.CheckoutCalls = nil
	m.DeleteBranchCalls = nil
	m.PullCalls = 0
	m.HasChangesCalls = 0
	m.AddAllCalls = 0
	m.CommitCalls = nil
	m.PushCalls = nil
	m.WorktreeAddCalls = nil
	m.WorktreeRemoveCalls = nil
	m.WorktreeListCalls = 0
}

// Verify MockClient implements all interfaces.
var (
	_ Client        = (*MockClient)(nil)
	_ RemoteReader  = (*MockClient)(nil)
	_ BranchManager = (*MockClient)(nil)
	_ Committer     = (*MockClient)(nil)
	_ WorktreeOps   = (*MockClient)(nil)
)
