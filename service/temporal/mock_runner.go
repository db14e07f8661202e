package temporal

import (
	"context"
	"fmt"
	"sync"
)

// MockBatchRunner is an in-memory BatchRunner for tests.
type MockBatchRunner struct {
	mu       sync.Mutex
	started  map[string]ReconstructBatchInput
	statuses map[string]*BatchStatus
	startErr error
	nextID   int
}

var _ BatchRunner = (*MockBatchRunner)(nil)

// NewMockBatchRunner creates a new mock runner.
func NewMockBatchRunner() *MockBatchRunner {
	return &MockBatchRunner{
		started:  make(map[string]ReconstructBatchInput),
		statuses: make(map[string]*BatchStatus),
	}
}

// StartReconstructBatch records the input and returns a sequential workflow ID.
func (m *MockBatchRunner) StartReconstructBatch(ctx context.Context, input ReconstructBatchInput) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.startErr != nil {
		return "", m.startErr
	}
	m.nextID++
	id := fmt.Sprintf("reconstruct-batch-%d", m.nextID)
	m.started[id] = input
	m.statuses[id] = &BatchStatus{WorkflowID: id, Status: "Running"}
	return id, nil
}

// GetBatchStatus returns the recorded status, or ErrWorkflowNotFound.
func (m *MockBatchRunner) GetBatchStatus(ctx context.Context, workflowID string) (*BatchStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.statuses[workflowID]
	if !ok {
		return nil, ErrWorkflowNotFound
	}
	cp := *st
	return &cp, nil
}

// Complete marks a started workflow as completed with result.
func (m *MockBatchRunner) Complete(workflowID string, result *ReconstructBatchResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[workflowID] = &BatchStatus{WorkflowID: workflowID, Status: "Completed", Result: result}
}

// Started returns the input a workflow was started with.
func (m *MockBatchRunner) Started(workflowID string) (ReconstructBatchInput, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.started[workflowID]
	return in, ok
}

// SetStartError makes StartReconstructBatch fail.
func (m *MockBatchRunner) SetStartError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startErr = err
}
