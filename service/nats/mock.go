package nats

import (
	"context"
	"sync"
)

// MockPublisher records events in memory for tests.
type MockPublisher struct {
	mu              sync.RWMutex
	publishedEvents []*ReconstructionEvent
	publishError    error
	closed          bool
}

var _ Publisher = (*MockPublisher)(nil)

// NewMockPublisher creates a new mock publisher for testing.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		publishedEvents: make([]*ReconstructionEvent, 0),
	}
}

// PublishReconstruction records the event and returns any configured error.
func (m *MockPublisher) PublishReconstruction(ctx context.Context, event *ReconstructionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}
	m.publishedEvents = append(m.publishedEvents, event)
	return nil
}

// PublishReconstructionBatch records the events. Like the real publisher it
// never fails the batch.
func (m *MockPublisher) PublishReconstructionBatch(ctx context.Context, events []*ReconstructionEvent) error {
	for _, e := range events {
		_ = m.PublishReconstruction(ctx, e)
	}
	return nil
}

// Close marks the publisher as closed.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// GetPublishedEvents returns a copy of all published events.
func (m *MockPublisher) GetPublishedEvents() []*ReconstructionEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*ReconstructionEvent, len(m.publishedEvents))
	copy(events, m.publishedEvents)
	return events
}

// GetPublishedEventCount returns the number of published events.
func (m *MockPublisher) GetPublishedEventCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.publishedEvents)
}

// SetPublishError configures the mock to fail PublishReconstruction.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
}

// IsClosed returns whether the publisher has been closed.
func (m *MockPublisher) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
