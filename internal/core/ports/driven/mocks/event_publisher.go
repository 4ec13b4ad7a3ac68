package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/skillsinfra/ukrlp-cache/internal/core/domain"
)

// PublishedEvent records one publisher call
type PublishedEvent struct {
	Type        string
	Provider    *domain.LearningProvider
	PointInTime time.Time
}

// MockEventPublisher is a mock implementation of EventPublisher for testing
type MockEventPublisher struct {
	mu     sync.Mutex
	events []PublishedEvent

	// Err makes every publish fail with this error
	Err error
}

// NewMockEventPublisher creates a new MockEventPublisher
func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{}
}

func (m *MockEventPublisher) PublishCreated(ctx context.Context, provider *domain.LearningProvider, pointInTime time.Time) error {
	return m.record("created", provider, pointInTime)
}

func (m *MockEventPublisher) PublishUpdated(ctx context.Context, provider *domain.LearningProvider, pointInTime time.Time) error {
	return m.record("updated", provider, pointInTime)
}

func (m *MockEventPublisher) record(eventType string, provider *domain.LearningProvider, pointInTime time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.events = append(m.events, PublishedEvent{
		Type:        eventType,
		Provider:    provider,
		PointInTime: pointInTime,
	})
	return nil
}

// Helper methods for testing

func (m *MockEventPublisher) Events() []PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PublishedEvent(nil), m.events...)
}

func (m *MockEventPublisher) CountByType(eventType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}
