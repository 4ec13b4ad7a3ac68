package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/skillsinfra/ukrlp-cache/internal/core/domain"
)

// MockStateStore is a mock implementation of StateStore for testing
type MockStateStore struct {
	mu          sync.RWMutex
	lastRead    *time.Time
	lastCleared *time.Time

	// Defaults returned before any watermark has been written
	DefaultLastRead    time.Time
	DefaultLastCleared time.Time
}

// NewMockStateStore creates a new MockStateStore
func NewMockStateStore() *MockStateStore {
	return &MockStateStore{
		DefaultLastRead:    time.Now().AddDate(0, 0, -14),
		DefaultLastCleared: domain.StagingEpoch(),
	}
}

func (m *MockStateStore) GetLastProviderReadTime(ctx context.Context) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.lastRead == nil {
		return m.DefaultLastRead, nil
	}
	return *m.lastRead, nil
}

func (m *MockStateStore) SetLastProviderReadTime(ctx context.Context, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRead = &t
	return nil
}

func (m *MockStateStore) GetLastStagingDateCleared(ctx context.Context) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.lastCleared == nil {
		return m.DefaultLastCleared, nil
	}
	return *m.lastCleared, nil
}

func (m *MockStateStore) SetLastStagingDateCleared(ctx context.Context, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCleared = &t
	return nil
}

// Helper methods for testing

func (m *MockStateStore) LastReadWritten() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRead != nil
}
