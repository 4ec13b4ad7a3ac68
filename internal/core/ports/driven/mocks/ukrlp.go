package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/skillsinfra/ukrlp-cache/internal/core/domain"
)

// MockUkrlpClient is a mock implementation of UkrlpClient for testing
type MockUkrlpClient struct {
	mu        sync.RWMutex
	providers map[int64]domain.Provider

	// Updated holds the providers returned by GetProvidersUpdatedSince
	Updated []domain.Provider

	// Err makes every call fail with this error
	Err error

	sinceCalls []time.Time
	bulkCalls  [][]int64
}

// NewMockUkrlpClient creates a new MockUkrlpClient
func NewMockUkrlpClient() *MockUkrlpClient {
	return &MockUkrlpClient{
		providers: make(map[int64]domain.Provider),
	}
}

// AddProvider registers a provider for lookup by UKPRN
func (m *MockUkrlpClient) AddProvider(p domain.Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[p.UKPRN] = p
}

func (m *MockUkrlpClient) GetProvider(ctx context.Context, ukprn int64) (*domain.Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	p, ok := m.providers[ukprn]
	if !ok {
		return nil, nil
	}
	cp := p
	return &cp, nil
}

func (m *MockUkrlpClient) GetProviders(ctx context.Context, ukprns []int64) ([]domain.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	m.bulkCalls = append(m.bulkCalls, append([]int64(nil), ukprns...))
	var result []domain.Provider
	for _, id := range ukprns {
		if p, ok := m.providers[id]; ok {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *MockUkrlpClient) GetProvidersUpdatedSince(ctx context.Context, since time.Time) ([]domain.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	m.sinceCalls = append(m.sinceCalls, since)
	return append([]domain.Provider(nil), m.Updated...), nil
}

// Helper methods for testing

func (m *MockUkrlpClient) SinceCalls() []time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]time.Time(nil), m.sinceCalls...)
}

func (m *MockUkrlpClient) BulkCalls() [][]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([][]int64(nil), m.bulkCalls...)
}
