package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/skillsinfra/ukrlp-cache/internal/core/domain"
)

type snapshotKey struct {
	ukprn int64
	day   time.Time
}

// MockProviderStore is a mock implementation of ProviderStore for testing
type MockProviderStore struct {
	mu        sync.RWMutex
	snapshots map[snapshotKey]*domain.PointInTimeProvider
	staging   map[snapshotKey]domain.Provider

	// FailUKPRNs makes operations on the listed identities return the
	// given error, for failure-isolation tests
	FailUKPRNs map[int64]error

	// FailClear makes ClearStagingForDate fail with this error
	FailClear error

	// ConflictUKPRNs makes StoreCurrent lose the conditional demote for
	// the listed identities, simulating a concurrent writer
	ConflictUKPRNs map[int64]bool

	manyCurrentCalls int
}

// NewMockProviderStore creates a new MockProviderStore
func NewMockProviderStore() *MockProviderStore {
	return &MockProviderStore{
		snapshots:      make(map[snapshotKey]*domain.PointInTimeProvider),
		staging:        make(map[snapshotKey]domain.Provider),
		FailUKPRNs:     make(map[int64]error),
		ConflictUKPRNs: make(map[int64]bool),
	}
}

func (m *MockProviderStore) StoreSnapshot(ctx context.Context, snapshot *domain.PointInTimeProvider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailUKPRNs[snapshot.UKPRN]; err != nil {
		return err
	}
	cp := *snapshot
	cp.PointInTime = domain.DayUTC(snapshot.PointInTime)
	if cp.IsCurrent {
		for k, s := range m.snapshots {
			if k.ukprn == cp.UKPRN && s.IsCurrent && !k.day.Equal(cp.PointInTime) {
				return domain.ErrAlreadyExists
			}
		}
	}
	m.snapshots[snapshotKey{cp.UKPRN, cp.PointInTime}] = &cp
	return nil
}

func (m *MockProviderStore) StoreCurrent(ctx context.Context, snapshot, prior *domain.PointInTimeProvider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailUKPRNs[snapshot.UKPRN]; err != nil {
		return err
	}
	if m.ConflictUKPRNs[snapshot.UKPRN] {
		return domain.ErrConflict
	}

	// Validate before mutating so a conflict writes nothing, like the
	// transactional store
	var priorKey snapshotKey
	if prior != nil {
		priorKey = snapshotKey{prior.UKPRN, domain.DayUTC(prior.PointInTime)}
		p, ok := m.snapshots[priorKey]
		if !ok || !p.IsCurrent {
			return domain.ErrConflict
		}
	}
	cp := *snapshot
	cp.PointInTime = domain.DayUTC(snapshot.PointInTime)
	cp.IsCurrent = true
	for k, s := range m.snapshots {
		if k.ukprn != cp.UKPRN || !s.IsCurrent || k.day.Equal(cp.PointInTime) {
			continue
		}
		if prior != nil && k == priorKey {
			continue
		}
		return domain.ErrConflict
	}

	if prior != nil {
		m.snapshots[priorKey].IsCurrent = false
	}
	m.snapshots[snapshotKey{cp.UKPRN, cp.PointInTime}] = &cp
	return nil
}

func (m *MockProviderStore) StoreStaging(ctx context.Context, providers []domain.Provider, pointInTime time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	day := domain.DayUTC(pointInTime)
	for _, p := range providers {
		m.staging[snapshotKey{p.UKPRN, day}] = p
	}
	return nil
}

func (m *MockProviderStore) GetCurrent(ctx context.Context, ukprn int64) (*domain.PointInTimeProvider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.FailUKPRNs[ukprn]; err != nil {
		return nil, err
	}
	for k, s := range m.snapshots {
		if k.ukprn == ukprn && s.IsCurrent {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockProviderStore) GetCurrentAsOf(ctx context.Context, ukprn int64, pointInTime time.Time) (*domain.PointInTimeProvider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	day := domain.DayUTC(pointInTime)
	var best *domain.PointInTimeProvider
	for k, s := range m.snapshots {
		if k.ukprn != ukprn || k.day.After(day) {
			continue
		}
		if best == nil || k.day.After(best.PointInTime) {
			best = s
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (m *MockProviderStore) GetManyCurrent(ctx context.Context, ukprns []int64) ([]*domain.PointInTimeProvider, error) {
	m.mu.Lock()
	m.manyCurrentCalls++
	m.mu.Unlock()

	result := make([]*domain.PointInTimeProvider, len(ukprns))
	for i, id := range ukprns {
		s, err := m.GetCurrent(ctx, id)
		if err != nil {
			if err == domain.ErrNotFound {
				continue
			}
			return nil, err
		}
		result[i] = s
	}
	return result, nil
}

func (m *MockProviderStore) GetStaged(ctx context.Context, ukprn int64, pointInTime time.Time) (*domain.Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.FailUKPRNs[ukprn]; err != nil {
		return nil, err
	}
	p, ok := m.staging[snapshotKey{ukprn, domain.DayUTC(pointInTime)}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := p
	return &cp, nil
}

func (m *MockProviderStore) ClearStagingForDate(ctx context.Context, pointInTime time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailClear != nil {
		return 0, m.FailClear
	}
	day := domain.DayUTC(pointInTime)
	var n int64
	for k := range m.staging {
		if k.day.Equal(day) {
			delete(m.staging, k)
			n++
		}
	}
	return n, nil
}

func (m *MockProviderStore) Ping(ctx context.Context) error {
	return nil
}

// Helper methods for testing

func (m *MockProviderStore) SnapshotCount(ukprn int64) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for k := range m.snapshots {
		if k.ukprn == ukprn {
			n++
		}
	}
	return n
}

func (m *MockProviderStore) CurrentCount(ukprn int64) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for k, s := range m.snapshots {
		if k.ukprn == ukprn && s.IsCurrent {
			n++
		}
	}
	return n
}

func (m *MockProviderStore) ManyCurrentCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.manyCurrentCalls
}

func (m *MockProviderStore) StagedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.staging)
}
