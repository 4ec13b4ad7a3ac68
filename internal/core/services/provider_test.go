package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/skillsinfra/ukrlp-cache/internal/core/domain"
	"github.com/skillsinfra/ukrlp-cache/internal/core/ports/driven/mocks"
	"github.com/skillsinfra/ukrlp-cache/internal/core/ports/driving"
)

func newProviderFixture(t *testing.T) (*ProviderService, *mocks.MockProviderStore, *mocks.MockUkrlpClient) {
	t.Helper()
	store := mocks.NewMockProviderStore()
	client := mocks.NewMockUkrlpClient()
	svc := NewProviderService(ProviderServiceConfig{
		Providers: store,
		Ukrlp:     client,
		Mapper:    mocks.NewMockProviderMapper(),
	})
	return svc, store, client
}

func storeCurrent(t *testing.T, store *mocks.MockProviderStore, ukprn int64, name string, day time.Time) {
	t.Helper()
	snap := domain.NewPointInTimeProvider(domain.Provider{UKPRN: ukprn, ProviderName: name}, day)
	snap.IsCurrent = true
	if err := store.StoreSnapshot(context.Background(), snap); err != nil {
		t.Fatalf("StoreSnapshot: %v", err)
	}
}

func TestProviderGetFromCache(t *testing.T) {
	svc, store, _ := newProviderFixture(t)
	day := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	storeCurrent(t, store, 10012345, "Cached College", day)

	lp, err := svc.Get(context.Background(), 10012345, driving.ReadOptions{})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if lp.Name != "Cached College" {
		t.Errorf("unexpected provider: %+v", lp)
	}
}

func TestProviderGetNotFound(t *testing.T) {
	svc, _, _ := newProviderFixture(t)
	_, err := svc.Get(context.Background(), 10012345, driving.ReadOptions{})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestProviderGetInvalidUKPRN(t *testing.T) {
	svc, _, _ := newProviderFixture(t)
	for _, ukprn := range []int64{0, -1, 1234567, 123456789} {
		if _, err := svc.Get(context.Background(), ukprn, driving.ReadOptions{}); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("ukprn %d: expected ErrInvalidInput, got %v", ukprn, err)
		}
	}
}

func TestProviderGetLive(t *testing.T) {
	svc, store, client := newProviderFixture(t)
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	storeCurrent(t, store, 10012345, "Stale Cache", day)
	client.AddProvider(domain.Provider{UKPRN: 10012345, ProviderName: "Live Registry"})

	lp, err := svc.Get(context.Background(), 10012345, driving.ReadOptions{ReadFromLive: true})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if lp.Name != "Live Registry" {
		t.Errorf("live read should bypass the cache, got %q", lp.Name)
	}
}

func TestProviderGetLiveNotFound(t *testing.T) {
	svc, _, _ := newProviderFixture(t)
	_, err := svc.Get(context.Background(), 10012345, driving.ReadOptions{ReadFromLive: true})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestProviderGetPointInTime(t *testing.T) {
	svc, store, _ := newProviderFixture(t)
	ctx := context.Background()

	early := domain.NewPointInTimeProvider(domain.Provider{UKPRN: 10012345, ProviderName: "Early"},
		time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC))
	_ = store.StoreSnapshot(ctx, early)
	storeCurrent(t, store, 10012345, "Later", time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC))

	// A date between the snapshots resolves to the earlier one
	lp, err := svc.Get(ctx, 10012345, driving.ReadOptions{
		PointInTime: time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if lp.Name != "Early" {
		t.Errorf("expected the snapshot valid on the date, got %q", lp.Name)
	}

	// A date before any snapshot is not found
	_, err = svc.Get(ctx, 10012345, driving.ReadOptions{
		PointInTime: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound before first snapshot, got %v", err)
	}
}

func TestProviderGetManyAlignment(t *testing.T) {
	svc, store, _ := newProviderFixture(t)
	day := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	storeCurrent(t, store, 10000001, "First", day)
	storeCurrent(t, store, 10000003, "Third", day)

	result, err := svc.GetMany(context.Background(), []int64{10000001, 10000002, 10000003}, driving.ReadOptions{})
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if len(result) != 3 {
		t.Fatalf("result must align with input, got %d entries", len(result))
	}
	if result[0] == nil || result[0].Name != "First" {
		t.Errorf("result[0] = %+v", result[0])
	}
	if result[1] != nil {
		t.Errorf("missing provider should be nil, got %+v", result[1])
	}
	if result[2] == nil || result[2].Name != "Third" {
		t.Errorf("result[2] = %+v", result[2])
	}
	if got := store.ManyCurrentCalls(); got != 1 {
		t.Errorf("cache reads should use one bulk query, got %d", got)
	}
}

func TestProviderGetManyLiveBatchesRegistryQuery(t *testing.T) {
	svc, _, client := newProviderFixture(t)
	client.AddProvider(domain.Provider{UKPRN: 10000001, ProviderName: "First Live"})
	client.AddProvider(domain.Provider{UKPRN: 10000003, ProviderName: "Third Live"})

	result, err := svc.GetMany(context.Background(),
		[]int64{10000001, 10000002, 10000003}, driving.ReadOptions{ReadFromLive: true})
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if len(result) != 3 {
		t.Fatalf("result must align with input, got %d entries", len(result))
	}
	if result[0] == nil || result[0].Name != "First Live" {
		t.Errorf("result[0] = %+v", result[0])
	}
	if result[1] != nil {
		t.Errorf("missing provider should be nil, got %+v", result[1])
	}
	if result[2] == nil || result[2].Name != "Third Live" {
		t.Errorf("result[2] = %+v", result[2])
	}

	calls := client.BulkCalls()
	if len(calls) != 1 {
		t.Fatalf("live reads should issue one registry query, got %d", len(calls))
	}
	if len(calls[0]) != 3 {
		t.Errorf("registry query should carry every identity, got %v", calls[0])
	}
}

func TestProviderGetManyPointInTime(t *testing.T) {
	svc, store, _ := newProviderFixture(t)
	ctx := context.Background()

	early := domain.NewPointInTimeProvider(domain.Provider{UKPRN: 10000001, ProviderName: "Early"},
		time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC))
	_ = store.StoreSnapshot(ctx, early)
	storeCurrent(t, store, 10000001, "Later", time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC))
	storeCurrent(t, store, 10000002, "Other", time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC))

	result, err := svc.GetMany(ctx, []int64{10000001, 10000002}, driving.ReadOptions{
		PointInTime: time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if result[0] == nil || result[0].Name != "Early" {
		t.Errorf("result[0] = %+v", result[0])
	}
	if result[1] != nil {
		t.Errorf("no snapshot existed on the date, got %+v", result[1])
	}
}

func TestProviderGetManyValidatesAll(t *testing.T) {
	svc, _, _ := newProviderFixture(t)
	_, err := svc.GetMany(context.Background(), []int64{10000001, 42}, driving.ReadOptions{})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
