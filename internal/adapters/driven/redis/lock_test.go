package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"

	"github.com/skillsinfra/ukrlp-cache/internal/metrics"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return client, func() {
		client.Close()
		mr.Close()
	}
}

func TestLock_OwnerID_Unique(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	lock1 := NewLock(client)
	lock2 := NewLock(client)

	if lock1.OwnerID() == "" {
		t.Fatal("expected non-empty owner ID")
	}
	if lock1.OwnerID() == lock2.OwnerID() {
		t.Errorf("expected unique owner IDs, got same: %s", lock1.OwnerID())
	}
}

func TestLock_Acquire_Success(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	lock := NewLock(client)
	ctx := context.Background()

	acquired, err := lock.Acquire(ctx, "cache-download", 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acquired {
		t.Error("expected to acquire lock")
	}
}

func TestLock_Acquire_AlreadyHeld(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	lock1 := NewLock(client)
	lock2 := NewLock(client)
	ctx := context.Background()

	acquired, err := lock1.Acquire(ctx, "cache-download", 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acquired {
		t.Fatal("expected first instance to acquire lock")
	}

	acquired, err = lock2.Acquire(ctx, "cache-download", 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acquired {
		t.Error("expected second instance to be refused")
	}
}

func TestLock_Release_OnlyOwner(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	lock1 := NewLock(client)
	lock2 := NewLock(client)
	ctx := context.Background()

	if _, err := lock1.Acquire(ctx, "cache-tidy", 10*time.Second); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	// A non-owner release must not free the lock
	if err := lock2.Release(ctx, "cache-tidy"); err != nil {
		t.Fatalf("release by non-owner should be a no-op, got: %v", err)
	}
	acquired, _ := lock2.Acquire(ctx, "cache-tidy", 10*time.Second)
	if acquired {
		t.Error("lock should still be held by the owner")
	}

	// Owner release frees it
	if err := lock1.Release(ctx, "cache-tidy"); err != nil {
		t.Fatalf("release: %v", err)
	}
	acquired, _ = lock2.Acquire(ctx, "cache-tidy", 10*time.Second)
	if !acquired {
		t.Error("lock should be free after owner release")
	}
}

func TestLock_Extend(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	lock := NewLock(client)
	other := NewLock(client)
	ctx := context.Background()

	if _, err := lock.Acquire(ctx, "cache-download", 10*time.Second); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	if err := lock.Extend(ctx, "cache-download", 30*time.Second); err != nil {
		t.Errorf("owner extend should succeed: %v", err)
	}
	if err := other.Extend(ctx, "cache-download", 30*time.Second); err == nil {
		t.Error("non-owner extend should fail")
	}
	if err := lock.Extend(ctx, "never-acquired", 30*time.Second); err == nil {
		t.Error("extending an unheld lock should fail")
	}
}

func TestLock_AcquisitionCounters(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	m := metrics.NewWith(prometheus.NewRegistry())
	lock1 := NewLock(client).WithMetrics(m)
	lock2 := NewLock(client).WithMetrics(m)
	ctx := context.Background()

	if _, err := lock1.Acquire(ctx, "cache-download", 10*time.Second); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := lock2.Acquire(ctx, "cache-download", 10*time.Second); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	acquired := testutil.ToFloat64(m.LockAcquisitions.WithLabelValues("cache-download", "acquired"))
	if acquired != 1 {
		t.Errorf("acquired counter = %v, want 1", acquired)
	}
	contended := testutil.ToFloat64(m.LockAcquisitions.WithLabelValues("cache-download", "contended"))
	if contended != 1 {
		t.Errorf("contended counter = %v, want 1", contended)
	}
}

func TestLock_Expiry(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	lock1 := NewLock(client)
	lock2 := NewLock(client)
	ctx := context.Background()

	if _, err := lock1.Acquire(ctx, "cache-download", time.Second); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	// Advance miniredis clock past the TTL
	mr.FastForward(2 * time.Second)

	acquired, err := lock2.Acquire(ctx, "cache-download", time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acquired {
		t.Error("expired lock should be acquirable")
	}
}
