package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return client, mr
}

func TestTryAcquire_Success(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()
	locker := NewLocker(client, "adhan:pass_lock", 10*time.Second)

	lease, err := locker.TryAcquire(ctx)
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	if lease == nil {
		t.Fatal("Expected non-nil lease")
	}
	if lease.Token() == "" {
		t.Error("Expected lease to carry a token")
	}

	value, err := client.Get(ctx, locker.Key()).Result()
	if err != nil {
		t.Fatalf("Failed to read lock key: %v", err)
	}
	if value != lease.Token() {
		t.Errorf("Lock value = %q, want %q", value, lease.Token())
	}
}

func TestTryAcquire_AlreadyLocked(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()
	locker := NewLocker(client, "adhan:pass_lock", 10*time.Second)

	first, err := locker.TryAcquire(ctx)
	if err != nil || first == nil {
		t.Fatalf("Failed to acquire first lock: %v", err)
	}

	second, err := locker.TryAcquire(ctx)
	if err != nil {
		t.Fatalf("Second acquire returned error: %v", err)
	}
	if second != nil {
		t.Error("Expected nil for already-locked key, got lease")
	}
}

func TestTryAcquire_ConnectionFailure(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer client.Close()
	mr.Close()

	lease, err := NewLocker(client, "adhan:pass_lock", time.Second).TryAcquire(context.Background())
	if err == nil {
		t.Error("Expected error with Redis down, got nil")
	}
	if lease != nil {
		t.Error("Expected nil lease with Redis down")
	}
}

func TestLease_Release(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()
	locker := NewLocker(client, "adhan:pass_lock", 10*time.Second)

	lease, err := locker.TryAcquire(ctx)
	if err != nil || lease == nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}

	if err := lease.Release(ctx); err != nil {
		t.Fatalf("Failed to release lock: %v", err)
	}

	again, err := locker.TryAcquire(ctx)
	if err != nil {
		t.Fatalf("Failed to re-acquire lock: %v", err)
	}
	if again == nil {
		t.Error("Expected to acquire lock after release, got nil")
	}
}

func TestLease_ReleaseNotOwned(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()
	key := "adhan:pass_lock"

	// Someone else holds the key
	client.Set(ctx, key, "different-token", 10*time.Second)

	lease := &Lease{client: client, key: key, token: "my-token", ttl: 10 * time.Second}
	if err := lease.Release(ctx); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	value, err := client.Get(ctx, key).Result()
	if err != nil {
		t.Fatalf("Failed to read lock key: %v", err)
	}
	if value != "different-token" {
		t.Errorf("Lock value = %q, want different-token", value)
	}
}

func TestLease_Extend(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()
	locker := NewLocker(client, "adhan:pass_lock", 5*time.Second)

	lease, err := locker.TryAcquire(ctx)
	if err != nil || lease == nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}

	if err := lease.Extend(ctx, 10*time.Second); err != nil {
		t.Fatalf("Failed to extend lock: %v", err)
	}
	if lease.TTL() != 10*time.Second {
		t.Errorf("Lease TTL = %v, want 10s", lease.TTL())
	}

	ttl := mr.TTL(locker.Key())
	if ttl < 9*time.Second || ttl > 10*time.Second {
		t.Errorf("Redis TTL = %v, want ~10s", ttl)
	}
}

func TestLease_ExtendNotOwned(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()
	key := "adhan:pass_lock"
	client.Set(ctx, key, "different-token", 10*time.Second)

	lease := &Lease{client: client, key: key, token: "my-token", ttl: 10 * time.Second}
	if err := lease.Extend(ctx, 20*time.Second); err == nil {
		t.Error("Expected error when extending lock not owned, got nil")
	}
}

func TestTryAcquire_TTLExpiration(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()
	locker := NewLocker(client, "adhan:pass_lock", time.Second)

	lease, err := locker.TryAcquire(ctx)
	if err != nil || lease == nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}

	// Holder died without releasing
	mr.FastForward(2 * time.Second)

	again, err := locker.TryAcquire(ctx)
	if err != nil {
		t.Fatalf("Failed to re-acquire lock after expiry: %v", err)
	}
	if again == nil {
		t.Error("Expected to acquire lock after TTL expiry, got nil")
	}
}

func TestTryAcquire_ConcurrentAttempts(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()
	locker := NewLocker(client, "adhan:pass_lock", 10*time.Second)

	results := make(chan *Lease, 10)
	errs := make(chan error, 10)

	for i := 0; i < 10; i++ {
		go func() {
			lease, err := locker.TryAcquire(ctx)
			if err != nil {
				errs <- err
				return
			}
			results <- lease
		}()
	}

	acquired := 0
	timeout := time.After(2 * time.Second)
	for i := 0; i < 10; i++ {
		select {
		case lease := <-results:
			if lease != nil {
				acquired++
			}
		case err := <-errs:
			t.Errorf("Unexpected error: %v", err)
		case <-timeout:
			t.Fatal("Timeout waiting for lock attempts")
		}
	}

	if acquired != 1 {
		t.Errorf("Expected exactly 1 successful lock, got %d", acquired)
	}
}

func TestLease_MultipleRelease(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()
	lease, err := NewLocker(client, "adhan:pass_lock", 10*time.Second).TryAcquire(ctx)
	if err != nil || lease == nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}

	if err := lease.Release(ctx); err != nil {
		t.Fatalf("First release failed: %v", err)
	}
	if err := lease.Release(ctx); err != nil {
		t.Error("Second release should not error")
	}
}
