package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func TestLock_OwnerTokens(t *testing.T) {
	_, client := setupTestRedis(t)

	lock1 := NewLock(client)
	lock2 := NewLock(client)

	if lock1.Owner() == "" {
		t.Error("expected non-empty owner token")
	}
	if lock1.Owner() == lock2.Owner() {
		t.Errorf("expected unique owner tokens, got same: %s", lock1.Owner())
	}
}

func TestLock_Acquire(t *testing.T) {
	_, client := setupTestRedis(t)

	lock1 := NewLock(client)
	lock2 := NewLock(client)
	ctx := context.Background()

	acquired, err := lock1.Acquire(ctx, "janitor", 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acquired {
		t.Error("expected first acquire to succeed")
	}

	// Another instance cannot take a held lock
	acquired, err = lock2.Acquire(ctx, "janitor", 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acquired {
		t.Error("expected acquire of held lock to fail")
	}

	// Not reentrant even for the holder
	acquired, err = lock1.Acquire(ctx, "janitor", 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acquired {
		t.Error("expected reentrant acquire to fail")
	}
}

func TestLock_AcquireAfterExpiry(t *testing.T) {
	mr, client := setupTestRedis(t)

	lock1 := NewLock(client)
	lock2 := NewLock(client)
	ctx := context.Background()

	acquired, err := lock1.Acquire(ctx, "janitor", 2*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acquired {
		t.Fatal("expected to acquire lock")
	}

	mr.FastForward(3 * time.Second)

	acquired, err = lock2.Acquire(ctx, "janitor", 2*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acquired {
		t.Error("expected to acquire lock after TTL expiry")
	}
}

func TestLock_Release(t *testing.T) {
	_, client := setupTestRedis(t)

	lock := NewLock(client)
	ctx := context.Background()

	acquired, err := lock.Acquire(ctx, "janitor", 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acquired {
		t.Fatal("expected to acquire lock")
	}

	if err := lock.Release(ctx, "janitor"); err != nil {
		t.Fatalf("unexpected error on release: %v", err)
	}

	// Released lock is free again
	acquired, err = lock.Acquire(ctx, "janitor", 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acquired {
		t.Error("expected to acquire lock after release")
	}
}

func TestLock_Release_NotHeld(t *testing.T) {
	_, client := setupTestRedis(t)

	lock := NewLock(client)

	if err := lock.Release(context.Background(), "janitor"); err != nil {
		t.Errorf("unexpected error releasing unheld lock: %v", err)
	}
}

func TestLock_Release_ByDifferentOwner(t *testing.T) {
	_, client := setupTestRedis(t)

	lock1 := NewLock(client)
	lock2 := NewLock(client)
	ctx := context.Background()

	acquired, err := lock1.Acquire(ctx, "janitor", 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acquired {
		t.Fatal("expected to acquire lock")
	}

	// A non-owner release is a silent no-op
	if err := lock2.Release(ctx, "janitor"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	acquired, err = lock2.Acquire(ctx, "janitor", 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acquired {
		t.Error("expected lock to still be held by lock1")
	}
}

func TestLock_Extend(t *testing.T) {
	mr, client := setupTestRedis(t)

	lock := NewLock(client)
	ctx := context.Background()

	acquired, err := lock.Acquire(ctx, "janitor", 2*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acquired {
		t.Fatal("expected to acquire lock")
	}

	if err := lock.Extend(ctx, "janitor", 10*time.Second); err != nil {
		t.Fatalf("unexpected error on extend: %v", err)
	}

	// Past the original TTL the lock is still held
	mr.FastForward(3 * time.Second)

	other := NewLock(client)
	acquired, err = other.Acquire(ctx, "janitor", 2*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acquired {
		t.Error("expected extended lock to still be held")
	}
}

func TestLock_Extend_NotHeld(t *testing.T) {
	_, client := setupTestRedis(t)

	lock := NewLock(client)

	if err := lock.Extend(context.Background(), "janitor", 10*time.Second); err == nil {
		t.Error("expected error when extending unheld lock")
	}
}

func TestLock_Extend_ByDifferentOwner(t *testing.T) {
	_, client := setupTestRedis(t)

	lock1 := NewLock(client)
	lock2 := NewLock(client)
	ctx := context.Background()

	acquired, err := lock1.Acquire(ctx, "janitor", 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acquired {
		t.Fatal("expected to acquire lock")
	}

	if err := lock2.Extend(ctx, "janitor", 20*time.Second); err == nil {
		t.Error("expected error when different owner tries to extend")
	}
}

func TestLock_Ping(t *testing.T) {
	_, client := setupTestRedis(t)

	lock := NewLock(client)

	if err := lock.Ping(context.Background()); err != nil {
		t.Errorf("unexpected ping error: %v", err)
	}
}

func TestLock_DifferentLockNames(t *testing.T) {
	_, client := setupTestRedis(t)

	lock := NewLock(client)
	ctx := context.Background()

	acquired, err := lock.Acquire(ctx, "janitor", 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acquired {
		t.Error("expected to acquire janitor lock")
	}

	acquired, err = lock.Acquire(ctx, "migrations", 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acquired {
		t.Error("expected to acquire an unrelated lock")
	}
}
