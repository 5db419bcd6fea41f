package lock

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLock(t *testing.T) (Service, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewRedisLock(client, logger), mr
}

func TestAcquireAndRelease(t *testing.T) {
	svc, mr := newTestLock(t)
	ctx := context.Background()

	handle, err := svc.Acquire(ctx, "eval:user-1:writing", time.Minute)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if handle == nil {
		t.Fatal("Acquire() returned nil handle for an uncontended lock")
	}
	if !mr.Exists("lock:eval:user-1:writing") {
		t.Error("expected lock key to exist in redis after acquire")
	}

	released, err := svc.Release(ctx, handle)
	if err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if !released {
		t.Error("Release() = false, want true for current holder")
	}
	if mr.Exists("lock:eval:user-1:writing") {
		t.Error("expected lock key to be gone after release")
	}
}

func TestAcquireContended(t *testing.T) {
	svc, _ := newTestLock(t)
	ctx := context.Background()

	first, err := svc.Acquire(ctx, "eval:user-1:speaking", time.Minute)
	if err != nil || first == nil {
		t.Fatalf("first Acquire() = (%v, %v), want handle", first, err)
	}

	start := time.Now()
	second, err := svc.Acquire(ctx, "eval:user-1:speaking", time.Minute)
	if err != nil {
		t.Fatalf("contended Acquire() error = %v", err)
	}
	if second != nil {
		t.Fatal("contended Acquire() returned a handle, want nil")
	}
	// Retries back off before giving up.
	if elapsed := time.Since(start); elapsed < initialBackoff {
		t.Errorf("contended Acquire() returned after %v, expected at least one backoff", elapsed)
	}
}

func TestReleaseWrongToken(t *testing.T) {
	svc, mr := newTestLock(t)
	ctx := context.Background()

	handle, err := svc.Acquire(ctx, "eval:user-2:writing", time.Minute)
	if err != nil || handle == nil {
		t.Fatalf("Acquire() = (%v, %v), want handle", handle, err)
	}

	stale := &Handle{Key: handle.Key, Token: "not-the-token"}
	released, err := svc.Release(ctx, stale)
	if err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if released {
		t.Error("Release() with wrong token = true, want false")
	}
	if !mr.Exists("lock:eval:user-2:writing") {
		t.Error("wrong-token release must not delete the lock")
	}
}

func TestExtend(t *testing.T) {
	svc, mr := newTestLock(t)
	ctx := context.Background()

	handle, err := svc.Acquire(ctx, "eval:user-3:writing", time.Minute)
	if err != nil || handle == nil {
		t.Fatalf("Acquire() = (%v, %v), want handle", handle, err)
	}

	ok, err := svc.Extend(ctx, handle, 5*time.Minute)
	if err != nil {
		t.Fatalf("Extend() error = %v", err)
	}
	if !ok {
		t.Error("Extend() = false, want true for current holder")
	}
	if ttl := mr.TTL("lock:eval:user-3:writing"); ttl != 5*time.Minute {
		t.Errorf("TTL after extend = %v, want %v", ttl, 5*time.Minute)
	}

	stale := &Handle{Key: handle.Key, Token: "not-the-token"}
	ok, err = svc.Extend(ctx, stale, time.Minute)
	if err != nil {
		t.Fatalf("Extend() error = %v", err)
	}
	if ok {
		t.Error("Extend() with wrong token = true, want false")
	}
}

func TestAcquireAfterExpiry(t *testing.T) {
	svc, mr := newTestLock(t)
	ctx := context.Background()

	first, err := svc.Acquire(ctx, "eval:user-4:writing", time.Second)
	if err != nil || first == nil {
		t.Fatalf("Acquire() = (%v, %v), want handle", first, err)
	}

	mr.FastForward(2 * time.Second)

	second, err := svc.Acquire(ctx, "eval:user-4:writing", time.Minute)
	if err != nil {
		t.Fatalf("Acquire() after expiry error = %v", err)
	}
	if second == nil {
		t.Fatal("Acquire() after expiry returned nil, want new handle")
	}

	// The expired holder can no longer release the new holder's lock.
	released, err := svc.Release(ctx, first)
	if err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if released {
		t.Error("expired holder released the lock, want false")
	}
}

func TestNoopDegradation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	svc := NewRedisLock(nil, logger)
	ctx := context.Background()

	handle, err := svc.Acquire(ctx, "eval:user-5:writing", time.Minute)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if handle == nil {
		t.Fatal("Acquire() without redis returned nil handle, want no-op handle")
	}

	released, err := svc.Release(ctx, handle)
	if err != nil || !released {
		t.Errorf("Release() no-op = (%v, %v), want (true, nil)", released, err)
	}
	ok, err := svc.Extend(ctx, handle, time.Minute)
	if err != nil || !ok {
		t.Errorf("Extend() no-op = (%v, %v), want (true, nil)", ok, err)
	}
}

func TestAcquireValidation(t *testing.T) {
	svc, _ := newTestLock(t)
	ctx := context.Background()

	if _, err := svc.Acquire(ctx, "", time.Minute); err == nil {
		t.Error("Acquire() with empty key succeeded, want error")
	}
	if _, err := svc.Acquire(ctx, "eval:user-6:writing", 0); err == nil {
		t.Error("Acquire() with zero ttl succeeded, want error")
	}
	if _, err := svc.Release(ctx, nil); err == nil {
		t.Error("Release(nil) succeeded, want error")
	}
}
