package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"chaos-story-service/internal/domain"
)

func TestLockerExcludesAndReleases(t *testing.T) {
	mr, client := newClient(t)
	locks := NewLocker(client, time.Minute, 50*time.Millisecond)
	ctx := context.Background()

	release, err := locks.Acquire(ctx, "game:1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !mr.Exists("lock:game:1") {
		t.Fatalf("expected lock key")
	}
	if _, err := locks.Acquire(ctx, "game:1"); !errors.Is(err, domain.ErrBusy) {
		t.Fatalf("expected busy, got %v", err)
	}

	release()
	if mr.Exists("lock:game:1") {
		t.Fatalf("expected lock key removed on release")
	}
	again, err := locks.Acquire(ctx, "game:1")
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	again()
}

func TestLockerReleaseKeepsForeignLock(t *testing.T) {
	mr, client := newClient(t)
	locks := NewLocker(client, time.Second, 50*time.Millisecond)
	ctx := context.Background()

	release, err := locks.Acquire(ctx, "profile:u")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	// our lease lapses and someone else takes the key
	mr.FastForward(2 * time.Second)
	other, err := locks.Acquire(ctx, "profile:u")
	if err != nil {
		t.Fatalf("acquire after expiry: %v", err)
	}

	release()
	if !mr.Exists("lock:profile:u") {
		t.Fatalf("stale release must not delete the new holder's lock")
	}
	other()
}
