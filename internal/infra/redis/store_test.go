package redis

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"chaos-story-service/internal/app"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestStoreRoundTrip(t *testing.T) {
	_, client := newClient(t)
	store := NewStore(client)
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, "game:1"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := store.Set(ctx, "game:1", `{"id":"1"}`); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := store.Get(ctx, "game:1")
	if err != nil || !ok || v != `{"id":"1"}` {
		t.Fatalf("unexpected get %q %v %v", v, ok, err)
	}
	if err := store.Delete(ctx, "game:1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "game:1"); ok {
		t.Fatalf("expected deleted")
	}
}

func TestStoreApplyIsTransactional(t *testing.T) {
	mr, client := newClient(t)
	store := NewStore(client)
	ctx := context.Background()
	_ = store.Set(ctx, "old", "x")

	err := store.Apply(ctx, []app.Mutation{
		{Key: "game:1", Value: "g"},
		{Key: "profile:u", Value: "p"},
		{Key: "old", Delete: true},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if v, _ := mr.Get("profile:u"); v != "p" {
		t.Fatalf("expected profile written, got %q", v)
	}
	if mr.Exists("old") {
		t.Fatalf("expected old key deleted")
	}
}
