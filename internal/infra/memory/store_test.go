package memory

import (
	"context"
	"testing"

	"chaos-story-service/internal/app"
)

func TestStoreApply(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	_ = store.Set(ctx, "a", "1")

	err := store.Apply(ctx, []app.Mutation{
		{Key: "a", Delete: true},
		{Key: "b", Value: "2"},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "a"); ok {
		t.Fatalf("expected a deleted")
	}
	if v, ok, _ := store.Get(ctx, "b"); !ok || v != "2" {
		t.Fatalf("expected b=2, got %q %v", v, ok)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one document, got %d", store.Len())
	}
}
