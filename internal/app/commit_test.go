package app_test

import (
	"context"
	"errors"
	"testing"

	"chaos-story-service/internal/app"
	"chaos-story-service/internal/domain"
	"chaos-story-service/internal/infra/memory"
	"chaos-story-service/internal/scene"
)

// sequentialStore hides memory.Store's Apply and fails writes to one key.
type sequentialStore struct {
	inner  *memory.Store
	failOn string
}

func (s *sequentialStore) Get(ctx context.Context, key string) (string, bool, error) {
	return s.inner.Get(ctx, key)
}

func (s *sequentialStore) Set(ctx context.Context, key, value string) error {
	if key == s.failOn {
		return errors.New("disk full")
	}
	return s.inner.Set(ctx, key, value)
}

func (s *sequentialStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

var _ app.Store = (*sequentialStore)(nil)

func TestFailedVoteCommitIsCompensated(t *testing.T) {
	ctx := context.Background()
	store := &sequentialStore{inner: memory.NewStore()}
	svc := newTestService(store, scene.Options{})
	game := createGame(t, svc)
	if _, _, err := svc.ResolveChoice(ctx, game.ID, "choice1", "author", ""); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	before, _, _ := store.Get(ctx, "game:"+game.ID)

	store.failOn = "leaderboard"
	_, _, err := svc.SubmitVote(ctx, app.VoteRequest{GameID: game.ID, VoterUserID: "voter", Category: "insane"})
	if err == nil {
		t.Fatalf("expected commit failure")
	}
	if errors.Is(err, domain.ErrValidation) {
		t.Fatalf("storage failure must not look like validation: %v", err)
	}

	after, _, _ := store.Get(ctx, "game:"+game.ID)
	if after != before {
		t.Fatalf("game document must be restored after partial commit")
	}
	if _, ok, _ := store.Get(ctx, "profile:author"); ok {
		t.Fatalf("author profile must be removed after partial commit")
	}
}
