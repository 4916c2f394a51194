package app

import (
	"context"

	"chaos-story-service/internal/domain"
	"chaos-story-service/internal/scene"
)

// Store persists JSON documents by key (in-memory, Redis, Postgres, Mongo).
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Mutation is one write of a batch. Delete removes Key and ignores Value.
type Mutation struct {
	Key    string
	Value  string
	Delete bool
}

// BatchStore is implemented by stores that can apply several mutations
// atomically. Stores without it get sequential writes with compensation.
type BatchStore interface {
	Store
	Apply(ctx context.Context, mutations []Mutation) error
}

// Locker serializes mutations per key. Acquire returns domain.ErrBusy when
// the key stays held past the locker's timeout.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// IdentityProvider resolves display names. A miss only omits the name.
type IdentityProvider interface {
	DisplayNameOf(ctx context.Context, userID string) (string, bool)
}

// SceneBuilder always yields a usable scene; see scene.Builder.
type SceneBuilder interface {
	Opening(ctx context.Context, title, premise string, chaosLevel int) domain.Scene
	Continue(ctx context.Context, c scene.Continuation) domain.Scene
}

type noIdentity struct{}

func (noIdentity) DisplayNameOf(context.Context, string) (string, bool) { return "", false }
