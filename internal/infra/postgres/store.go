package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"chaos-story-service/internal/app"
)

const (
	selectDocument = `SELECT value FROM story_documents WHERE key=$1`
	upsertDocument = `INSERT INTO story_documents (key, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	deleteDocument = `DELETE FROM story_documents WHERE key=$1`
)

// Store keeps documents in the story_documents table installed by migrations.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx, selectDocument, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load document %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if _, err := s.pool.Exec(ctx, upsertDocument, key, value); err != nil {
		return fmt.Errorf("save document %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, deleteDocument, key); err != nil {
		return fmt.Errorf("delete document %s: %w", key, err)
	}
	return nil
}

// Apply runs every mutation in one transaction.
func (s *Store) Apply(ctx context.Context, mutations []app.Mutation) error {
	err := s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		for _, m := range mutations {
			var err error
			if m.Delete {
				_, err = tx.Exec(ctx, deleteDocument, m.Key)
			} else {
				_, err = tx.Exec(ctx, upsertDocument, m.Key, m.Value)
			}
			if err != nil {
				return fmt.Errorf("%s: %w", m.Key, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("apply documents: %w", err)
	}
	return nil
}
