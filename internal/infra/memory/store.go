package memory

import (
	"context"
	"sync"

	"chaos-story-service/internal/app"
)

// Store is an in-memory implementation of app.BatchStore.
type Store struct {
	mu   sync.RWMutex
	docs map[string]string
}

func NewStore() *Store {
	return &Store{docs: make(map[string]string)}
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.docs[key]
	return v, ok, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[key] = value
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, key)
	return nil
}

// Apply writes every mutation under one lock acquisition.
func (s *Store) Apply(_ context.Context, mutations []app.Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range mutations {
		if m.Delete {
			delete(s.docs, m.Key)
			continue
		}
		s.docs[m.Key] = m.Value
	}
	return nil
}

// Len reports how many documents are stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
