// memory based implementation for testing purposes
package memory

import (
	"context"
	"sync"

	"github.com/cyp0633/libtaskrec/storage"
)

// Store implements storage.KV using an in-memory map
type Store struct {
	mu     sync.RWMutex
	values map[string][]byte
	writes int
}

// New creates a new in-memory storage
func New() *Store {
	return &Store{
		values: make(map[string][]byte),
	}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if key == "" {
		return nil, &storage.Error{Type: storage.ErrInvalidInput, Message: "empty key"}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return nil, &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "key not found",
		}
	}
	return append([]byte(nil), v...), nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return &storage.Error{Type: storage.ErrInvalidInput, Message: "empty key"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = append([]byte(nil), value...)
	s.writes++
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	return nil
}

// Writes returns how many Set calls succeeded.
func (s *Store) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}
