package attributes

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrNoStore        = errors.New("persistence store is not configured")
	ErrUserIDRequired = errors.New("user id is required")
)

// Store persists per-user attributes keyed by the host's user identity.
type Store interface {
	GetAttributes(ctx context.Context, userID string) (map[string]any, error)
	SaveAttributes(ctx context.Context, userID string, attrs map[string]any) error
}

// MemoryStore implements Store with an in-memory map, suitable for local runs and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]map[string]any
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]map[string]any)}
}

// GetAttributes returns a copy of the stored attributes, or an empty map.
func (s *MemoryStore) GetAttributes(_ context.Context, userID string) (map[string]any, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.items[userID]), nil
}

// SaveAttributes replaces the attributes stored for the user.
func (s *MemoryStore) SaveAttributes(_ context.Context, userID string, attrs map[string]any) error {
	if userID == "" {
		return ErrUserIDRequired
	}

	s.mu.Lock()
	s.items[userID] = clone(attrs)
	s.mu.Unlock()
	return nil
}

func clone(attrs map[string]any) map[string]any {
	copied := make(map[string]any, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}
	return copied
}
