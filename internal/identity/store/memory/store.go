package memory

import (
	"context"
	"sync"
)

// Store is an in-memory role store for tests and single-process development.
type Store struct {
	mu     sync.RWMutex
	admins map[string]bool

	// Err makes every lookup fail, for exercising the resolver's
	// fail-closed path.
	Err error
}

func New() *Store {
	return &Store{admins: make(map[string]bool)}
}

// SetAdmin marks or unmarks a user as admin.
func (s *Store) SetAdmin(userID string, admin bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if admin {
		s.admins[userID] = true
	} else {
		delete(s.admins, userID)
	}
}

func (s *Store) IsAdmin(ctx context.Context, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return false, s.Err
	}
	return s.admins[userID], nil
}
