// Package store persists role assignments.
package store

import (
	"context"
	"slices"
	"sync"

	"aidtrace/internal/access/models"
	"aidtrace/pkg/domain"
)

// InMemoryStore keeps assignments in a map guarded by a RWMutex.
type InMemoryStore struct {
	mu    sync.RWMutex
	roles map[domain.Identity][]models.Role
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{roles: make(map[domain.Identity][]models.Role)}
}

func (s *InMemoryStore) Roles(_ context.Context, identity domain.Identity) ([]models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.roles[identity]), nil
}

func (s *InMemoryStore) AddRole(_ context.Context, identity domain.Identity, role models.Role) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Contains(s.roles[identity], role) {
		return false, nil
	}
	s.roles[identity] = append(s.roles[identity], role)
	return true, nil
}

func (s *InMemoryStore) RemoveRole(_ context.Context, identity domain.Identity, role models.Role) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	held := s.roles[identity]
	i := slices.Index(held, role)
	if i < 0 {
		return false, nil
	}
	held = slices.Delete(slices.Clone(held), i, i+1)
	if len(held) == 0 {
		delete(s.roles, identity)
	} else {
		s.roles[identity] = held
	}
	return true, nil
}
