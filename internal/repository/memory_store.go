package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ecoterra/siteapi/internal/domain"
)

// MemoryStore implements domain.Store in process memory, in insertion order
type MemoryStore[T any, P domain.Record[T]] struct {
	mu    sync.RWMutex
	kind  string
	items []T
	newID func() string
	now   func() time.Time
}

// NewMemoryStore creates an empty store; kind names the entity in errors
func NewMemoryStore[T any, P domain.Record[T]](kind string) *MemoryStore[T, P] {
	return &MemoryStore[T, P]{
		kind:  kind,
		items: []T{},
		newID: uuid.NewString,
		now:   time.Now,
	}
}

// NewTeamMemoryStore returns an in-memory team member store
func NewTeamMemoryStore() *MemoryStore[domain.TeamMember, *domain.TeamMember] {
	return NewMemoryStore[domain.TeamMember, *domain.TeamMember]("team member")
}

// NewProjectMemoryStore returns an in-memory project store
func NewProjectMemoryStore() *MemoryStore[domain.Project, *domain.Project] {
	return NewMemoryStore[domain.Project, *domain.Project]("project")
}

func (s *MemoryStore[T, P]) List(_ context.Context) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]T, len(s.items))
	copy(out, s.items)
	return out, nil
}

func (s *MemoryStore[T, P]) Get(_ context.Context, id string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		return s.items[i], nil
	}
	var zero T
	return zero, s.notFound(id)
}

func (s *MemoryStore[T, P]) Create(_ context.Context, item T) (T, error) {
	P(&item).Assign(s.newID(), s.now().UTC())

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = append(s.items, item)
	return item, nil
}

func (s *MemoryStore[T, P]) Update(_ context.Context, id string, fn func(*T)) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		var zero T
		return zero, s.notFound(id)
	}
	fn(&s.items[i])
	P(&s.items[i]).Touch(s.now().UTC())
	return s.items[i], nil
}

func (s *MemoryStore[T, P]) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return s.notFound(id)
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return nil
}

// indexOf must be called with the lock held
func (s *MemoryStore[T, P]) indexOf(id string) int {
	for i := range s.items {
		if P(&s.items[i]).RecordID() == id {
			return i
		}
	}
	return -1
}

func (s *MemoryStore[T, P]) notFound(id string) error {
	return fmt.Errorf("%s %q: %w", s.kind, id, domain.ErrNotFound)
}
