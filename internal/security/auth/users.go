package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ecoterra/siteapi/internal/domain"
)

// UserStore is the in-memory credential store. It is seeded at boot and lost on restart.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]*domain.User // id -> user
}

// NewUserStore creates an empty user store
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]*domain.User)}
}

// Seed adds a user with an already hashed password and returns its id
func (us *UserStore) Seed(username, email, passwordHash string, role domain.Role) (string, error) {
	if username == "" || passwordHash == "" {
		return "", fmt.Errorf("seed user: username and password hash required")
	}

	us.mu.Lock()
	defer us.mu.Unlock()

	for _, u := range us.users {
		if strings.EqualFold(u.Username, username) || (email != "" && strings.EqualFold(u.Email, email)) {
			return "", fmt.Errorf("seed user %q: already exists", username)
		}
	}

	id := uuid.NewString()
	us.users[id] = &domain.User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		Active:       true,
	}
	return id, nil
}

// FindByIdentifier matches username or email, active users only
func (us *UserStore) FindByIdentifier(_ context.Context, identifier string) (*domain.User, error) {
	identifier = strings.TrimSpace(identifier)

	us.mu.RLock()
	defer us.mu.RUnlock()

	for _, u := range us.users {
		if !u.Active {
			continue
		}
		if u.Username == identifier || (u.Email != "" && strings.EqualFold(u.Email, identifier)) {
			c := *u
			return &c, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

// GetByID returns the user regardless of its active flag
func (us *UserStore) GetByID(_ context.Context, id string) (*domain.User, error) {
	us.mu.RLock()
	defer us.mu.RUnlock()

	u, ok := us.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

// UpdatePasswordHash replaces the stored hash in place
func (us *UserStore) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	us.mu.Lock()
	defer us.mu.Unlock()

	u, ok := us.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.PasswordHash = hash
	return nil
}

// SetActive toggles whether the user may log in and whether its tokens verify
func (us *UserStore) SetActive(_ context.Context, userID string, active bool) error {
	us.mu.Lock()
	defer us.mu.Unlock()

	u, ok := us.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Active = active
	return nil
}
