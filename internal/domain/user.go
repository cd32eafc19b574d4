package domain

import "context"

// Role is the access level carried in issued tokens
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
)

// User represents a site operator account
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string // bcrypt, never leaves the process
	Role         Role
	Active       bool
}

// PublicUser is the outgoing shape of a user, scrubbed of credentials
type PublicUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	Active   bool   `json:"active"`
}

// Public returns the user without its password hash
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
		Active:   u.Active,
	}
}

// UserRepository defines access to the credential store
type UserRepository interface {
	// FindByIdentifier matches username or email and returns active users only
	FindByIdentifier(ctx context.Context, identifier string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
	SetActive(ctx context.Context, userID string, active bool) error
}
