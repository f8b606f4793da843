package core

import (
	"context"
	"time"
)

// Roles known to the service. Deployments may configure others.
const (
	RoleAdmin  = "admin"
	RolePoster = "poster"
	RoleVendor = "vendor"
	RoleHost   = "host"
	RoleUser   = "user"
)

type (
	User struct {
		ID           string    `json:"id"`
		Subject      string    `json:"subject,omitempty"` // External identity, e.g. "github:42".
		Username     string    `json:"username"`
		Email        string    `json:"email,omitempty"`
		PasswordHash string    `json:"-"`
		Roles        []string  `json:"roles"`
		AvatarURL    string    `json:"avatarUrl,omitempty"`
		CreatedAt    time.Time `json:"createdAt"`
	}

	// UserStore persists local and OAuth accounts.
	UserStore interface {
		// CreateUser stores u, assigning its ID. Duplicate email or subject is ErrConflict.
		CreateUser(ctx context.Context, u *User) error
		FindUserByID(ctx context.Context, id string) (*User, error)
		FindUserByEmail(ctx context.Context, email string) (*User, error)
		FindUserBySubject(ctx context.Context, subject string) (*User, error)
	}
)

// HasAnyRole reports whether u holds at least one of roles.
func (u *User) HasAnyRole(roles ...string) bool {
	return HasAnyRole(u.Roles, roles...)
}

// HasAnyRole reports whether held and allowed intersect.
func HasAnyRole(held []string, allowed ...string) bool {
	for _, h := range held {
		for _, a := range allowed {
			if h == a {
				return true
			}
		}
	}
	return false
}
