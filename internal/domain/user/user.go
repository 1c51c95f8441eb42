// Package user provides user domain models and the authentication service.
package user

import (
	"context"
	"errors"
	"time"
)

const (
	RoleGuest = "guest"
	RoleUser  = "user"

	TierFree = "free"

	// MinPasswordLength is the shortest accepted signup password.
	MinPasswordLength = 6
)

var (
	// ErrEmailTaken is returned on signup with an email that is already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials is returned when email and password do not match.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUserNotFound is returned when a principal references a deleted user.
	ErrUserNotFound = errors.New("user not found")
)

// User models a registered account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name,omitempty"`
	Tier         string    `json:"tier"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Principal is the authenticated caller attached to every request.
type Principal struct {
	UserID  string `json:"userId"`
	IsGuest bool   `json:"isGuest"`
	Role    string `json:"role"`
	Name    string `json:"name,omitempty"`
}

// AuthResult is returned by signup and login.
type AuthResult struct {
	AccessToken          string            `json:"accessToken"`
	User                 *User             `json:"user"`
	ConversationMappings map[string]string `json:"conversationMappings,omitempty"`
}

// GuestResult is returned by guest login.
type GuestResult struct {
	AccessToken string    `json:"accessToken"`
	Principal   Principal `json:"user"`
}

// Repository defines storage operations for users.
type Repository interface {
	// FindByEmail returns nil, nil when no user has the email.
	FindByEmail(ctx context.Context, email string) (*User, error)
	// FindByID returns nil, nil when the user does not exist.
	FindByID(ctx context.Context, id string) (*User, error)
	// Create returns ErrEmailTaken when the email is already registered.
	Create(ctx context.Context, u *User) error
}

// TokenIssuer signs principal tokens.
type TokenIssuer interface {
	Issue(p Principal, ttl time.Duration) (string, error)
}

// SessionMerger moves a guest's conversations to a registered user.
type SessionMerger interface {
	Merge(ctx context.Context, realUserID, guestID string) (map[string]string, error)
}
