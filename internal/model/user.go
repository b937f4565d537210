package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserStore defines persistence operations for users.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (User, error)
	GetBySubject(ctx context.Context, subject string) (User, error)
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	Create(ctx context.Context, user User) (User, error)
}

// User represents an account owning context documents. PasswordHash is empty
// for users provisioned through the external identity provider, AuthSubject
// is empty for users created via first-party signup.
type User struct {
	ID           uuid.UUID
	Email        string
	Name         string
	PasswordHash string
	AuthSubject  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TokenManager issues and validates first-party access tokens.
type TokenManager interface {
	GenerateAccessToken(userID uuid.UUID) (string, error)
	ParseAccessToken(token string) (uuid.UUID, error)
}
