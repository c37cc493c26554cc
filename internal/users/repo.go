package users

import (
	"context"
	"errors"
)

var (
	ErrNotFound     = errors.New("user not found")
	ErrConflict     = errors.New("user already exists")
	ErrInvalidInput = errors.New("invalid user input")
)

type Repo interface {
	// Create inserts a user. A duplicate e-mail (case-insensitive) returns ErrConflict.
	Create(ctx context.Context, user User) error
	GetByID(ctx context.Context, userID string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByGoogleID(ctx context.Context, googleID string) (User, error)
	ListByCompany(ctx context.Context, companyID string) ([]User, error)
	CountByCompany(ctx context.Context, companyID string) (int, error)
	MarkVerified(ctx context.Context, userID string) error
	SetOnboardingStatus(ctx context.Context, userID string, status OnboardingStatus) error
	LinkGoogle(ctx context.Context, userID, googleID string) error
}
