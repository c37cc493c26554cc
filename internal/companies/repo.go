package companies

import (
	"context"
	"errors"

	"workforce-backend/internal/users"
)

var (
	ErrNotFound     = errors.New("company not found")
	ErrConflict     = errors.New("company code already exists")
	ErrInvalidInput = errors.New("invalid company input")
)

type Repo interface {
	// CreateWithAdmin stores the company and its first administrator atomically.
	// A duplicate code returns ErrConflict and a duplicate admin e-mail returns
	// users.ErrConflict; in both cases nothing is stored.
	CreateWithAdmin(ctx context.Context, company Company, admin users.User) error
	GetByID(ctx context.Context, id string) (Company, error)
	GetByCode(ctx context.Context, code string) (Company, error)
	List(ctx context.Context) ([]Company, error)
	UpdateName(ctx context.Context, id, name string) (Company, error)
	UpdatePlan(ctx context.Context, id string, plan Plan, maxEmployees int) (Company, error)
}
