package documents

import (
	"context"
	"errors"
)

var (
	ErrNotFound     = errors.New("document not found")
	ErrInvalidInput = errors.New("invalid document input")
)

// Repo persists document metadata.
type Repo interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, id string) (Document, error)
	// List returns documents inside q.Scope, newest first.
	List(ctx context.Context, q ListQuery) ([]Document, error)
	// Delete removes the row. A missing id returns ErrNotFound.
	Delete(ctx context.Context, id string) error
}
