package documents

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryRepo is an in-memory Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Document
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]Document)}
}

func (r *MemoryRepo) Create(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if doc.ID == "" {
		return ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[doc.ID] = doc
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.data[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

func (r *MemoryRepo) List(ctx context.Context, q ListQuery) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q = q.normalized()
	needle := strings.ToLower(q.Query)

	r.mu.RLock()
	docs := make([]Document, 0, len(r.data))
	for _, doc := range r.data {
		if !q.Scope.Allows(doc) {
			continue
		}
		if needle != "" && !matches(doc, needle) {
			continue
		}
		docs = append(docs, doc)
	}
	r.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID > docs[j].ID
		}
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})

	if q.Offset >= len(docs) {
		return []Document{}, nil
	}
	end := len(docs)
	if q.Offset+q.Limit < end {
		end = q.Offset + q.Limit
	}
	return docs[q.Offset:end], nil
}

func matches(doc Document, needle string) bool {
	return strings.Contains(strings.ToLower(doc.FileName), needle) ||
		strings.Contains(strings.ToLower(doc.OriginalName), needle) ||
		strings.Contains(strings.ToLower(string(doc.DocumentType)), needle) ||
		strings.Contains(strings.ToLower(doc.Metadata.Text), needle)
}

func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[id]; !ok {
		return ErrNotFound
	}
	delete(r.data, id)
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
