package companies

import (
	"context"
	"sort"
	"sync"
	"time"

	"workforce-backend/internal/users"
)

// MemoryRepo keeps companies in process. Admin accounts go to the shared
// users.MemoryRepo while the company lock is held, and the company is only
// stored once the admin insert succeeded.
type MemoryRepo struct {
	mu        sync.RWMutex
	companies map[string]Company
	users     *users.MemoryRepo
}

func NewMemoryRepo(userRepo *users.MemoryRepo) *MemoryRepo {
	return &MemoryRepo{companies: make(map[string]Company), users: userRepo}
}

func (r *MemoryRepo) CreateWithAdmin(ctx context.Context, company Company, admin users.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	code := NormalizeCode(company.Code)
	for _, existing := range r.companies {
		if existing.ID == company.ID || NormalizeCode(existing.Code) == code {
			return ErrConflict
		}
	}
	if err := r.users.Create(ctx, admin); err != nil {
		return err
	}
	now := time.Now().UTC()
	company.CreatedAt = now
	company.UpdatedAt = now
	r.companies[company.ID] = company
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Company, error) {
	if err := ctx.Err(); err != nil {
		return Company{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.companies[id]
	if !ok {
		return Company{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) GetByCode(ctx context.Context, code string) (Company, error) {
	if err := ctx.Err(); err != nil {
		return Company{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	code = NormalizeCode(code)
	for _, c := range r.companies {
		if NormalizeCode(c.Code) == code {
			return c, nil
		}
	}
	return Company{}, ErrNotFound
}

func (r *MemoryRepo) List(ctx context.Context) ([]Company, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Company, 0, len(r.companies))
	for _, c := range r.companies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) UpdateName(ctx context.Context, id, name string) (Company, error) {
	return r.update(ctx, id, func(c *Company) { c.Name = name })
}

func (r *MemoryRepo) UpdatePlan(ctx context.Context, id string, plan Plan, maxEmployees int) (Company, error) {
	return r.update(ctx, id, func(c *Company) {
		c.Plan = plan
		c.MaxEmployees = maxEmployees
	})
}

func (r *MemoryRepo) update(ctx context.Context, id string, fn func(*Company)) (Company, error) {
	if err := ctx.Err(); err != nil {
		return Company{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.companies[id]
	if !ok {
		return Company{}, ErrNotFound
	}
	fn(&c)
	c.UpdatedAt = time.Now().UTC()
	r.companies[id] = c
	return c, nil
}
