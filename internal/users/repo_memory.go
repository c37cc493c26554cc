package users

import (
	"context"
	"sort"
	"sync"
	"time"
)

type MemoryRepo struct {
	mu    sync.RWMutex
	users map[string]User
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{users: make(map[string]User)}
}

func (r *MemoryRepo) Create(ctx context.Context, user User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createLocked(user)
}

func (r *MemoryRepo) createLocked(user User) error {
	email := NormalizeEmail(user.Email)
	for _, existing := range r.users {
		if existing.ID == user.ID || NormalizeEmail(existing.Email) == email {
			return ErrConflict
		}
		if user.GoogleID != "" && existing.GoogleID == user.GoogleID {
			return ErrConflict
		}
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	r.users[user.ID] = user
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, userID string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (r *MemoryRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	return r.find(ctx, func(u User) bool { return NormalizeEmail(u.Email) == NormalizeEmail(email) })
}

func (r *MemoryRepo) GetByGoogleID(ctx context.Context, googleID string) (User, error) {
	if googleID == "" {
		return User{}, ErrNotFound
	}
	return r.find(ctx, func(u User) bool { return u.GoogleID == googleID })
}

func (r *MemoryRepo) find(ctx context.Context, match func(User) bool) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if match(u) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *MemoryRepo) ListByCompany(ctx context.Context, companyID string) ([]User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]User, 0)
	for _, u := range r.users {
		if u.CompanyID == companyID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) CountByCompany(ctx context.Context, companyID string) (int, error) {
	list, err := r.ListByCompany(ctx, companyID)
	return len(list), err
}

func (r *MemoryRepo) MarkVerified(ctx context.Context, userID string) error {
	return r.update(ctx, userID, func(u *User) { u.Verified = true })
}

func (r *MemoryRepo) SetOnboardingStatus(ctx context.Context, userID string, status OnboardingStatus) error {
	return r.update(ctx, userID, func(u *User) { u.OnboardingStatus = status })
}

func (r *MemoryRepo) LinkGoogle(ctx context.Context, userID, googleID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, u := range r.users {
		if id != userID && u.GoogleID == googleID {
			return ErrConflict
		}
	}
	u, ok := r.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.GoogleID = googleID
	u.UpdatedAt = time.Now().UTC()
	r.users[userID] = u
	return nil
}

func (r *MemoryRepo) update(ctx context.Context, userID string, fn func(*User)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return ErrNotFound
	}
	fn(&u)
	u.UpdatedAt = time.Now().UTC()
	r.users[userID] = u
	return nil
}
