package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/invoicegen/platform/internal/domain/users"
)

// UserRepository implements users.Repository in-memory.
type UserRepository struct {
	mu    sync.RWMutex
	store map[string]users.User
}

// NewUserRepository constructs repository.
func NewUserRepository() *UserRepository {
	return &UserRepository{store: make(map[string]users.User)}
}

func (r *UserRepository) FindByID(_ context.Context, id string) (users.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.store[id]
	if !ok {
		return users.User{}, users.ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) FindByEmail(_ context.Context, email string) (users.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.store {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return users.User{}, users.ErrNotFound
}

func (r *UserRepository) Save(_ context.Context, user users.User) (users.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	user.Email = strings.ToLower(user.Email)
	for id, u := range r.store {
		if id != user.ID && u.Email == user.Email {
			return users.User{}, users.ErrEmailExists
		}
	}

	if user.ID == "" {
		user.ID = newID()
		user.CreatedAt = now
	} else if existing, ok := r.store[user.ID]; ok {
		user.CreatedAt = existing.CreatedAt
	} else {
		return users.User{}, users.ErrNotFound
	}
	user.UpdatedAt = now
	r.store[user.ID] = user
	return user, nil
}

// Ensure interface satisfaction at compile time.
var _ users.Repository = (*UserRepository)(nil)
