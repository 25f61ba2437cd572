package users

import (
	"context"
	"sync"
	"time"

	"github.com/flowdeck/flowdeck/backend/collab-service/internal/models"
)

// MemoryUserRepository is an in-memory UserRepository used when MongoDB is
// not configured (development, tests).
type MemoryUserRepository struct {
	mu    sync.RWMutex
	bySub map[string]*models.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{bySub: make(map[string]*models.User)}
}

func (r *MemoryUserRepository) UpsertBySub(_ context.Context, u *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	existing, ok := r.bySub[u.Sub]
	if !ok {
		stored := *u
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = now
		}
		stored.UpdatedAt = now
		r.bySub[u.Sub] = &stored
		out := stored
		return &out, nil
	}
	existing.Email = u.Email
	existing.Name = u.Name
	existing.UpdatedAt = now
	out := *existing
	return &out, nil
}

func (r *MemoryUserRepository) GetBySub(_ context.Context, sub string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.bySub[sub]
	if !ok {
		return nil, nil
	}
	out := *u
	return &out, nil
}
