package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flowdeck/flowdeck/backend/collab-service/internal/workflow"
)

var ErrNotFound = errors.New("workflow not found")

// MemoryRepo is the in-memory workflow registry used for development and
// unit tests.
type MemoryRepo struct {
	mu    sync.RWMutex
	store map[string]*workflow.Workflow
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[string]*workflow.Workflow)}
}

func (m *MemoryRepo) Create(_ context.Context, w *workflow.Workflow) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	w.CreatedAt = now
	w.UpdatedAt = now
	c := *w
	m.store[w.ID] = &c
	return w.ID, nil
}

func (m *MemoryRepo) Get(_ context.Context, id string) (*workflow.Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *w
	c.Collaborators = append([]workflow.Collaborator(nil), w.Collaborators...)
	return &c, nil
}

func (m *MemoryRepo) List(_ context.Context) ([]*workflow.Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*workflow.Workflow, 0, len(m.store))
	for _, w := range m.store {
		c := *w
		out = append(out, &c)
	}
	return out, nil
}

func (m *MemoryRepo) SetCollaborators(_ context.Context, id string, collaborators []workflow.Collaborator) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.store[id]
	if !ok {
		return ErrNotFound
	}
	w.Collaborators = append([]workflow.Collaborator(nil), collaborators...)
	w.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return ErrNotFound
	}
	delete(m.store, id)
	return nil
}
