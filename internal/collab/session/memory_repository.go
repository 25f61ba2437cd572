package session

import (
	"context"
	"errors"
	"sync"
)

var ErrAlreadyExists = errors.New("session already exists")

// MemoryRepository is the in-memory store used for development and unit
// tests. Records are copied on the way in and out so callers never share
// mutable state with the store.
type MemoryRepository struct {
	mu    sync.RWMutex
	store map[string]*Session
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{store: make(map[string]*Session)}
}

func (r *MemoryRepository) Create(_ context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.store[s.ID]; ok {
		return ErrAlreadyExists
	}
	r.store[s.ID] = copySession(s)
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.store[id]
	if !ok {
		return nil, nil
	}
	return copySession(s), nil
}

func (r *MemoryRepository) GetActiveByDocument(_ context.Context, documentID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.store {
		if s.DocumentID == documentID && s.Status == StatusActive {
			return copySession(s), nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) Update(_ context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.store[s.ID]; !ok {
		return errors.New("session not found")
	}
	r.store[s.ID] = copySession(s)
	return nil
}

func (r *MemoryRepository) ListActive(_ context.Context) ([]*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*Session{}
	for _, s := range r.store {
		if s.Status == StatusActive {
			out = append(out, copySession(s))
		}
	}
	return out, nil
}

func copySession(s *Session) *Session {
	c := *s
	c.Participants = make([]Participant, len(s.Participants))
	copy(c.Participants, s.Participants)
	for i := range c.Participants {
		if cur := c.Participants[i].Cursor; cur != nil {
			cc := *cur
			c.Participants[i].Cursor = &cc
		}
		if sel := c.Participants[i].Selection; sel != nil {
			c.Participants[i].Selection = append([]string(nil), sel...)
		}
		if la := c.Participants[i].LeftAt; la != nil {
			lc := *la
			c.Participants[i].LeftAt = &lc
		}
	}
	if s.EndedAt != nil {
		e := *s.EndedAt
		c.EndedAt = &e
	}
	return &c
}
