package lock

import (
	"context"
	"sync"
	"time"

	"github.com/flowdeck/flowdeck/backend/collab-service/internal/collab"
)

// MemoryManager keeps claims in a process-local map. This is the single
// process design; multi-instance deployments use the Redis manager instead.
type MemoryManager struct {
	mu    sync.Mutex
	locks map[string]*EditLock
	ttl   time.Duration
	now   func() time.Time
}

// NewMemoryManager creates an in-memory lock manager with the given TTL.
func NewMemoryManager(ttl time.Duration) *MemoryManager {
	return &MemoryManager{
		locks: make(map[string]*EditLock),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (m *MemoryManager) Acquire(_ context.Context, resourceID string, rt ResourceType, owner string) (*EditLock, error) {
	if resourceID == "" || owner == "" {
		return nil, collab.Validationf("resource id and owner are required")
	}
	if !rt.Valid() {
		return nil, collab.Validationf("unknown resource type %q", rt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	existing, ok := m.locks[resourceID]
	if ok && existing.Expired(now) {
		// lazy reclamation
		delete(m.locks, resourceID)
		existing, ok = nil, false
	}
	if ok && existing.LockedBy != owner {
		return nil, &collab.LockedError{ResourceID: resourceID, Holder: existing.LockedBy}
	}

	lk := &EditLock{
		ResourceID:   resourceID,
		ResourceType: rt,
		LockedBy:     owner,
		AcquiredAt:   now,
		ExpiresAt:    now.Add(m.ttl),
	}
	if ok {
		// idempotent re-acquire: keep the original acquisition time
		lk.AcquiredAt = existing.AcquiredAt
	}
	m.locks[resourceID] = lk
	out := *lk
	return &out, nil
}

func (m *MemoryManager) Release(_ context.Context, resourceID, owner string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.locks[resourceID]
	if !ok || existing.LockedBy != owner {
		return false, nil
	}
	delete(m.locks, resourceID)
	return true, nil
}

func (m *MemoryManager) ReleaseAll(_ context.Context, owner string) ([]EditLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var released []EditLock
	for id, lk := range m.locks {
		if lk.LockedBy == owner {
			released = append(released, *lk)
			delete(m.locks, id)
		}
	}
	return released, nil
}

func (m *MemoryManager) Holder(_ context.Context, resourceID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.locks[resourceID]
	if !ok {
		return "", false, nil
	}
	if existing.Expired(m.now()) {
		delete(m.locks, resourceID)
		return "", false, nil
	}
	return existing.LockedBy, true, nil
}

func (m *MemoryManager) SweepExpired(_ context.Context) ([]EditLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	var expired []EditLock
	for id, lk := range m.locks {
		if lk.Expired(now) {
			expired = append(expired, *lk)
			delete(m.locks, id)
		}
	}
	return expired, nil
}
