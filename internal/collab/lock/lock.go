// Package lock implements per-resource mutual-exclusion claims with expiry.
//
// A claim is granted or denied immediately; there is no queueing or blocking
// wait, so no deadlock is possible. Every grant carries a fixed TTL that is
// refreshed by re-acquire calls from the current holder. Expired claims are
// reclaimed lazily on the next Acquire/Holder for the same resource and by a
// periodic sweep.
package lock

import (
	"context"
	"time"
)

// ResourceType identifies what kind of sub-resource a lock covers.
type ResourceType string

const (
	ResourceNode     ResourceType = "node"
	ResourceEdge     ResourceType = "edge"
	ResourceDocument ResourceType = "document"
)

// Valid reports whether rt is one of the known resource types.
func (rt ResourceType) Valid() bool {
	switch rt {
	case ResourceNode, ResourceEdge, ResourceDocument:
		return true
	}
	return false
}

// EditLock is a time-bounded claim on one editable sub-resource.
// At most one EditLock exists per resource id at any instant.
type EditLock struct {
	ResourceID   string       `json:"resourceId"`
	ResourceType ResourceType `json:"resourceType"`
	LockedBy     string       `json:"lockedBy"`
	AcquiredAt   time.Time    `json:"acquiredAt"`
	ExpiresAt    time.Time    `json:"expiresAt"`
}

// Expired reports whether the claim's TTL has passed.
func (l *EditLock) Expired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// Manager is the only path through which EditLock records may be mutated.
type Manager interface {
	// Acquire grants the lock when the resource is free (or held by an
	// expired claim), refreshes the TTL when owner already holds it, and
	// returns *collab.LockedError naming the holder otherwise.
	Acquire(ctx context.Context, resourceID string, rt ResourceType, owner string) (*EditLock, error)

	// Release drops the claim. Only the current holder may release; a
	// release by anyone else reports false with no mutation.
	Release(ctx context.Context, resourceID, owner string) (bool, error)

	// ReleaseAll drops every claim held by owner and returns the released
	// set so callers can broadcast the resources as unlocked.
	ReleaseAll(ctx context.Context, owner string) ([]EditLock, error)

	// Holder returns the identity holding an unexpired claim on the
	// resource, if any.
	Holder(ctx context.Context, resourceID string) (string, bool, error)

	// SweepExpired reclaims every claim past its deadline and returns the
	// reclaimed set. Safe to run concurrently with user operations.
	SweepExpired(ctx context.Context) ([]EditLock, error)
}
