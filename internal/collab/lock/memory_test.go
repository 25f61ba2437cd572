package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flowdeck/flowdeck/backend/collab-service/internal/collab"
)

func newTestManager(ttl time.Duration) (*MemoryManager, *time.Time) {
	m := NewMemoryManager(ttl)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	return m, &now
}

func TestMemoryAcquireGrantAndDeny(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(5 * time.Minute)

	lk, err := m.Acquire(ctx, "node-1", ResourceNode, "alice")
	require.NoError(t, err)
	require.Equal(t, "alice", lk.LockedBy)
	require.Equal(t, ResourceNode, lk.ResourceType)

	_, err = m.Acquire(ctx, "node-1", ResourceNode, "bob")
	var locked *collab.LockedError
	require.True(t, errors.As(err, &locked))
	require.Equal(t, "alice", locked.Holder)
	require.Equal(t, "node-1", locked.ResourceID)
}

func TestMemoryReacquireRefreshesTTL(t *testing.T) {
	ctx := context.Background()
	m, now := newTestManager(5 * time.Minute)

	first, err := m.Acquire(ctx, "node-1", ResourceNode, "alice")
	require.NoError(t, err)

	*now = now.Add(2 * time.Minute)
	second, err := m.Acquire(ctx, "node-1", ResourceNode, "alice")
	require.NoError(t, err)
	// acquisition time survives, expiry moves forward
	require.Equal(t, first.AcquiredAt, second.AcquiredAt)
	require.True(t, second.ExpiresAt.After(first.ExpiresAt))
}

func TestMemoryExpiredLockIsReclaimedOnAcquire(t *testing.T) {
	ctx := context.Background()
	m, now := newTestManager(time.Minute)

	_, err := m.Acquire(ctx, "node-1", ResourceNode, "alice")
	require.NoError(t, err)

	*now = now.Add(2 * time.Minute)
	lk, err := m.Acquire(ctx, "node-1", ResourceNode, "bob")
	require.NoError(t, err)
	require.Equal(t, "bob", lk.LockedBy)
}

func TestMemoryHolderExpiry(t *testing.T) {
	ctx := context.Background()
	m, now := newTestManager(time.Minute)

	_, err := m.Acquire(ctx, "edge-1", ResourceEdge, "alice")
	require.NoError(t, err)

	holder, held, err := m.Holder(ctx, "edge-1")
	require.NoError(t, err)
	require.True(t, held)
	require.Equal(t, "alice", holder)

	*now = now.Add(2 * time.Minute)
	_, held, err = m.Holder(ctx, "edge-1")
	require.NoError(t, err)
	require.False(t, held)
}

func TestMemoryReleaseOnlyByHolder(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(time.Minute)

	_, err := m.Acquire(ctx, "node-1", ResourceNode, "alice")
	require.NoError(t, err)

	ok, err := m.Release(ctx, "node-1", "bob")
	require.NoError(t, err)
	require.False(t, ok)

	holder, held, _ := m.Holder(ctx, "node-1")
	require.True(t, held)
	require.Equal(t, "alice", holder)

	ok, err = m.Release(ctx, "node-1", "alice")
	require.NoError(t, err)
	require.True(t, ok)

	// releasing a free resource is a quiet no-op
	ok, err = m.Release(ctx, "node-1", "alice")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryReleaseAll(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(time.Minute)

	_, err := m.Acquire(ctx, "node-1", ResourceNode, "alice")
	require.NoError(t, err)
	_, err = m.Acquire(ctx, "node-2", ResourceNode, "alice")
	require.NoError(t, err)
	_, err = m.Acquire(ctx, "node-3", ResourceNode, "bob")
	require.NoError(t, err)

	released, err := m.ReleaseAll(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, released, 2)

	_, held, _ := m.Holder(ctx, "node-1")
	require.False(t, held)
	holder, held, _ := m.Holder(ctx, "node-3")
	require.True(t, held)
	require.Equal(t, "bob", holder)
}

func TestMemorySweepExpired(t *testing.T) {
	ctx := context.Background()
	m, now := newTestManager(time.Minute)

	_, err := m.Acquire(ctx, "node-1", ResourceNode, "alice")
	require.NoError(t, err)
	*now = now.Add(30 * time.Second)
	_, err = m.Acquire(ctx, "node-2", ResourceNode, "bob")
	require.NoError(t, err)

	*now = now.Add(45 * time.Second)
	expired, err := m.SweepExpired(ctx)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	require.Equal(t, "node-1", expired[0].ResourceID)

	_, held, _ := m.Holder(ctx, "node-2")
	require.True(t, held)
}

func TestMemoryAcquireValidation(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(time.Minute)

	_, err := m.Acquire(ctx, "", ResourceNode, "alice")
	require.ErrorIs(t, err, collab.ErrValidation)
	_, err = m.Acquire(ctx, "node-1", ResourceNode, "")
	require.ErrorIs(t, err, collab.ErrValidation)
	_, err = m.Acquire(ctx, "node-1", ResourceType("table"), "alice")
	require.ErrorIs(t, err, collab.ErrValidation)
}

func TestMemoryConcurrentAcquireSingleWinner(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryManager(time.Minute)

	const workers = 32
	var wg sync.WaitGroup
	granted := make(chan string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		owner := string(rune('a' + i%26))
		go func(owner string) {
			defer wg.Done()
			if _, err := m.Acquire(ctx, "contested", ResourceNode, owner); err == nil {
				granted <- owner
			}
		}(owner + "-worker")
	}
	wg.Wait()
	close(granted)

	winners := map[string]bool{}
	for owner := range granted {
		winners[owner] = true
	}
	// all grants must have gone to exactly one owner
	require.Len(t, winners, 1)

	holder, held, err := m.Holder(ctx, "contested")
	require.NoError(t, err)
	require.True(t, held)
	require.True(t, winners[holder])
}
