package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/flowdeck/flowdeck/backend/collab-service/internal/collab"
)

func newRedisManager(t *testing.T, ttl time.Duration) (*RedisManager, *mr.Miniredis) {
	t.Helper()
	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	return NewRedisManager(client, "lock:", ttl), m
}

func TestRedisAcquireGrantAndDeny(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newRedisManager(t, time.Minute)

	lk, err := mgr.Acquire(ctx, "node-1", ResourceNode, "alice")
	require.NoError(t, err)
	require.Equal(t, "alice", lk.LockedBy)

	_, err = mgr.Acquire(ctx, "node-1", ResourceNode, "bob")
	var locked *collab.LockedError
	require.True(t, errors.As(err, &locked))
	require.Equal(t, "alice", locked.Holder)
}

func TestRedisReacquireRefreshesTTL(t *testing.T) {
	ctx := context.Background()
	mgr, srv := newRedisManager(t, time.Minute)

	first, err := mgr.Acquire(ctx, "node-1", ResourceNode, "alice")
	require.NoError(t, err)

	srv.FastForward(45 * time.Second)
	second, err := mgr.Acquire(ctx, "node-1", ResourceNode, "alice")
	require.NoError(t, err)
	require.Equal(t, first.AcquiredAt.Unix(), second.AcquiredAt.Unix())

	// the refresh pushed the key TTL out past the original deadline
	srv.FastForward(45 * time.Second)
	holder, held, err := mgr.Holder(ctx, "node-1")
	require.NoError(t, err)
	require.True(t, held)
	require.Equal(t, "alice", holder)
}

func TestRedisExpiryFreesResource(t *testing.T) {
	ctx := context.Background()
	mgr, srv := newRedisManager(t, time.Minute)

	_, err := mgr.Acquire(ctx, "node-1", ResourceNode, "alice")
	require.NoError(t, err)

	srv.FastForward(2 * time.Minute)

	_, held, err := mgr.Holder(ctx, "node-1")
	require.NoError(t, err)
	require.False(t, held)

	lk, err := mgr.Acquire(ctx, "node-1", ResourceNode, "bob")
	require.NoError(t, err)
	require.Equal(t, "bob", lk.LockedBy)
}

func TestRedisReleaseOnlyByHolder(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newRedisManager(t, time.Minute)

	_, err := mgr.Acquire(ctx, "node-1", ResourceNode, "alice")
	require.NoError(t, err)

	ok, err := mgr.Release(ctx, "node-1", "bob")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = mgr.Release(ctx, "node-1", "alice")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = mgr.Release(ctx, "node-1", "alice")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisReleaseAll(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newRedisManager(t, time.Minute)

	_, err := mgr.Acquire(ctx, "node-1", ResourceNode, "alice")
	require.NoError(t, err)
	_, err = mgr.Acquire(ctx, "edge-1", ResourceEdge, "alice")
	require.NoError(t, err)
	_, err = mgr.Acquire(ctx, "node-2", ResourceNode, "bob")
	require.NoError(t, err)

	released, err := mgr.ReleaseAll(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, released, 2)

	_, held, _ := mgr.Holder(ctx, "node-1")
	require.False(t, held)
	holder, held, _ := mgr.Holder(ctx, "node-2")
	require.True(t, held)
	require.Equal(t, "bob", holder)
}
