package lock

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flowdeck/flowdeck/backend/collab-service/internal/collab"
)

// RedisManager stores claims as JSON under "lock:<resourceId>" with a key
// TTL. Acquisition and release run as Lua scripts so the conditional-set is
// atomic across service instances; the key TTL is the authoritative expiry,
// the stored expiresAt field is informational.
type RedisManager struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var acquireScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
  local lk = cjson.decode(cur)
  if lk.lockedBy ~= ARGV[1] then
    return {0, cur}
  end
  redis.call('PEXPIRE', KEYS[1], ARGV[3])
  return {1, cur}
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return {1, ARGV[2]}
`)

var releaseScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur then
  return 0
end
local lk = cjson.decode(cur)
if lk.lockedBy ~= ARGV[1] then
  return 0
end
redis.call('DEL', KEYS[1])
return 1
`)

// NewRedisManager creates a Redis-backed lock manager. Prefix may be empty.
func NewRedisManager(client *redis.Client, prefix string, ttl time.Duration) *RedisManager {
	if prefix == "" {
		prefix = "lock:"
	}
	return &RedisManager{client: client, prefix: prefix, ttl: ttl}
}

func (m *RedisManager) key(resourceID string) string {
	return m.prefix + resourceID
}

func (m *RedisManager) Acquire(ctx context.Context, resourceID string, rt ResourceType, owner string) (*EditLock, error) {
	if resourceID == "" || owner == "" {
		return nil, collab.Validationf("resource id and owner are required")
	}
	if !rt.Valid() {
		return nil, collab.Validationf("unknown resource type %q", rt)
	}
	now := time.Now().UTC()
	lk := &EditLock{
		ResourceID:   resourceID,
		ResourceType: rt,
		LockedBy:     owner,
		AcquiredAt:   now,
		ExpiresAt:    now.Add(m.ttl),
	}
	payload, err := json.Marshal(lk)
	if err != nil {
		return nil, err
	}
	res, err := acquireScript.Run(ctx, m.client, []string{m.key(resourceID)},
		owner, payload, m.ttl.Milliseconds()).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	parts, ok := res.([]interface{})
	if !ok || len(parts) != 2 {
		return nil, fmt.Errorf("acquire lock: unexpected reply %v", res)
	}
	granted, _ := parts[0].(int64)
	raw, _ := parts[1].(string)
	var stored EditLock
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, fmt.Errorf("acquire lock: decode %w", err)
	}
	if granted == 0 {
		return nil, &collab.LockedError{ResourceID: resourceID, Holder: stored.LockedBy}
	}
	// re-acquire returns the original record; the TTL was refreshed
	stored.ExpiresAt = now.Add(m.ttl)
	return &stored, nil
}

func (m *RedisManager) Release(ctx context.Context, resourceID, owner string) (bool, error) {
	res, err := releaseScript.Run(ctx, m.client, []string{m.key(resourceID)}, owner).Int()
	if err != nil {
		return false, fmt.Errorf("release lock: %w", err)
	}
	return res == 1, nil
}

func (m *RedisManager) ReleaseAll(ctx context.Context, owner string) ([]EditLock, error) {
	var released []EditLock
	iter := m.client.Scan(ctx, 0, m.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := m.client.Get(ctx, key).Bytes()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return released, err
		}
		var lk EditLock
		if err := json.Unmarshal(raw, &lk); err != nil {
			continue
		}
		if lk.LockedBy != owner {
			continue
		}
		ok, err := m.Release(ctx, lk.ResourceID, owner)
		if err != nil {
			return released, err
		}
		if ok {
			released = append(released, lk)
		}
	}
	if err := iter.Err(); err != nil {
		return released, err
	}
	return released, nil
}

func (m *RedisManager) Holder(ctx context.Context, resourceID string) (string, bool, error) {
	raw, err := m.client.Get(ctx, m.key(resourceID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return "", false, nil
		}
		return "", false, err
	}
	var lk EditLock
	if err := json.Unmarshal(raw, &lk); err != nil {
		return "", false, err
	}
	return lk.LockedBy, true, nil
}

// SweepExpired is a no-op for the Redis manager: key TTLs expire claims
// server-side, so there is nothing left to reclaim or report.
func (m *RedisManager) SweepExpired(context.Context) ([]EditLock, error) {
	return nil, nil
}
