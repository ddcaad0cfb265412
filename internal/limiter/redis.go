// Package limiter implements session blocking, cooldowns, and per-session
// message rate limiting. The Redis implementation is the production path;
// the in-memory one backs local development and tests. Both satisfy
// contracts.SessionControl.
package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	blockKeyPrefix    = "dh:block:"
	cooldownKeyPrefix = "dh:cooldown:"
	bucketKeyPrefix   = "dh:bucket:"
)

// tokenBucketScript refills and consumes a per-session token bucket
// atomically. KEYS[1] = bucket key; ARGV = rate (tokens/sec), capacity,
// cost, now (unix seconds, fractional).
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local cost = tonumber(ARGV[3])
local now = tonumber(ARGV[4])

local state = redis.call("HMGET", key, "tokens", "last_refill")
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if not tokens or not last_refill then
    tokens = capacity
    last_refill = now
end

local elapsed = now - last_refill
if elapsed > 0 then
    tokens = tokens + elapsed * rate
    if tokens > capacity then
        tokens = capacity
    end
    last_refill = now
end

local allowed = 0
if tokens >= cost then
    tokens = tokens - cost
    allowed = 1
end

redis.call("HMSET", key, "tokens", tokens, "last_refill", last_refill)
redis.call("EXPIRE", key, 120)

return allowed
`)

// RedisControl is the Redis-backed SessionControl.
type RedisControl struct {
	client *redis.Client

	// Messages per minute allowed per session, and the burst capacity.
	RatePerMinute float64
	Burst         int
}

// NewRedisControl connects a session controller to Redis.
func NewRedisControl(addr, password string, db int) *RedisControl {
	return &RedisControl{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		RatePerMinute: 30,
		Burst:         10,
	}
}

// Ping verifies Redis connectivity.
func (c *RedisControl) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the Redis client.
func (c *RedisControl) Close() error { return c.client.Close() }

// BlockSession blocks a session for the given duration. The block is a
// plain key with TTL; expiry lifts the block with no cleanup pass.
func (c *RedisControl) BlockSession(ctx context.Context, sessionKey string, d time.Duration) error {
	if err := c.client.Set(ctx, blockKeyPrefix+sessionKey, "1", d).Err(); err != nil {
		return fmt.Errorf("block session: %w", err)
	}
	return nil
}

// IsBlocked reports whether a session is blocked or cooling down.
func (c *RedisControl) IsBlocked(ctx context.Context, sessionKey string) (bool, error) {
	n, err := c.client.Exists(ctx, blockKeyPrefix+sessionKey, cooldownKeyPrefix+sessionKey).Result()
	if err != nil {
		return false, fmt.Errorf("check session block: %w", err)
	}
	return n > 0, nil
}

// Cooldown pauses a session for the given duration.
func (c *RedisControl) Cooldown(ctx context.Context, sessionKey string, d time.Duration) error {
	if err := c.client.Set(ctx, cooldownKeyPrefix+sessionKey, "1", d).Err(); err != nil {
		return fmt.Errorf("cooldown session: %w", err)
	}
	return nil
}

// AllowMessage consumes one token from the session's bucket.
func (c *RedisControl) AllowMessage(ctx context.Context, sessionKey string) (bool, error) {
	rate := c.RatePerMinute / 60.0
	if rate <= 0 {
		rate = 1.0
	}
	now := float64(time.Now().UnixMicro()) / 1e6

	res, err := tokenBucketScript.Run(ctx, c.client, []string{bucketKeyPrefix + sessionKey}, rate, c.Burst, 1, now).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limit check: %w", err)
	}
	return res == 1, nil
}
