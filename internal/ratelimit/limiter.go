// Package ratelimit protects outbound HTTP calls made by the service node
// executor with a per-target-host token bucket. This is resource
// protection for a single process's outbound traffic, not the distributed,
// cross-node rate limiting its teacher shape was built for.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// bucketScript implements a token bucket: KEYS[1] is the bucket key,
// ARGV = {capacity, refillPerSecond, nowSeconds, requested}. It refills the
// bucket proportionally to elapsed time, then allows the request only if
// enough tokens remain, atomically debiting them. Kept as a Go string
// constant (rather than go:embed) so the script travels with the package
// with no separate asset file to lose.
const bucketScript = `
local tokens_key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill_per_sec = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])

local bucket = redis.call('HMGET', tokens_key, 'tokens', 'timestamp')
local tokens = tonumber(bucket[1])
local timestamp = tonumber(bucket[2])

if tokens == nil then
  tokens = capacity
  timestamp = now
end

local elapsed = math.max(0, now - timestamp)
tokens = math.min(capacity, tokens + (elapsed * refill_per_sec))

local allowed = 0
if tokens >= requested then
  allowed = 1
  tokens = tokens - requested
end

redis.call('HMSET', tokens_key, 'tokens', tokens, 'timestamp', now)
redis.call('EXPIRE', tokens_key, 3600)

return {allowed, tostring(tokens), tostring(capacity)}
`

// Result is the outcome of one Allow check.
type Result struct {
	Allowed         bool
	RemainingTokens float64
	Capacity        float64
}

// Limiter rate-limits outbound calls per host using a Redis-backed token
// bucket, shared across process instances hitting the same collaborator.
type Limiter struct {
	redis         *redis.Client
	script        *redis.Script
	capacity      float64
	refillPerSec  float64
}

// NewLimiter returns a Limiter where each distinct host gets its own bucket
// of capacity tokens, refilled at refillPerSec tokens/second.
func NewLimiter(client *redis.Client, capacity, refillPerSec float64) *Limiter {
	return &Limiter{
		redis:        client,
		script:       redis.NewScript(bucketScript),
		capacity:     capacity,
		refillPerSec: refillPerSec,
	}
}

// Allow consumes one token from host's bucket, refilling it first for the
// elapsed time since the last check. Returns Allowed=false, without error,
// when the bucket is empty.
func (l *Limiter) Allow(ctx context.Context, host string) (*Result, error) {
	key := fmt.Sprintf("ratelimit:host:%s", host)
	now := float64(time.Now().UnixNano()) / 1e9

	raw, err := l.script.Run(ctx, l.redis, []string{key}, l.capacity, l.refillPerSec, now, 1).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed for host %q: %w", host, err)
	}

	arr, ok := raw.([]interface{})
	if !ok || len(arr) != 3 {
		return nil, fmt.Errorf("unexpected rate limit script result format")
	}

	allowed, ok := arr[0].(int64)
	if !ok {
		return nil, fmt.Errorf("unexpected rate limit allowed field type %T", arr[0])
	}

	remaining, _ := strconv.ParseFloat(fmt.Sprint(arr[1]), 64)
	capacity, _ := strconv.ParseFloat(fmt.Sprint(arr[2]), 64)

	return &Result{
		Allowed:         allowed == 1,
		RemainingTokens: remaining,
		Capacity:        capacity,
	}, nil
}
