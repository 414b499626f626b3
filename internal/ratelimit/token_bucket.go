package ratelimit

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Refill and take happen in one script so concurrent processes share the
// bucket. Tokens are returned as a string to keep the fraction.
const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local nowData = redis.call("TIME")
local now = (nowData[1] * 1000) + math.floor(nowData[2] / 1000)

local data = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])

if tokens == nil then
  tokens = burst
else
  local delta = math.max(0, now - ts)
  tokens = math.min(burst, tokens + (delta / 1000) * rate)
end

local allowed = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
end

redis.call("HSET", KEYS[1], "tokens", tokens, "ts", now)
redis.call("PEXPIRE", KEYS[1], ttl)

return {allowed, tostring(tokens), now}
`

var (
	ErrInvalidRate     = errors.New("invalid_rate")
	ErrInvalidResponse = errors.New("invalid_rate_limit_response")
)

type TokenBucket struct {
	client *redis.Client
	script *redis.Script
}

type Result struct {
	Allowed    bool
	Remaining  float64
	RetryAfter time.Duration
}

func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{
		client: client,
		script: redis.NewScript(tokenBucketScript),
	}
}

// Allow takes one token from the bucket at key, refilled at rate tokens per
// second up to burst.
func (t *TokenBucket) Allow(ctx context.Context, key string, rate float64, burst int) (Result, error) {
	if t == nil || t.client == nil {
		return Result{}, ErrNotConfigured
	}
	if key == "" {
		return Result{}, ErrInvalidKey
	}
	if rate <= 0 || burst <= 0 {
		return Result{}, ErrInvalidRate
	}

	ttl := bucketTTL(rate, burst)
	res, err := t.script.Run(ctx, t.client, []string{key}, rate, burst, ttl.Milliseconds()).Slice()
	if err != nil {
		return Result{}, err
	}
	return parseResult(res, rate)
}

func parseResult(res []interface{}, rate float64) (Result, error) {
	if len(res) < 2 {
		return Result{}, ErrInvalidResponse
	}

	allowed, ok := res[0].(int64)
	if !ok {
		return Result{}, ErrInvalidResponse
	}

	var remaining float64
	switch v := res[1].(type) {
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Result{}, ErrInvalidResponse
		}
		remaining = parsed
	case int64:
		remaining = float64(v)
	default:
		return Result{}, ErrInvalidResponse
	}

	out := Result{Allowed: allowed == 1, Remaining: remaining}
	if !out.Allowed {
		out.RetryAfter = retryAfter(remaining, rate)
	}
	return out, nil
}

func retryAfter(remaining, rate float64) time.Duration {
	needed := 1 - remaining
	if needed <= 0 || rate <= 0 {
		return 0
	}
	return time.Duration(needed / rate * float64(time.Second))
}

// bucketTTL keeps an idle bucket around for twice its full refill time.
func bucketTTL(rate float64, burst int) time.Duration {
	seconds := math.Ceil((float64(burst) / rate) * 2)
	if seconds < 1 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}
