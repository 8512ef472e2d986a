// Package ratelimiter throttles per-subject actions with token buckets kept in Redis.
package ratelimiter

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/observability"
)

// BucketConfig describes a token bucket. Buckets with a non-positive capacity
// or refill rate never deny.
type BucketConfig struct {
	Capacity   int64
	RefillRate float64 // tokens per second
}

// PerHour returns a bucket that admits n actions per hour with a burst of n.
func PerHour(n int) BucketConfig {
	if n <= 0 {
		return BucketConfig{}
	}
	return BucketConfig{Capacity: int64(n), RefillRate: float64(n) / 3600.0}
}

// RedisLimiter evaluates buckets atomically with a Lua script. Keys take the
// form "<bucket>:<subject>" and the bucket part selects the configuration.
type RedisLimiter struct {
	rdb     redis.Scripter
	script  *redis.Script
	now     func() time.Time
	mu      sync.RWMutex
	buckets map[string]BucketConfig
}

// Option customizes a RedisLimiter.
type Option func(*RedisLimiter)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *RedisLimiter) { l.now = now }
}

// New returns nil when rdb is nil; a nil limiter admits everything.
func New(rdb redis.Scripter, buckets map[string]BucketConfig, opts ...Option) *RedisLimiter {
	if rdb == nil {
		return nil
	}
	l := &RedisLimiter{
		rdb:     rdb,
		script:  redis.NewScript(tokenBucketScript),
		now:     time.Now,
		buckets: map[string]BucketConfig{},
	}
	for k, v := range buckets {
		l.buckets[k] = v
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// last_refill is kept in seconds with a fraction; the key expires once the
// bucket would be full again.
const tokenBucketScript = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill_rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])

local tokens = capacity
local last_refill = now

local data = redis.call("HMGET", key, "tokens", "last_refill")
if data[1] then
  tokens = tonumber(data[1])
end
if data[2] then
  last_refill = tonumber(data[2])
end

local delta = now - last_refill
if delta < 0 then
  delta = 0
end
tokens = math.min(capacity, tokens + delta * refill_rate)

local allowed = 0
local retry_after = 0
if tokens >= cost then
  tokens = tokens - cost
  allowed = 1
else
  retry_after = (cost - tokens) / refill_rate
end

redis.call("HSET", key, "tokens", tostring(tokens), "last_refill", tostring(now))
redis.call("EXPIRE", key, math.ceil((capacity - tokens) / refill_rate) + 1)

return { allowed, tostring(retry_after) }
`

// SetBucket replaces the configuration of bucket. Safe for concurrent use.
func (l *RedisLimiter) SetBucket(bucket string, cfg BucketConfig) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets[bucket] = cfg
}

// Allow spends cost tokens from key's bucket. A denied call reports how long
// until enough tokens have refilled. Redis failures fail open and return the
// error so callers can log it.
func (l *RedisLimiter) Allow(ctx context.Context, key string, cost int64) (bool, time.Duration, error) {
	if l == nil {
		return true, 0, nil
	}
	bucket, _, _ := strings.Cut(key, ":")
	l.mu.RLock()
	cfg, ok := l.buckets[bucket]
	l.mu.RUnlock()
	if !ok || cfg.Capacity <= 0 || cfg.RefillRate <= 0 {
		return true, 0, nil
	}
	if cost <= 0 {
		cost = 1
	}

	nowSec := float64(l.now().UnixNano()) / 1e9
	res, err := l.script.Run(ctx, l.rdb, []string{"rate:" + key}, cfg.Capacity, cfg.RefillRate, nowSec, cost).Slice()
	if err != nil {
		observability.LoggerFromContext(ctx).Error("rate limiter script failed", slog.String("bucket", bucket), slog.Any("error", err))
		return true, 0, err
	}
	if len(res) < 2 {
		return true, 0, nil
	}
	allowed := toInt64(res[0]) == 1
	observability.RecordRateLimit(bucket, allowed)
	if allowed {
		return true, 0, nil
	}
	wait := time.Duration(math.Ceil(toFloat64(res[1]) * float64(time.Second)))
	return false, wait, nil
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch t := v.(type) {
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0
		}
		return f
	case int64:
		return float64(t)
	default:
		return 0
	}
}
