// Package redisstore implements the TTL key-value session store on Redis.
//
// Every entry is a hash holding the value, its absolute expiry in unix
// milliseconds and a revision bumped by each conditional write. Reads compare that expiry with the store clock, so an entry
// is unreadable the moment it expires even if Redis has not evicted it yet.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

const (
	fieldValue  = "v"
	fieldExpiry = "exp"
	fieldRev    = "rev"
	scanCount   = 200
)

// refreshScript extends a live entry and refuses to resurrect an expired one.
const refreshScript = `
local exp = redis.call("HGET", KEYS[1], "exp")
if not exp then
  return 0
end
if tonumber(exp) <= tonumber(ARGV[1]) then
  redis.call("DEL", KEYS[1])
  return 0
end
redis.call("HSET", KEYS[1], "exp", ARGV[2])
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return 1
`

// casScript replaces a live entry only when its revision still equals
// ARGV[2]. It returns -1 for a missing or expired entry, 0 on a revision
// mismatch and 1 after the write.
const casScript = `
local cur = redis.call("HMGET", KEYS[1], "exp", "rev")
if not cur[1] or tonumber(cur[1]) <= tonumber(ARGV[1]) then
  return -1
end
local rev = tonumber(cur[2]) or 0
if rev ~= tonumber(ARGV[2]) then
  return 0
end
redis.call("HSET", KEYS[1], "v", ARGV[3], "exp", ARGV[4], "rev", rev + 1)
redis.call("PEXPIRE", KEYS[1], ARGV[5])
return 1
`

// Store is a domain.KVStore backed by Redis.
type Store struct {
	rdb     redis.UniversalClient
	now     func() time.Time
	refresh *redis.Script
	cas     *redis.Script
}

// Option customizes a Store.
type Option func(*Store)

// WithClock injects the clock used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Store on an existing client.
func New(rdb redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		rdb:     rdb,
		now:     time.Now,
		refresh: redis.NewScript(refreshScript),
		cas:     redis.NewScript(casScript),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Connect parses a redis:// URL and returns a client.
func Connect(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("op=kv.connect: %w", err)
	}
	return redis.NewClient(opt), nil
}

func upstream(op string, err error) error {
	return fmt.Errorf("op=kv.%s: %w: %w", op, domain.ErrUpstreamUnavailable, err)
}

// Put stores value under key for ttl, replacing any previous entry and
// resetting its revision to 0.
func (s *Store) Put(ctx domain.Context, key string, value []byte, ttl time.Duration) error {
	ctx, span := otel.Tracer("kv.redis").Start(ctx, "kv.Put")
	defer span.End()
	span.SetAttributes(attribute.String("kv.key_prefix", keyPrefix(key)))
	if ttl <= 0 {
		return fmt.Errorf("op=kv.put: %w: ttl must be positive", domain.ErrInvalidArgument)
	}
	exp := s.now().Add(ttl).UnixMilli()
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, fieldValue, value, fieldExpiry, exp, fieldRev, 0)
		p.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return upstream("put", err)
	}
	return nil
}

// Get returns the live value for key or ErrNotFound.
func (s *Store) Get(ctx domain.Context, key string) ([]byte, error) {
	ctx, span := otel.Tracer("kv.redis").Start(ctx, "kv.Get")
	defer span.End()
	vals, err := s.rdb.HMGet(ctx, key, fieldValue, fieldExpiry).Result()
	if err != nil {
		span.RecordError(err)
		return nil, upstream("get", err)
	}
	v, ok := s.live(vals)
	if !ok {
		return nil, fmt.Errorf("op=kv.get: %w", domain.ErrNotFound)
	}
	return v, nil
}

func (s *Store) live(vals []any) ([]byte, bool) {
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return nil, false
	}
	raw, ok := vals[0].(string)
	if !ok {
		return nil, false
	}
	exp, ok := parseExpiry(vals[1])
	if !ok || exp <= s.now().UnixMilli() {
		return nil, false
	}
	return []byte(raw), true
}

func parseExpiry(v any) (int64, bool) {
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil
}

// Del removes keys. Missing keys are not an error.
func (s *Store) Del(ctx domain.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, span := otel.Tracer("kv.redis").Start(ctx, "kv.Del")
	defer span.End()
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		span.RecordError(err)
		return upstream("del", err)
	}
	return nil
}

// CompareAndSwap replaces the live entry under key when its revision equals
// rev, and bumps the revision. It reports false when another writer got there
// first and ErrNotFound when the entry is missing or expired.
func (s *Store) CompareAndSwap(ctx domain.Context, key string, rev int64, value []byte, ttl time.Duration) (bool, error) {
	ctx, span := otel.Tracer("kv.redis").Start(ctx, "kv.CompareAndSwap")
	defer span.End()
	span.SetAttributes(attribute.String("kv.key_prefix", keyPrefix(key)), attribute.Int64("kv.rev", rev))
	if ttl <= 0 {
		return false, fmt.Errorf("op=kv.cas: %w: ttl must be positive", domain.ErrInvalidArgument)
	}
	now := s.now()
	n, err := s.cas.Run(ctx, s.rdb, []string{key}, now.UnixMilli(), rev, value, now.Add(ttl).UnixMilli(), ttl.Milliseconds()).Int()
	if err != nil {
		span.RecordError(err)
		return false, upstream("cas", err)
	}
	switch n {
	case -1:
		return false, fmt.Errorf("op=kv.cas: %w", domain.ErrNotFound)
	case 0:
		span.SetAttributes(attribute.Bool("kv.stale", true))
		return false, nil
	}
	return true, nil
}

// Refresh resets the TTL of a live entry. Expired or missing entries report ErrNotFound.
func (s *Store) Refresh(ctx domain.Context, key string, ttl time.Duration) error {
	ctx, span := otel.Tracer("kv.redis").Start(ctx, "kv.Refresh")
	defer span.End()
	now := s.now()
	n, err := s.refresh.Run(ctx, s.rdb, []string{key}, now.UnixMilli(), now.Add(ttl).UnixMilli(), ttl.Milliseconds()).Int()
	if err != nil {
		span.RecordError(err)
		return upstream("refresh", err)
	}
	if n == 0 {
		return fmt.Errorf("op=kv.refresh: %w", domain.ErrNotFound)
	}
	return nil
}

// ListByPrefix returns every live value whose key starts with prefix.
// It scans the keyspace and is meant for maintenance only.
func (s *Store) ListByPrefix(ctx domain.Context, prefix string) ([][]byte, error) {
	ctx, span := otel.Tracer("kv.redis").Start(ctx, "kv.ListByPrefix")
	defer span.End()
	var out [][]byte
	err := s.scan(ctx, prefix, func(key string) error {
		vals, err := s.rdb.HMGet(ctx, key, fieldValue, fieldExpiry).Result()
		if err != nil {
			return err
		}
		if v, ok := s.live(vals); ok {
			out = append(out, v)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, upstream("list", err)
	}
	span.SetAttributes(attribute.Int("kv.live", len(out)))
	return out, nil
}

// CleanupExpired deletes entries under prefix whose expiry has passed and
// returns how many were removed.
func (s *Store) CleanupExpired(ctx domain.Context, prefix string) (int, error) {
	ctx, span := otel.Tracer("kv.redis").Start(ctx, "kv.CleanupExpired")
	defer span.End()
	nowMs := s.now().UnixMilli()
	deleted := 0
	err := s.scan(ctx, prefix, func(key string) error {
		raw, err := s.rdb.HGet(ctx, key, fieldExpiry).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		exp, ok := parseExpiry(raw)
		if !ok || exp > nowMs {
			return nil
		}
		if err := s.rdb.Del(ctx, key).Err(); err != nil {
			return err
		}
		deleted++
		return nil
	})
	span.SetAttributes(attribute.Int("kv.deleted", deleted))
	if err != nil {
		span.RecordError(err)
		return deleted, upstream("cleanup", err)
	}
	if deleted > 0 {
		slog.Debug("kv cleanup removed expired entries", slog.String("prefix", prefix), slog.Int("deleted", deleted))
	}
	return deleted, nil
}

func (s *Store) scan(ctx context.Context, prefix string, fn func(key string) error) error {
	var cursor uint64
	match := escapeGlob(prefix) + "*"
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, match, scanCount).Result()
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := fn(k); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string { return globEscaper.Replace(s) }

func keyPrefix(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[:i]
	}
	return key
}
