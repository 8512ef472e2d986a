package redisstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redismock "github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis, *fakeClock) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	clk := &fakeClock{t: time.Now()}
	return New(rdb, WithClock(clk.Now)), mr, clk
}

func TestStore_PutGet(t *testing.T) {
	ctx := context.Background()
	s, mr, _ := newTestStore(t)

	require.NoError(t, s.Put(ctx, "interview_session:abc", []byte(`{"stage":"email_verified"}`), time.Hour))
	got, err := s.Get(ctx, "interview_session:abc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"stage":"email_verified"}`, string(got))
	assert.Greater(t, mr.TTL("interview_session:abc"), 59*time.Minute)

	_, err = s.Get(ctx, "interview_session:missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestStore_Put_RejectsNonPositiveTTL(t *testing.T) {
	s, _, _ := newTestStore(t)
	err := s.Put(context.Background(), "k", []byte("v"), 0)
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
}

func TestStore_Get_ExpiredWithoutSweep(t *testing.T) {
	ctx := context.Background()
	s, mr, clk := newTestStore(t)

	require.NoError(t, s.Put(ctx, "interview_session:old", []byte("x"), 2*time.Hour))
	clk.Advance(2*time.Hour + time.Second)

	// Redis still holds the key: only the read-time check hides it.
	assert.True(t, mr.Exists("interview_session:old"))
	_, err := s.Get(ctx, "interview_session:old")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestStore_Refresh(t *testing.T) {
	ctx := context.Background()
	s, mr, clk := newTestStore(t)

	require.NoError(t, s.Put(ctx, "k", []byte("v"), time.Minute))
	clk.Advance(50 * time.Second)
	require.NoError(t, s.Refresh(ctx, "k", time.Minute))
	clk.Advance(50 * time.Second)
	_, err := s.Get(ctx, "k")
	require.NoError(t, err, "refresh should have extended the entry")

	clk.Advance(2 * time.Minute)
	err = s.Refresh(ctx, "k", time.Minute)
	assert.True(t, errors.Is(err, domain.ErrNotFound), "expired entries are not resurrected")
	assert.False(t, mr.Exists("k"))

	err = s.Refresh(ctx, "missing", time.Minute)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestStore_ListByPrefix_SkipsExpired(t *testing.T) {
	ctx := context.Background()
	s, _, clk := newTestStore(t)

	require.NoError(t, s.Put(ctx, "interview_session:a", []byte("a"), time.Minute))
	require.NoError(t, s.Put(ctx, "interview_session:b", []byte("b"), time.Hour))
	require.NoError(t, s.Put(ctx, "other:c", []byte("c"), time.Hour))
	clk.Advance(2 * time.Minute)

	vals, err := s.ListByPrefix(ctx, "interview_session:")
	require.NoError(t, err)
	got := make([]string, 0, len(vals))
	for _, v := range vals {
		got = append(got, string(v))
	}
	sort.Strings(got)
	assert.Equal(t, []string{"b"}, got)
}

func TestStore_CleanupExpired(t *testing.T) {
	ctx := context.Background()
	s, mr, clk := newTestStore(t)

	require.NoError(t, s.Put(ctx, "interview_session:a", []byte("a"), time.Minute))
	require.NoError(t, s.Put(ctx, "interview_session:b", []byte("b"), time.Hour))
	mr.HSet("interview_session:foreign", "x", "y")
	clk.Advance(2 * time.Minute)

	n, err := s.CleanupExpired(ctx, "interview_session:")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, mr.Exists("interview_session:a"))
	assert.True(t, mr.Exists("interview_session:b"))
	assert.True(t, mr.Exists("interview_session:foreign"))
}

func TestStore_Del(t *testing.T) {
	ctx := context.Background()
	s, mr, _ := newTestStore(t)
	require.NoError(t, s.Put(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, s.Put(ctx, "b", []byte("2"), time.Minute))
	require.NoError(t, s.Del(ctx, "a", "b", "missing"))
	assert.False(t, mr.Exists("a"))
	assert.False(t, mr.Exists("b"))
	require.NoError(t, s.Del(ctx))
}

func TestStore_CompareAndSwap(t *testing.T) {
	ctx := context.Background()
	s, mr, clk := newTestStore(t)
	require.NoError(t, s.Put(ctx, "interview_session:abc", []byte("v0"), time.Hour))

	ok, err := s.CompareAndSwap(ctx, "interview_session:abc", 0, []byte("v1"), 2*time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
	got, err := s.Get(ctx, "interview_session:abc")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))
	assert.Greater(t, mr.TTL("interview_session:abc"), 119*time.Minute)

	ok, err = s.CompareAndSwap(ctx, "interview_session:abc", 0, []byte("stale"), time.Hour)
	require.NoError(t, err)
	assert.False(t, ok, "a writer holding an old revision loses")
	got, _ = s.Get(ctx, "interview_session:abc")
	assert.Equal(t, "v1", string(got))

	ok, err = s.CompareAndSwap(ctx, "interview_session:abc", 1, []byte("v2"), time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Put(ctx, "interview_session:abc", []byte("reset"), time.Hour))
	ok, err = s.CompareAndSwap(ctx, "interview_session:abc", 0, []byte("v1"), time.Hour)
	require.NoError(t, err)
	assert.True(t, ok, "Put resets the revision")

	_, err = s.CompareAndSwap(ctx, "interview_session:missing", 0, []byte("x"), time.Hour)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	clk.Advance(2 * time.Hour)
	_, err = s.CompareAndSwap(ctx, "interview_session:abc", 1, []byte("late"), time.Hour)
	assert.True(t, errors.Is(err, domain.ErrNotFound), "expired entries are never resurrected")

	_, err = s.CompareAndSwap(ctx, "k", 0, []byte("x"), 0)
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
}

func TestStore_CompareAndSwap_OneWinnerPerRevision(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)
	require.NoError(t, s.Put(ctx, "k", []byte("v0"), time.Hour))

	const writers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.CompareAndSwap(ctx, "k", 0, []byte("v1"), time.Hour)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestStore_FailsClosedWhenRedisDown(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	s := New(db)

	mock.ExpectHMGet("k", fieldValue, fieldExpiry).SetErr(errors.New("connection refused"))
	_, err := s.Get(ctx, "k")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUpstreamUnavailable))
	assert.False(t, errors.Is(err, domain.ErrNotFound))
	assert.Contains(t, err.Error(), "op=kv.get")

	mock.ExpectDel("k").SetErr(errors.New("connection refused"))
	err = s.Del(ctx, "k")
	assert.True(t, errors.Is(err, domain.ErrUpstreamUnavailable))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `a\*b\?c\[d\]`, escapeGlob("a*b?c[d]"))
	assert.Equal(t, "interview_session", keyPrefix("interview_session:xyz"))
	assert.Equal(t, "plain", keyPrefix("plain"))
}
