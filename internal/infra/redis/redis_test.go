//go:build !integration

package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gym-membership/internal/domain"
)

// memClient is an in-memory RedisClient without expiry.
type memClient struct {
	mu   sync.Mutex
	kv   map[string]string
	ttls map[string]time.Duration
	err  error
}

var _ RedisClient = (*memClient)(nil)

func newMemClient() *memClient {
	return &memClient{kv: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memClient) Ping(ctx context.Context) error { return m.err }

func (m *memClient) Set(ctx context.Context, key string, value interface{}, exp time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kv[key] = toString(value)
	m.ttls[key] = exp
	return m.err
}

func (m *memClient) SetNX(ctx context.Context, key string, value interface{}, exp time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.kv[key]; ok {
		return false, nil
	}
	m.kv[key] = toString(value)
	m.ttls[key] = exp
	return true, nil
}

func (m *memClient) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.kv[key]
	if !ok {
		return "", Nil
	}
	return v, nil
}

func (m *memClient) Incr(ctx context.Context, key string) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n, _ := strconv.ParseInt(m.kv[key], 10, 64)
	n++
	m.kv[key] = toString(n)
	return n, nil
}

func (m *memClient) Expire(ctx context.Context, key string, exp time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ttls[key] = exp
	return nil
}

func (m *memClient) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.kv, k)
	}
	return nil
}

func (m *memClient) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.kv[key] != value {
		return false, nil
	}
	delete(m.kv, key)
	return true, nil
}

func (m *memClient) Close() error { return nil }

func toString(v interface{}) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return fmt.Sprint(v)
}

func TestRedisLocker(t *testing.T) {
	ctx := context.Background()

	t.Run("should grant the lock once and release it by token", func(t *testing.T) {
		cli := newMemClient()
		l := NewLocker(cli)
		l.backoff = time.Millisecond

		token, err := l.TryLock(ctx, "lock:settle:gym_1", 30*time.Second)
		require.NoError(t, err)
		assert.Equal(t, 30*time.Second, cli.ttls["lock:settle:gym_1"])

		_, err = l.TryLock(ctx, "lock:settle:gym_1", 30*time.Second)
		assert.ErrorIs(t, err, domain.ErrLockNotAcquired)

		assert.ErrorIs(t, l.Unlock(ctx, "lock:settle:gym_1", "someone-else"), ErrLockLost)
		require.NoError(t, l.Unlock(ctx, "lock:settle:gym_1", token))

		_, err = l.TryLock(ctx, "lock:settle:gym_1", 30*time.Second)
		assert.NoError(t, err)
	})

	t.Run("should surface backend errors", func(t *testing.T) {
		cli := newMemClient()
		cli.err = errors.New("connection refused")
		l := NewLocker(cli)
		l.backoff = time.Millisecond

		_, err := l.TryLock(ctx, "k", time.Second)
		assert.EqualError(t, err, "connection refused")
	})
}

func TestRateLimiter(t *testing.T) {
	ctx := context.Background()
	cli := newMemClient()
	rl := NewRateLimiter(cli)

	for i := 0; i < 5; i++ {
		ok, err := rl.Allow(ctx, "rate_limit:payment_init:u1", 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "hit %d should pass", i+1)
	}
	ok, err := rl.Allow(ctx, "rate_limit:payment_init:u1", 5, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, cli.ttls["rate_limit:payment_init:u1"])

	ok, _ = rl.Allow(ctx, "rate_limit:payment_init:u2", 5, time.Minute)
	assert.True(t, ok)
}
