// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"gym-membership/internal/domain"
	"gym-membership/internal/domain/ports/adapter"
	"gym-membership/internal/infra/metrics"
)

var _ adapter.Locker = (*RedisLocker)(nil)

// ErrLockLost is returned by Unlock when the key expired or changed hands.
var ErrLockLost = errors.New("lock no longer held")

type RedisLocker struct {
	cli     RedisClient
	retries int
	backoff time.Duration
}

func NewLocker(c RedisClient) *RedisLocker {
	return &RedisLocker{cli: c, retries: 5, backoff: 50 * time.Millisecond}
}

// TryLock takes key for ttl, retrying briefly while another holder has it.
// It returns domain.ErrLockNotAcquired when the key stays busy.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	var lastErr error
	for i := 0; i < l.retries; i++ {
		ok, err := l.cli.SetNX(ctx, key, token, ttl)
		switch {
		case err != nil:
			lastErr = err
		case ok:
			metrics.IncLockAttempt("acquired")
			return token, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(l.backoff):
		}
	}
	if lastErr != nil {
		metrics.IncLockAttempt("error")
		return "", lastErr
	}
	metrics.IncLockAttempt("busy")
	return "", domain.ErrLockNotAcquired
}

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	ok, err := l.cli.CompareAndDelete(ctx, key, token)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockLost
	}
	return nil
}
