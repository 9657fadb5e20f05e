package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adpulse-ai/platform/pkg/common/logger"
	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

var ErrLocked = errors.New("lock held by another worker")

// Locker serializes work on a key across processes.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

type RedisMutex struct {
	client *redislock.Client
	prefix string
}

func NewRedisMutex(client redis.Scripter, prefix string) *RedisMutex {
	return &RedisMutex{client: redislock.New(client), prefix: prefix}
}

// Lock obtains the key without waiting. ErrLocked is returned when another
// holder has it. ttl bounds how long a crashed holder can block the key.
func (m *RedisMutex) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	lockKey := fmt.Sprintf("%s:%s", m.prefix, key)
	lock, err := m.client.Obtain(ctx, lockKey, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrLocked, lockKey)
	}
	if err != nil {
		return nil, fmt.Errorf("obtaining lock %s: %w", lockKey, err)
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			logger.Log.WithError(err).WithField("lock", lockKey).Warn("failed to release lock")
		}
	}
	return release, nil
}
