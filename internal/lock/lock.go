// Package lock provides distributed mutual exclusion on top of Redis,
// used to make per-user, per-module evaluation submission idempotent.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "lock:"

	maxAcquireAttempts = 4
	initialBackoff     = 50 * time.Millisecond
)

// Handle proves current ownership of a lock. The token is generated per
// acquisition and must match the stored value for release/extend to act.
type Handle struct {
	Key   string
	Token string

	// noop marks a handle issued while the backend was unreachable; see
	// Service docs for the degradation trade-off.
	noop bool
}

// Service is the lock contract. Acquire returns (nil, nil) when the lock is
// held by someone else after all retries; callers must treat that as "try
// again later", never as an error.
type Service interface {
	Acquire(ctx context.Context, resourceKey string, ttl time.Duration) (*Handle, error)
	Release(ctx context.Context, handle *Handle) (bool, error)
	Extend(ctx context.Context, handle *Handle, additionalTTL time.Duration) (bool, error)
}

// Release and extend must be single atomic check-and-act operations so a
// slow holder can never touch a lock that expired and was re-acquired by
// another request. Plain GET+DEL would leave exactly that gap.
var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

type redisLock struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisLock creates a Redis-backed lock service. With a nil client every
// acquisition succeeds as a no-op: a deliberate single-process deployment
// assumption that trades safety for liveness when no Redis is configured.
func NewRedisLock(client *redis.Client, logger *slog.Logger) Service {
	return &redisLock{client: client, logger: logger}
}

func (l *redisLock) Acquire(ctx context.Context, resourceKey string, ttl time.Duration) (*Handle, error) {
	if resourceKey == "" {
		return nil, errors.New("lock: resource key is empty")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("lock: invalid ttl %v", ttl)
	}

	if l.client == nil {
		return &Handle{Key: resourceKey, Token: uuid.NewString(), noop: true}, nil
	}

	key := keyPrefix + resourceKey
	token := uuid.NewString()
	backoff := initialBackoff

	for attempt := 0; attempt < maxAcquireAttempts; attempt++ {
		ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			// Backend unreachable: degrade to a no-op lock rather than
			// blocking every free-response submission.
			l.logger.Warn("lock backend unreachable, degrading to no-op lock",
				"resource", resourceKey,
				"error", err)
			return &Handle{Key: resourceKey, Token: token, noop: true}, nil
		}
		if ok {
			return &Handle{Key: resourceKey, Token: token}, nil
		}

		if attempt < maxAcquireAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}

	// Contended: the resource is owned by another holder.
	return nil, nil
}

func (l *redisLock) Release(ctx context.Context, handle *Handle) (bool, error) {
	if handle == nil {
		return false, errors.New("lock: nil handle")
	}
	if handle.noop || l.client == nil {
		return true, nil
	}

	res, err := releaseScript.Run(ctx, l.client, []string{keyPrefix + handle.Key}, handle.Token).Int()
	if err != nil {
		return false, fmt.Errorf("lock: release %s: %w", handle.Key, err)
	}
	return res == 1, nil
}

func (l *redisLock) Extend(ctx context.Context, handle *Handle, additionalTTL time.Duration) (bool, error) {
	if handle == nil {
		return false, errors.New("lock: nil handle")
	}
	if additionalTTL <= 0 {
		return false, fmt.Errorf("lock: invalid ttl %v", additionalTTL)
	}
	if handle.noop || l.client == nil {
		return true, nil
	}

	res, err := extendScript.Run(ctx, l.client,
		[]string{keyPrefix + handle.Key},
		handle.Token, additionalTTL.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("lock: extend %s: %w", handle.Key, err)
	}
	return res == 1, nil
}
