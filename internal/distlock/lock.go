// Package distlock provides Redis-backed mutual exclusion between engine
// instances sharing one database.
package distlock

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var (
	ErrNotConfigured = errors.New("lock client not configured")
	ErrEmptyKey      = errors.New("lock key is empty")
	ErrInvalidTTL    = errors.New("lock ttl must be positive")

	errNotObtained = errors.New("lock not obtained")
)

const (
	pollInitialInterval = 5 * time.Millisecond
	pollMaxInterval     = 50 * time.Millisecond
)

// Locker holds token-fenced SETNX locks. Only the holder of the token can
// release a key; an expired lock is simply gone.
type Locker struct {
	client redis.UniversalClient
	script *redis.Script
}

func NewLocker(client redis.UniversalClient) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
	}
}

// TryLock returns the fencing token and whether the lock was taken.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, ErrNotConfigured
	}
	if key == "" {
		return "", false, ErrEmptyKey
	}
	if ttl <= 0 {
		return "", false, ErrInvalidTTL
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// Lock polls TryLock until the key is taken or wait elapses. A zero wait
// tries once. Not obtaining the lock in time is not an error.
func (l *Locker) Lock(ctx context.Context, key string, ttl, wait time.Duration) (string, bool, error) {
	if wait <= 0 {
		return l.TryLock(ctx, key, ttl)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = pollInitialInterval
	bo.MaxInterval = pollMaxInterval

	token, err := backoff.Retry(ctx, func() (string, error) {
		token, ok, err := l.TryLock(ctx, key, ttl)
		if err != nil {
			return "", backoff.Permanent(err)
		}
		if !ok {
			return "", errNotObtained
		}
		return token, nil
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxElapsedTime(wait),
	)
	if errors.Is(err, errNotObtained) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return token, true, nil
}

func (l *Locker) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil {
		return nil
	}
	if key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}
