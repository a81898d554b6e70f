package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultRedisLockKey is shared by every process that mutates the same ledger
	DefaultRedisLockKey = "autoroster:ledger:lock"

	// redisLockTTL bounds how long a crashed holder can block everyone else. A live holder
	// renews it every third of the TTL for as long as it holds the lock.
	redisLockTTL = 60 * time.Second

	redisRetryInterval = 100 * time.Millisecond
)

// ErrLockLost is returned on release when the lease expired and was taken by someone else
// while the lock was held
var ErrLockLost = errors.New("priority ledger lock lease was lost while held")

// Only delete the key if we still own it
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Only push the expiry out if we still own it
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker is a Locker shared between processes (several CLI invocations and the HTTP server)
// that all mutate one ledger
type RedisLocker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	retry  time.Duration

	// extend renews the lease for token and reports whether it is still held
	extend func(ctx context.Context, token string) (bool, error)
}

// NewRedisLocker creates a RedisLocker on key. An empty key uses DefaultRedisLockKey.
func NewRedisLocker(client *redis.Client, key string) *RedisLocker {
	if key == "" {
		key = DefaultRedisLockKey
	}
	l := &RedisLocker{
		client: client,
		key:    key,
		ttl:    redisLockTTL,
		retry:  redisRetryInterval,
	}
	l.extend = l.extendLease
	return l
}

// Acquire polls SET NX until it wins the key or wait elapses. The lease is renewed in the
// background until the returned Release is called.
func (l *RedisLocker) Acquire(ctx context.Context, wait time.Duration) (Release, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(wait)

	for {
		ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire redis lock: %w", err)
		}
		if ok {
			lease := l.startLease(token)
			return l.releaseFunc(token, lease), nil
		}

		if time.Now().Add(l.retry).After(deadline) {
			return nil, ErrLockTimeout
		}

		select {
		case <-time.After(l.retry):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (l *RedisLocker) extendLease(ctx context.Context, token string) (bool, error) {
	n, err := extendScript.Run(ctx, l.client, []string{l.key}, token, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// lease is the renewal loop behind one held lock
type lease struct {
	stop chan struct{}
	done chan struct{}
	lost bool
}

func (l *RedisLocker) startLease(token string) *lease {
	ls := &lease{stop: make(chan struct{}), done: make(chan struct{})}
	go l.keepAlive(token, ls)
	return ls
}

// keepAlive renews the lease every third of the TTL until stopped. A failed renewal is retried
// on the next tick; a renewal that finds the key owned by someone else ends the loop.
func (l *RedisLocker) keepAlive(token string, ls *lease) {
	defer close(ls.done)

	interval := l.ttl / 3
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ls.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			owned, err := l.extend(ctx, token)
			cancel()
			if err == nil && !owned {
				ls.lost = true
				return
			}
		}
	}
}

func (l *RedisLocker) releaseFunc(token string, ls *lease) Release {
	var once sync.Once
	var releaseErr error
	return func() error {
		once.Do(func() {
			close(ls.stop)
			<-ls.done
			if ls.lost {
				releaseErr = ErrLockLost
				return
			}

			// Release must run even if the caller's context was cancelled mid-operation
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
				releaseErr = fmt.Errorf("failed to release redis lock: %w", err)
			}
		})
		return releaseErr
	}
}
