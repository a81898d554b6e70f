package ledger

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLockTimeout is returned when the ledger lock could not be acquired within the bounded wait.
// Nothing has been changed when it is returned; callers may retry the whole adjustment.
var ErrLockTimeout = errors.New("timed out waiting for priority ledger lock")

// Release gives up a held lock. Calling it more than once is safe.
type Release func() error

// Locker serializes all ledger mutations. The lock is ledger-wide, not per email.
type Locker interface {
	Acquire(ctx context.Context, wait time.Duration) (Release, error)
}

// LocalLocker is a Locker for mutators running inside a single process
// (the HTTP server, or an interactive CLI session)
type LocalLocker struct {
	sem chan struct{}
}

// NewLocalLocker creates an unlocked LocalLocker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{sem: make(chan struct{}, 1)}
}

// Acquire blocks until the lock is free, wait elapses, or ctx is done
func (l *LocalLocker) Acquire(ctx context.Context, wait time.Duration) (Release, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case l.sem <- struct{}{}:
		var once sync.Once
		return func() error {
			once.Do(func() { <-l.sem })
			return nil
		}, nil
	case <-timer.C:
		return nil, ErrLockTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
