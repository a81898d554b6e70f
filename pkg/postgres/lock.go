package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jakechorley/autoroster/pkg/core/ledger"
)

// LedgerLockKey is the advisory lock id every process uses for the priority ledger
const LedgerLockKey int64 = 0x6175746f726f73 // "autoros"

const advisoryRetryInterval = 100 * time.Millisecond

// AdvisoryLocker is a ledger.Locker backed by a session-level Postgres advisory lock.
// The lock lives on one pooled connection, held until release.
type AdvisoryLocker struct {
	pool  *pgxpool.Pool
	key   int64
	retry time.Duration
}

var _ ledger.Locker = (*AdvisoryLocker)(nil)

func NewAdvisoryLocker(pool *pgxpool.Pool, key int64) *AdvisoryLocker {
	return &AdvisoryLocker{
		pool:  pool,
		key:   key,
		retry: advisoryRetryInterval,
	}
}

// Acquire polls pg_try_advisory_lock until it succeeds or wait elapses
func (l *AdvisoryLocker) Acquire(ctx context.Context, wait time.Duration) (ledger.Release, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection for advisory lock: %w", err)
	}

	deadline := time.Now().Add(wait)
	for {
		var locked bool
		if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, l.key).Scan(&locked); err != nil {
			conn.Release()
			return nil, fmt.Errorf("failed to take advisory lock: %w", err)
		}
		if locked {
			return l.releaseFunc(conn), nil
		}

		if time.Now().Add(l.retry).After(deadline) {
			conn.Release()
			return nil, ledger.ErrLockTimeout
		}

		select {
		case <-time.After(l.retry):
		case <-ctx.Done():
			conn.Release()
			return nil, ctx.Err()
		}
	}
}

func (l *AdvisoryLocker) releaseFunc(conn *pgxpool.Conn) ledger.Release {
	var once sync.Once
	var releaseErr error
	return func() error {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, l.key); err != nil {
				// A session lock must not go back to the pool still held
				_ = conn.Conn().Close(ctx)
				releaseErr = fmt.Errorf("failed to release advisory lock: %w", err)
			}
			conn.Release()
		})
		return releaseErr
	}
}
