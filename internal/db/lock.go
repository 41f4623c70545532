package db

import (
	"context"
	"fmt"
)

// scanLockID keys the advisory lock guarding the sweep. Overlapping scheduler
// invocations must not race each other to notify the same task.
const scanLockID int64 = 874011

// AcquireScanLock tries to take the sweep lock on a dedicated connection
// (advisory locks are session scoped, so the connection is held until
// release). ok is false when another sweep holds the lock.
func (d *DB) AcquireScanLock(ctx context.Context) (release func(), ok bool, err error) {
	conn, err := d.Pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire connection for scan lock: %w", err)
	}

	var locked bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, scanLockID).Scan(&locked); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("failed to take scan lock: %w", err)
	}
	if !locked {
		conn.Release()
		return nil, false, nil
	}

	release = func() {
		// Unlock on the same session; a failure still releases the
		// connection, which drops the lock with the session.
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, scanLockID)
		conn.Release()
	}
	return release, true, nil
}
