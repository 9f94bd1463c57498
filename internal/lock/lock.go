// Package lock provides the per-tenant sync lease.
package lock

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrHeld is returned when another holder owns the lease.
	ErrHeld = errors.New("lock is held")
	// ErrLost is returned by Refresh once the lease expired or changed hands.
	ErrLost = errors.New("lock was lost")
)

// Lease is an acquired lock. Release is safe to call more than once.
type Lease interface {
	// Refresh pushes the expiry to ttl from now, only while still held.
	Refresh(ctx context.Context, ttl time.Duration) error
	Release(ctx context.Context) error
}

// Locker hands out exclusive, expiring leases keyed by name.
type Locker interface {
	// TryAcquire returns ErrHeld immediately if the key is taken.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}
