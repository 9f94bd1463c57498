package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker_Exclusive(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()

	lease, err := l.TryAcquire(ctx, "sync:t1", time.Minute)
	require.NoError(t, err)

	_, err = l.TryAcquire(ctx, "sync:t1", time.Minute)
	assert.ErrorIs(t, err, ErrHeld)

	// other keys are independent
	other, err := l.TryAcquire(ctx, "sync:t2", time.Minute)
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lease.Release(ctx))
	again, err := l.TryAcquire(ctx, "sync:t1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestMemoryLocker_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewMemoryLocker()
	l.now = func() time.Time { return now }

	stale, err := l.TryAcquire(ctx, "k", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	fresh, err := l.TryAcquire(ctx, "k", time.Minute)
	require.NoError(t, err)

	// releasing the expired lease must not drop the new holder
	require.NoError(t, stale.Release(ctx))
	_, err = l.TryAcquire(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, ErrHeld)

	require.NoError(t, fresh.Release(ctx))
	require.NoError(t, fresh.Release(ctx))
}

func TestMemoryLocker_Refresh(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewMemoryLocker()
	l.now = func() time.Time { return now }

	lease, err := l.TryAcquire(ctx, "k", time.Minute)
	require.NoError(t, err)

	// a refreshed lease outlives its original ttl
	now = now.Add(50 * time.Second)
	require.NoError(t, lease.Refresh(ctx, time.Minute))
	now = now.Add(50 * time.Second)
	_, err = l.TryAcquire(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, ErrHeld)

	// once expired it cannot be revived
	now = now.Add(2 * time.Minute)
	assert.ErrorIs(t, lease.Refresh(ctx, time.Minute), ErrLost)
	next, err := l.TryAcquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.ErrorIs(t, lease.Refresh(ctx, time.Minute), ErrLost)
	require.NoError(t, next.Refresh(ctx, time.Minute))
	require.NoError(t, next.Release(ctx))
}
