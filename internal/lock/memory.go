package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker implements Locker inside a single process.
type MemoryLocker struct {
	mu      sync.Mutex
	holders map[string]*memoryLease
	now     func() time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{holders: make(map[string]*memoryLease), now: time.Now}
}

func (l *MemoryLocker) TryAcquire(_ context.Context, key string, ttl time.Duration) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if held, ok := l.holders[key]; ok && (held.expires.IsZero() || l.now().Before(held.expires)) {
		return nil, ErrHeld
	}
	lease := &memoryLease{locker: l, key: key}
	if ttl > 0 {
		lease.expires = l.now().Add(ttl)
	}
	l.holders[key] = lease
	return lease, nil
}

type memoryLease struct {
	locker  *MemoryLocker
	key     string
	expires time.Time // zero = never
}

func (m *memoryLease) Refresh(_ context.Context, ttl time.Duration) error {
	m.locker.mu.Lock()
	defer m.locker.mu.Unlock()
	if m.locker.holders[m.key] != m {
		return ErrLost
	}
	if !m.expires.IsZero() && !m.locker.now().Before(m.expires) {
		delete(m.locker.holders, m.key)
		return ErrLost
	}
	if ttl > 0 {
		m.expires = m.locker.now().Add(ttl)
	}
	return nil
}

func (m *memoryLease) Release(context.Context) error {
	m.locker.mu.Lock()
	defer m.locker.mu.Unlock()
	if m.locker.holders[m.key] == m {
		delete(m.locker.holders, m.key)
	}
	return nil
}
