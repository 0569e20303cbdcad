package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker is an in-process Locker for single-instance deployments.
type MemoryLocker struct {
	mu     sync.Mutex
	leases map[string]time.Time
	now    func() time.Time
}

// NewMemoryLocker creates an empty in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{leases: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryLocker) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if exp, ok := m.leases[key]; ok && now.Before(exp) {
		return false, nil
	}
	m.leases[key] = now.Add(ttl)
	return true, nil
}

func (m *MemoryLocker) Unlock(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.leases[key]
	delete(m.leases, key)
	if !ok || !m.now().Before(exp) {
		return ErrLockNotHeld
	}
	return nil
}

var _ Locker = (*MemoryLocker)(nil)
