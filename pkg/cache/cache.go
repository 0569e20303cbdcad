package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrLockNotHeld is returned by Unlock when the key expired or belongs to another holder.
	ErrLockNotHeld = errors.New("cache: lock not held")
)

// Locker is a keyed mutual-exclusion lease with expiry.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}
