package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewMemoryLocker()
	l.now = func() time.Time { return now }

	ok, err := l.TryLock(ctx, "build:features", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = l.TryLock(ctx, "build:features", time.Minute)
	assert.False(t, ok, "held lease must not be granted twice")

	ok, _ = l.TryLock(ctx, "build:bitcoin", time.Minute)
	assert.True(t, ok, "keys are independent")

	require.NoError(t, l.Unlock(ctx, "build:features"))
	assert.ErrorIs(t, l.Unlock(ctx, "build:features"), ErrLockNotHeld)

	now = now.Add(2 * time.Minute)
	ok, _ = l.TryLock(ctx, "build:bitcoin", time.Minute)
	assert.True(t, ok, "expired lease is reclaimable")
}

func TestRedisLocker_UnlockWithoutLock(t *testing.T) {
	l := NewRedisLockerWithClient(nil, "featpull:")
	assert.ErrorIs(t, l.Unlock(context.Background(), "build:features"), ErrLockNotHeld)
	assert.Equal(t, "featpull:build:features", l.wrapKey("build:features"))
}
